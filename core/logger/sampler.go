package logger

import (
	"strconv"
	"strings"
	"sync/atomic"
)

// ratio lets num out of every den events through.
type ratio struct{ num, den uint64 }

// ratioSampler is a lock-free counter based sampler. A nil ratio lets
// every event through.
type ratioSampler struct {
	r atomic.Pointer[ratio]
	n atomic.Uint64
}

func newRatioSampler(num, den int) *ratioSampler {
	s := &ratioSampler{}
	s.Set(num, den)
	return s
}

// Set replaces the ratio and restarts the cycle; non-positive values disable
// sampling.
func (s *ratioSampler) Set(num, den int) {
	s.n.Store(0)
	if num <= 0 || den <= 0 {
		s.r.Store(nil)
		return
	}
	s.r.Store(&ratio{num: uint64(min(num, den)), den: uint64(den)})
}

// Allow reports whether the next event is sampled in.
func (s *ratioSampler) Allow() bool {
	r := s.r.Load()
	if r == nil {
		return true
	}
	return (s.n.Add(1)-1)%r.den < r.num
}

// parseRatioSpec accepts "n/d" or a bare "d" meaning 1/d; anything else is 0/0.
func parseRatioSpec(spec string) (int, int) {
	spec = strings.TrimSpace(spec)
	num, den, ok := strings.Cut(spec, "/")
	if !ok {
		if d, err := strconv.Atoi(spec); err == nil && d > 0 {
			return 1, d
		}
		return 0, 0
	}
	n, errN := strconv.Atoi(strings.TrimSpace(num))
	d, errD := strconv.Atoi(strings.TrimSpace(den))
	if errN != nil || errD != nil {
		return 0, 0
	}
	return n, d
}

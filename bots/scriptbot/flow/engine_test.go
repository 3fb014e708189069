package flow

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/scriptbot/bots/scriptbot/apperror"
	"github.com/m3rciful/scriptbot/bots/scriptbot/executor"
	"github.com/m3rciful/scriptbot/bots/scriptbot/menu"
	"github.com/m3rciful/scriptbot/bots/scriptbot/models"
	"github.com/m3rciful/scriptbot/bots/scriptbot/scripts"
	"github.com/m3rciful/scriptbot/core/telegram/state"
)

type fakeStore struct {
	mu      sync.Mutex
	users   map[int64]*models.User
	bots    []models.NewBot
	libs    []string
	failAll error
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: make(map[int64]*models.User)}
}

func (s *fakeStore) EnsureUser(_ context.Context, id int64, username, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll != nil {
		return
	}
	if _, ok := s.users[id]; !ok {
		u := username
		s.users[id] = &models.User{UserID: id, Username: &u, MaxBots: 3}
	}
}

func (s *fakeStore) GetUser(_ context.Context, id int64) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll != nil {
		return nil, apperror.Unavailable("get user", s.failAll)
	}
	u, ok := s.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	cp := *u
	return &cp, nil
}

func (s *fakeStore) CanRegisterBot(ctx context.Context, id int64) (bool, error) {
	u, err := s.GetUser(ctx, id)
	if errors.Is(err, apperror.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return u.CanRegister(), nil
}

func (s *fakeStore) RegisterBot(_ context.Context, bot models.NewBot) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll != nil {
		return 0, apperror.Unavailable("register bot", s.failAll)
	}
	u, ok := s.users[bot.UserID]
	if !ok {
		return 0, apperror.NotFound("user", bot.UserID)
	}
	if !u.CanRegister() {
		return 0, apperror.QuotaExceeded(bot.UserID)
	}
	u.ActiveBots++
	s.bots = append(s.bots, bot)
	return int64(len(s.bots)), nil
}

func (s *fakeStore) AddLibrary(_ context.Context, name string, _ int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll != nil {
		return false, apperror.Unavailable("add library", s.failAll)
	}
	for _, l := range s.libs {
		if l == name {
			return false, nil
		}
	}
	s.libs = append(s.libs, name)
	return true, nil
}

func (s *fakeStore) ListLibraries(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.libs))
	for i := len(s.libs) - 1; i >= 0; i-- {
		out = append(out, s.libs[i])
	}
	return out, nil
}

func (s *fakeStore) ListUserBots(_ context.Context, id int64) ([]models.BotSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.BotSummary
	for i, b := range s.bots {
		if b.UserID == id {
			out = append(out, models.BotSummary{ID: int64(i + 1), Name: b.Name, Language: b.Language, IsActive: true})
		}
	}
	return out, nil
}

func (s *fakeStore) setQuota(id int64, active, max int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[id] = &models.User{UserID: id, ActiveBots: active, MaxBots: max}
}

type fakeResponder struct {
	replies  []Reply
	edits    int
	content  string
	download error
	delay    time.Duration
}

func (r *fakeResponder) Send(_ context.Context, rep Reply) error {
	r.replies = append(r.replies, rep)
	return nil
}

func (r *fakeResponder) Edit(_ context.Context, rep Reply) error {
	r.edits++
	r.replies = append(r.replies, rep)
	return nil
}

func (r *fakeResponder) Download(ctx context.Context, dst string) error {
	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if r.download != nil {
		return r.download
	}
	return os.WriteFile(dst, []byte(r.content), 0o600)
}

func (r *fakeResponder) last(t *testing.T) Reply {
	t.Helper()
	require.NotEmpty(t, r.replies)
	return r.replies[len(r.replies)-1]
}

type recordingExecutor struct {
	reqs []executor.Request
}

func (x *recordingExecutor) Run(_ context.Context, req executor.Request) (*executor.Result, error) {
	x.reqs = append(x.reqs, req)
	return &executor.Result{Started: true}, nil
}

type harness struct {
	engine *Engine
	store  *fakeStore
	exec   *recordingExecutor
	dir    string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	st := newFakeStore()
	x := &recordingExecutor{}
	e, err := New(Options{
		Store:           st,
		Sessions:        state.NewStore[Session](),
		Scripts:         scripts.New(dir, 1024),
		Executor:        x,
		DownloadTimeout: 50 * time.Millisecond,
	})
	require.NoError(t, err)
	return &harness{engine: e, store: st, exec: x, dir: dir}
}

func action(uid int64, code string) Event {
	return Event{UserID: uid, ChatID: uid, Username: "u", Action: code}
}

func text(uid int64, s string) Event {
	return Event{UserID: uid, ChatID: uid, Username: "u", Text: s}
}

func command(uid int64, s string) Event {
	return Event{UserID: uid, ChatID: uid, Username: "u", Text: s, IsCommand: true}
}

func document(uid int64, name string, size int64) Event {
	return Event{UserID: uid, ChatID: uid, Document: &Document{FileName: name, Size: size}}
}

func TestNewRequiresStores(t *testing.T) {
	_, err := New(Options{Sessions: state.NewStore[Session]()})
	require.Error(t, err)
	_, err = New(Options{Store: newFakeStore()})
	require.Error(t, err)
}

func TestStartShowsTopMenuAndClears(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	r := &fakeResponder{}

	require.NoError(t, h.engine.HandleAction(ctx, action(1, menu.ActionLangPython), r))
	require.True(t, h.engine.InProgress(1))

	require.NoError(t, h.engine.Start(ctx, Event{UserID: 1, DisplayName: "Ann_B"}, r))
	assert.False(t, h.engine.InProgress(1))
	last := r.last(t)
	assert.Equal(t, menu.Top, last.Menu)
	assert.Contains(t, last.Text, `Ann\_B`)
	_, err := h.store.GetUser(ctx, 1)
	assert.NoError(t, err)
}

func TestCreateFileFlow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	r := &fakeResponder{}

	require.NoError(t, h.engine.HandleAction(ctx, action(7, menu.ActionCreateFile), r))
	assert.Equal(t, menu.LanguageChoice, r.last(t).Menu)
	require.NoError(t, h.engine.HandleAction(ctx, action(7, menu.ActionLangPHP), r))
	assert.Equal(t, menu.CancelCreate, r.last(t).Menu)

	for _, line := range []string{"line1", "line2", "line3"} {
		require.NoError(t, h.engine.HandleMessage(ctx, text(7, line), r))
	}
	assert.Contains(t, r.last(t).Text, "Total lines: 3")
	sess, ok := h.engine.Session(7)
	require.True(t, ok)
	assert.Equal(t, "line1\nline2\nline3\n", sess.Code)

	require.NoError(t, h.engine.Finish(ctx, command(7, "/done"), r))
	assert.False(t, h.engine.InProgress(7))
	assert.Equal(t, menu.Top, r.last(t).Menu)

	require.Len(t, h.store.bots, 1)
	bot := h.store.bots[0]
	assert.Equal(t, models.PHP, bot.Language)
	assert.Equal(t, placeholderToken, bot.Token)
	require.NotNil(t, bot.Code)
	assert.Equal(t, "line1\nline2\nline3\n", *bot.Code)
	assert.Equal(t, "bot_7_18.php", bot.Name)

	data, err := os.ReadFile(filepath.Join(h.dir, "bot_7_18.php"))
	require.NoError(t, err)
	assert.Equal(t, "line1\nline2\nline3\n", string(data))
	u, _ := h.store.GetUser(ctx, 7)
	assert.Equal(t, 1, u.ActiveBots)
}

func TestCreateFileRejectsCommandsAndEmptyFinish(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	r := &fakeResponder{}

	require.NoError(t, h.engine.HandleAction(ctx, action(7, menu.ActionLangPython), r))
	require.NoError(t, h.engine.Finish(ctx, command(7, "/done"), r))
	assert.True(t, h.engine.InProgress(7))
	assert.Empty(t, h.store.bots)

	require.NoError(t, h.engine.HandleMessage(ctx, command(7, "/mybots"), r))
	require.NoError(t, h.engine.HandleMessage(ctx, document(7, "a.py", 1), r))
	sess, _ := h.engine.Session(7)
	assert.Empty(t, sess.Code)
}

func TestFinishCommandRoutedThroughMessages(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	r := &fakeResponder{}

	require.NoError(t, h.engine.HandleAction(ctx, action(7, menu.ActionLangPython), r))
	require.NoError(t, h.engine.HandleMessage(ctx, text(7, "print(1)"), r))
	require.NoError(t, h.engine.HandleMessage(ctx, command(7, "/done@scriptbot"), r))
	assert.False(t, h.engine.InProgress(7))
	require.Len(t, h.store.bots, 1)
	assert.Equal(t, models.Python, h.store.bots[0].Language)
}

func TestCreateFileStorageFailureKeepsBuffer(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	r := &fakeResponder{}

	require.NoError(t, h.engine.HandleAction(ctx, action(7, menu.ActionLangPython), r))
	require.NoError(t, h.engine.HandleMessage(ctx, text(7, "x"), r))
	h.store.failAll = errors.New("db down")
	require.NoError(t, h.engine.Finish(ctx, command(7, "/done"), r))

	assert.Equal(t, textUnavailable, r.last(t).Text)
	sess, ok := h.engine.Session(7)
	require.True(t, ok)
	assert.Equal(t, "x\n", sess.Code)
	_, err := os.Stat(filepath.Join(h.dir, "bot_7_2.py"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestCreateFileQuotaExceededRemovesFile(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	r := &fakeResponder{}

	require.NoError(t, h.engine.HandleAction(ctx, action(7, menu.ActionLangPython), r))
	require.NoError(t, h.engine.HandleMessage(ctx, text(7, "x"), r))
	h.store.setQuota(7, 3, 3)
	require.NoError(t, h.engine.Finish(ctx, command(7, "/done"), r))

	assert.False(t, h.engine.InProgress(7))
	assert.Contains(t, r.last(t).Text, "3 of 3")
	_, err := os.Stat(filepath.Join(h.dir, "bot_7_2.py"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestRunFileBlockedAtQuota(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	r := &fakeResponder{}
	h.store.setQuota(5, 3, 3)

	require.NoError(t, h.engine.HandleAction(ctx, action(5, menu.ActionRunFile), r))
	last := r.last(t)
	assert.Equal(t, menu.Top, last.Menu)
	assert.Contains(t, last.Text, "3 of 3")
	assert.False(t, h.engine.InProgress(5))

	require.NoError(t, h.engine.HandleAction(ctx, action(5, menu.ActionRunPython), r))
	assert.False(t, h.engine.InProgress(5))
	assert.Equal(t, menu.Top, r.last(t).Menu)
}

func TestRunFileFlow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	r := &fakeResponder{content: "print('hi')"}

	require.NoError(t, h.engine.HandleAction(ctx, action(9, menu.ActionRunFile), r))
	assert.Equal(t, menu.RunLanguage, r.last(t).Menu)
	require.NoError(t, h.engine.HandleAction(ctx, action(9, menu.ActionRunPython), r))
	assert.Equal(t, menu.CancelRun, r.last(t).Menu)

	require.NoError(t, h.engine.HandleMessage(ctx, text(9, "not a file"), r))
	sess, _ := h.engine.Session(9)
	assert.Equal(t, AwaitingFile, sess.Step)

	require.NoError(t, h.engine.HandleMessage(ctx, document(9, "bot.php", 10), r))
	sess, _ = h.engine.Session(9)
	assert.Equal(t, AwaitingFile, sess.Step)

	require.NoError(t, h.engine.HandleMessage(ctx, document(9, "big.py", 4096), r))
	sess, _ = h.engine.Session(9)
	assert.Equal(t, AwaitingFile, sess.Step)

	require.NoError(t, h.engine.HandleMessage(ctx, document(9, "my_bot.py", 11), r))
	sess, _ = h.engine.Session(9)
	require.Equal(t, AwaitingToken, sess.Step)
	assert.Equal(t, h.dir, filepath.Dir(sess.Staged))
	assert.True(t, strings.HasSuffix(sess.Staged, ".part"))

	require.NoError(t, h.engine.HandleMessage(ctx, document(9, "other.py", 1), r))
	sess, _ = h.engine.Session(9)
	assert.Equal(t, AwaitingToken, sess.Step)

	require.NoError(t, h.engine.HandleMessage(ctx, text(9, "  123456789:ABCDEFGHIJ  "), r))
	assert.False(t, h.engine.InProgress(9))
	last := r.last(t)
	assert.Equal(t, menu.Top, last.Menu)
	assert.Contains(t, last.Text, "123456789:...")
	assert.NotContains(t, last.Text, "ABCDEFGHIJ")

	require.Len(t, h.store.bots, 1)
	bot := h.store.bots[0]
	assert.Equal(t, "my_bot.py", bot.Name)
	assert.Nil(t, bot.Code)
	assert.Equal(t, "123456789:ABCDEFGHIJ", bot.Token)
	stored := filepath.Join(h.dir, "9_python_my_bot.py")
	assert.Equal(t, stored, bot.FilePath)
	data, err := os.ReadFile(stored)
	require.NoError(t, err)
	assert.Equal(t, "print('hi')", string(data))
	assert.NoFileExists(t, sess.Staged)
	require.Len(t, h.exec.reqs, 1)
	assert.Equal(t, stored, h.exec.reqs[0].FilePath)
}

func TestRunFileDownloadTimeout(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	r := &fakeResponder{delay: time.Second}

	require.NoError(t, h.engine.HandleAction(ctx, action(9, menu.ActionRunPHP), r))
	require.NoError(t, h.engine.HandleMessage(ctx, document(9, "a.php", 1), r))
	assert.Equal(t, textDownloadFail, r.last(t).Text)
	sess, ok := h.engine.Session(9)
	require.True(t, ok)
	assert.Equal(t, AwaitingFile, sess.Step)
	assert.Empty(t, scriptFiles(t, h.dir))
}

func TestLibrariesBatch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	r := &fakeResponder{}

	require.NoError(t, h.engine.HandleAction(ctx, action(3, menu.ActionInstallLibraries), r))
	sess, ok := h.engine.Session(3)
	require.True(t, ok)
	assert.Equal(t, InstallLibraries, sess.Flow)
	assert.Equal(t, menu.LibrariesBack, r.last(t).Menu)

	require.NoError(t, h.engine.HandleMessage(ctx, text(3, "libA\nlibA\n\n  libB  "), r))
	assert.Contains(t, r.last(t).Text, "accepted: 2, rejected: 1")
	assert.Equal(t, []string{"libA", "libB"}, h.store.libs)

	require.NoError(t, h.engine.Finish(ctx, command(3, "/done"), r))
	assert.False(t, h.engine.InProgress(3))
	assert.Equal(t, menu.Top, r.last(t).Menu)
}

func TestLibrariesPromptTruncates(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	for i := 0; i < 12; i++ {
		h.store.libs = append(h.store.libs, string(rune('a'+i)))
	}
	r := &fakeResponder{}
	require.NoError(t, h.engine.HandleAction(ctx, action(3, menu.ActionInstallLibraries), r))
	assert.Contains(t, r.last(t).Text, "... and more")
	assert.Contains(t, r.last(t).Text, "• l")
	assert.NotContains(t, r.last(t).Text, "• a")
}

func TestCancelFromEveryFlow(t *testing.T) {
	tests := []struct {
		name   string
		events []Event
		active bool
	}{
		{"create", []Event{action(1, menu.ActionLangPython), text(1, "code")}, true},
		{"run_menu", []Event{action(1, menu.ActionRunFile)}, false},
		{"run_file", []Event{action(1, menu.ActionRunPython)}, true},
		{"run_token", []Event{action(1, menu.ActionRunPython), document(1, "a.py", 3)}, true},
		{"libs", []Event{action(1, menu.ActionInstallLibraries)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			ctx := context.Background()
			r := &fakeResponder{content: "x=1"}
			for _, ev := range tt.events {
				if ev.Action != "" {
					require.NoError(t, h.engine.HandleAction(ctx, ev, r))
				} else {
					require.NoError(t, h.engine.HandleMessage(ctx, ev, r))
				}
			}
			require.Equal(t, tt.active, h.engine.InProgress(1))

			require.NoError(t, h.engine.Cancel(ctx, command(1, "/cancel"), r))
			assert.False(t, h.engine.InProgress(1))
			assert.Empty(t, h.store.bots)
			assert.Empty(t, scriptFiles(t, h.dir))
			assert.Equal(t, menu.Top, r.last(t).Menu)
			assert.Equal(t, []menu.Item{
				{Label: "🔧 Run a file", Action: menu.ActionRunFile},
				{Label: "🚀 Our services", Action: menu.ActionOurServices},
			}, menu.Items(r.last(t).Menu))
		})
	}
}

func TestCancelAtTokenStepThroughMessages(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	r := &fakeResponder{content: "x=1"}

	require.NoError(t, h.engine.HandleAction(ctx, action(1, menu.ActionRunPython), r))
	require.NoError(t, h.engine.HandleMessage(ctx, document(1, "a.py", 3), r))
	sess, _ := h.engine.Session(1)
	require.Equal(t, AwaitingToken, sess.Step)

	require.NoError(t, h.engine.HandleMessage(ctx, command(1, "/cancel"), r))
	assert.False(t, h.engine.InProgress(1))
	assert.Equal(t, textCancelled, r.last(t).Text)
	assert.NoFileExists(t, sess.Staged)
}

func TestFailedAuthoringKeepsRegisteredScript(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	r := &fakeResponder{}
	stored := filepath.Join(h.dir, "bot_7_2.py")

	require.NoError(t, h.engine.HandleAction(ctx, action(7, menu.ActionLangPython), r))
	require.NoError(t, h.engine.HandleMessage(ctx, text(7, "a"), r))
	require.NoError(t, h.engine.Finish(ctx, command(7, "/done"), r))
	require.Len(t, h.store.bots, 1)
	require.Equal(t, stored, h.store.bots[0].FilePath)

	// Same length, so the same authored name; the quota runs out meanwhile.
	require.NoError(t, h.engine.HandleAction(ctx, action(7, menu.ActionLangPython), r))
	require.NoError(t, h.engine.HandleMessage(ctx, text(7, "b"), r))
	h.store.setQuota(7, 3, 3)
	require.NoError(t, h.engine.Finish(ctx, command(7, "/done"), r))

	assert.Contains(t, r.last(t).Text, "3 of 3")
	data, err := os.ReadFile(stored)
	require.NoError(t, err)
	assert.Equal(t, "a\n", string(data))
	assert.Equal(t, []string{"bot_7_2.py"}, scriptFiles(t, h.dir))
}

func TestSameAuthoredNameGetsSuffix(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	r := &fakeResponder{}

	for _, line := range []string{"a", "b"} {
		require.NoError(t, h.engine.HandleAction(ctx, action(7, menu.ActionLangPython), r))
		require.NoError(t, h.engine.HandleMessage(ctx, text(7, line), r))
		require.NoError(t, h.engine.Finish(ctx, command(7, "/done"), r))
	}
	require.Len(t, h.store.bots, 2)
	assert.Equal(t, "bot_7_2.py", h.store.bots[0].Name)
	assert.Equal(t, "bot_7_2_2.py", h.store.bots[1].Name)
	for i, want := range []string{"a\n", "b\n"} {
		data, err := os.ReadFile(h.store.bots[i].FilePath)
		require.NoError(t, err)
		assert.Equal(t, want, string(data))
	}
}

func TestFailedReuploadKeepsRegisteredScript(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	r := &fakeResponder{content: "v1"}
	stored := filepath.Join(h.dir, "8_python_main.py")

	require.NoError(t, h.engine.HandleAction(ctx, action(8, menu.ActionRunPython), r))
	require.NoError(t, h.engine.HandleMessage(ctx, document(8, "main.py", 2), r))
	require.NoError(t, h.engine.HandleMessage(ctx, text(8, "1:AAA"), r))
	require.Len(t, h.store.bots, 1)
	require.Equal(t, stored, h.store.bots[0].FilePath)

	r.download = errors.New("connection reset")
	require.NoError(t, h.engine.HandleAction(ctx, action(8, menu.ActionRunPython), r))
	require.NoError(t, h.engine.HandleMessage(ctx, document(8, "main.py", 2), r))
	assert.Equal(t, textDownloadFail, r.last(t).Text)

	data, err := os.ReadFile(stored)
	require.NoError(t, err)
	assert.Equal(t, "v1", string(data))

	r.download, r.content = nil, "v2"
	require.NoError(t, h.engine.HandleMessage(ctx, document(8, "main.py", 2), r))
	require.NoError(t, h.engine.HandleMessage(ctx, text(8, "1:BBB"), r))
	require.Len(t, h.store.bots, 2)
	assert.Equal(t, filepath.Join(h.dir, "8_python_main_2.py"), h.store.bots[1].FilePath)
	data, err = os.ReadFile(stored)
	require.NoError(t, err)
	assert.Equal(t, "v1", string(data))
	assert.Equal(t, []string{"8_python_main.py", "8_python_main_2.py"}, scriptFiles(t, h.dir))
}

func TestRejectedUploadDropsStagedFile(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	r := &fakeResponder{content: "v1"}

	require.NoError(t, h.engine.HandleAction(ctx, action(8, menu.ActionRunPython), r))
	require.NoError(t, h.engine.HandleMessage(ctx, document(8, "main.py", 2), r))
	h.store.setQuota(8, 3, 3)
	require.NoError(t, h.engine.HandleMessage(ctx, text(8, "1:AAA"), r))

	assert.False(t, h.engine.InProgress(8))
	assert.Empty(t, h.store.bots)
	assert.Empty(t, scriptFiles(t, h.dir))
}

func TestOverlongTokenReprompts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	r := &fakeResponder{content: "v1"}

	require.NoError(t, h.engine.HandleAction(ctx, action(8, menu.ActionRunPython), r))
	require.NoError(t, h.engine.HandleMessage(ctx, document(8, "main.py", 2), r))
	require.NoError(t, h.engine.HandleMessage(ctx, text(8, strings.Repeat("x", maxTokenLen+1)), r))

	assert.Equal(t, textTokenTooLong, r.last(t).Text)
	assert.Empty(t, h.store.bots)
	sess, ok := h.engine.Session(8)
	require.True(t, ok)
	assert.Equal(t, AwaitingToken, sess.Step)
}

func TestCreateFileBlockedAtQuota(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	r := &fakeResponder{}
	h.store.setQuota(7, 3, 3)

	require.NoError(t, h.engine.HandleAction(ctx, action(7, menu.ActionLangPHP), r))
	assert.False(t, h.engine.InProgress(7))
	last := r.last(t)
	assert.Equal(t, menu.Top, last.Menu)
	assert.Contains(t, last.Text, "3 of 3")
}

// scriptFiles lists the file names in dir, staging files included.
func scriptFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	out := []string{}
	for _, e := range entries {
		out = append(out, e.Name())
	}
	return out
}

func TestNavigationClearsSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	r := &fakeResponder{}

	require.NoError(t, h.engine.HandleAction(ctx, action(1, menu.ActionInstallLibraries), r))
	require.NoError(t, h.engine.HandleAction(ctx, action(1, menu.ActionBackToServices), r))
	assert.False(t, h.engine.InProgress(1))
	assert.Equal(t, menu.Services, r.last(t).Menu)

	require.NoError(t, h.engine.HandleAction(ctx, action(1, menu.ActionRunPHP), r))
	require.NoError(t, h.engine.HandleAction(ctx, action(1, menu.ActionMainMenu), r))
	assert.False(t, h.engine.InProgress(1))
	assert.Equal(t, menu.Top, r.last(t).Menu)
}

func TestUnknownActionIgnored(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	r := &fakeResponder{}
	require.NoError(t, h.engine.HandleAction(ctx, action(1, menu.ActionLangPython), r))
	n := len(r.replies)

	require.NoError(t, h.engine.HandleAction(ctx, action(1, "nope"), r))
	assert.Len(t, r.replies, n)
	assert.True(t, h.engine.InProgress(1))
}

func TestMessageWithoutSessionIgnored(t *testing.T) {
	h := newHarness(t)
	r := &fakeResponder{}
	require.NoError(t, h.engine.HandleMessage(context.Background(), text(1, "hello"), r))
	assert.Empty(t, r.replies)
}

func TestFinishWithoutSessionHints(t *testing.T) {
	h := newHarness(t)
	r := &fakeResponder{}
	require.NoError(t, h.engine.Finish(context.Background(), command(1, "/done"), r))
	assert.Contains(t, r.last(t).Text, "Nothing to finish")
	assert.False(t, h.engine.InProgress(1))
}

func TestSessionsIsolatedPerUser(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	r := &fakeResponder{}

	require.NoError(t, h.engine.HandleAction(ctx, action(1, menu.ActionLangPython), r))
	require.NoError(t, h.engine.HandleAction(ctx, action(2, menu.ActionLangPHP), r))
	require.NoError(t, h.engine.HandleMessage(ctx, text(1, "a"), r))
	require.NoError(t, h.engine.HandleMessage(ctx, text(2, "b"), r))
	require.NoError(t, h.engine.Cancel(ctx, command(2, "/cancel"), r))

	s1, ok := h.engine.Session(1)
	require.True(t, ok)
	assert.Equal(t, "a\n", s1.Code)
	assert.Equal(t, models.Python, s1.Language)
	assert.False(t, h.engine.InProgress(2))
}

func TestConcurrentMessagesSameUser(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.engine.HandleAction(ctx, action(1, menu.ActionLangPython), &fakeResponder{}))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = h.engine.HandleMessage(ctx, text(1, "x"), &fakeResponder{})
		}()
	}
	wg.Wait()
	sess, _ := h.engine.Session(1)
	assert.Len(t, sess.Code, 100)
}

func TestMyBotsAndQuota(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	r := &fakeResponder{}

	require.NoError(t, h.engine.MyBots(ctx, command(4, "/mybots"), r))
	assert.Contains(t, r.last(t).Text, "not registered any bots")
	assert.Contains(t, r.last(t).Text, "0/3")

	require.NoError(t, h.engine.HandleAction(ctx, action(4, menu.ActionLangPython), r))
	require.NoError(t, h.engine.HandleMessage(ctx, text(4, "x"), r))
	require.NoError(t, h.engine.Finish(ctx, command(4, "/done"), r))

	require.NoError(t, h.engine.MyBots(ctx, command(4, "/mybots"), r))
	assert.Contains(t, r.last(t).Text, `bot\_4\_2.py`)
	assert.Contains(t, r.last(t).Text, "1/3")

	tests := []struct {
		args []string
		want string
	}{
		{nil, textQuotaUsage},
		{[]string{"abc"}, textQuotaUsage},
		{[]string{"999"}, textUserNotFound},
		{[]string{"4"}, "1/3"},
	}
	for _, tt := range tests {
		ev := command(1, "/quota")
		ev.Args = tt.args
		require.NoError(t, h.engine.Quota(ctx, ev, r))
		assert.Contains(t, r.last(t).Text, tt.want)
	}
}

func TestLibrariesCommand(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	r := &fakeResponder{}

	require.NoError(t, h.engine.Libraries(ctx, command(1, "/libraries"), r))
	assert.Equal(t, textNoLibraries, r.last(t).Text)

	h.store.libs = []string{"old", "new_lib"}
	require.NoError(t, h.engine.Libraries(ctx, command(1, "/libraries"), r))
	assert.Equal(t, "📚 *Libraries*\n\n• new\\_lib\n• old", r.last(t).Text)
}

func TestStorageUnavailable(t *testing.T) {
	h := newHarness(t)
	h.store.failAll = errors.New("db down")
	r := &fakeResponder{}
	require.NoError(t, h.engine.HandleAction(context.Background(), action(1, menu.ActionRunFile), r))
	assert.Equal(t, textUnavailable, r.last(t).Text)
	assert.False(t, h.engine.InProgress(1))
}

func TestCustomFinishCommand(t *testing.T) {
	e, err := New(Options{Store: newFakeStore(), Sessions: state.NewStore[Session](), FinishCommand: "End"})
	require.NoError(t, err)
	assert.Equal(t, "/end", e.FinishCommand())
}

func TestMaskToken(t *testing.T) {
	assert.Equal(t, "abc...", MaskToken("abc"))
	assert.Equal(t, "0123456789...", MaskToken("0123456789abcdef"))
}

func TestActionsListed(t *testing.T) {
	h := newHarness(t)
	assert.ElementsMatch(t, menu.Actions(), h.engine.Actions())
}

// Package scripts names and stores script files under a dedicated directory.
package scripts

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/m3rciful/scriptbot/bots/scriptbot/apperror"
	"github.com/m3rciful/scriptbot/bots/scriptbot/models"
)

// Dir is the directory that holds every script file.
type Dir struct {
	root     string
	maxBytes int64
}

// New returns a Dir rooted at root. maxUploadBytes <= 0 disables the size check.
func New(root string, maxUploadBytes int64) *Dir {
	if root == "" {
		root = "bots"
	}
	return &Dir{root: root, maxBytes: maxUploadBytes}
}

// AuthoredName is the file name of a script typed in chat:
// bot_<user>_<length in characters><ext>.
func AuthoredName(userID int64, lang models.Language, code string) string {
	return fmt.Sprintf("bot_%d_%d%s", userID, utf8.RuneCountInString(code), lang.Extension())
}

// UploadName is the stored name of an uploaded file: <user>_<language>_<basename>.
func UploadName(userID int64, lang models.Language, fileName string) string {
	return fmt.Sprintf("%d_%s_%s", userID, lang, baseName(fileName))
}

// baseName strips any client supplied directories, including Windows style ones.
func baseName(name string) string {
	return path.Base(strings.ReplaceAll(name, `\`, "/"))
}

// CheckUpload validates an uploaded document against the chosen language and size limit.
func (d *Dir) CheckUpload(lang models.Language, fileName string, size int64) error {
	base := baseName(strings.TrimSpace(fileName))
	if base == "" || base == "." || base == "/" || base == ".." {
		return apperror.ValidationFailed("file_name", "file name is missing")
	}
	if !strings.EqualFold(path.Ext(base), lang.Extension()) {
		return apperror.ValidationFailed("file_name", fmt.Sprintf("expected a %s file", lang.Extension()))
	}
	if d.maxBytes > 0 && size > d.maxBytes {
		return apperror.ValidationFailed("file_size", fmt.Sprintf("file is larger than %d bytes", d.maxBytes))
	}
	return nil
}

// maxSuffix bounds the search for a free name in Reserve.
const maxSuffix = 1000

// StageUpload creates an empty staging file for an upload. The caller
// downloads into it and later commits or removes it.
func (d *Dir) StageUpload(userID int64, lang models.Language, fileName string) (string, error) {
	return d.stage(UploadName(userID, lang, fileName))
}

// StageAuthored writes code typed in chat to a staging file and returns its
// path together with the authored file name.
func (d *Dir) StageAuthored(userID int64, lang models.Language, code string) (string, string, error) {
	name := AuthoredName(userID, lang, code)
	tmp, err := d.stage(name)
	if err != nil {
		return "", "", err
	}
	if err := os.WriteFile(tmp, []byte(code), 0o644); err != nil {
		_ = os.Remove(tmp)
		return "", "", fmt.Errorf("write script %s: %w", name, err)
	}
	return tmp, name, nil
}

// stage creates a unique hidden ".<name>.*.part" file in the directory.
func (d *Dir) stage(name string) (string, error) {
	if err := d.ensure(); err != nil {
		return "", err
	}
	f, err := os.CreateTemp(d.root, "."+name+".*.part")
	if err != nil {
		return "", fmt.Errorf("stage script %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("stage script %s: %w", name, err)
	}
	return f.Name(), nil
}

// Reserve returns a path for name that no stored script uses: name itself,
// or name with a _2, _3, ... suffix before the extension.
func (d *Dir) Reserve(name string) (string, error) {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 1; i <= maxSuffix; i++ {
		candidate := name
		if i > 1 {
			candidate = fmt.Sprintf("%s_%d%s", stem, i, ext)
		}
		p := filepath.Join(d.root, candidate)
		_, err := os.Lstat(p)
		if errors.Is(err, fs.ErrNotExist) {
			return p, nil
		}
		if err != nil {
			return "", fmt.Errorf("reserve script %s: %w", name, err)
		}
	}
	return "", fmt.Errorf("reserve script %s: no free name", name)
}

// Commit moves a staged file to dst. It never replaces an existing file.
func (d *Dir) Commit(staged, dst string) error {
	if err := os.Link(staged, dst); err != nil {
		return fmt.Errorf("commit script: %w", err)
	}
	if err := os.Remove(staged); err != nil {
		return fmt.Errorf("commit script: %w", err)
	}
	return nil
}

// Remove deletes a stored or staged script; a missing file is not an error.
func (d *Dir) Remove(p string) error {
	if p == "" {
		return nil
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove script: %w", err)
	}
	return nil
}

func (d *Dir) ensure() error {
	if err := os.MkdirAll(d.root, 0o755); err != nil {
		return fmt.Errorf("create scripts dir: %w", err)
	}
	return nil
}

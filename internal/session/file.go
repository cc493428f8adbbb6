package session

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/code-with-zain-hunzai/kekar-go/internal/models"
)

const snapshotFile = "identity.json"

// File persists the snapshot as JSON under a config directory,
// defaulting to ~/.kekar.
type File struct {
	dir string
}

var _ Store = (*File)(nil)

// NewFile creates a file-backed store rooted at dir. An empty dir
// falls back to ~/.kekar.
func NewFile(dir string) *File {
	if dir == "" {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".kekar")
	}
	return &File{dir: dir}
}

func (f *File) path() string {
	return filepath.Join(f.dir, snapshotFile)
}

func (f *File) Save(ident models.Identity) error {
	if err := os.MkdirAll(f.dir, 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(ident, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(f.path(), data, 0600)
}

func (f *File) Load() (*models.Identity, bool) {
	data, err := os.ReadFile(f.path())
	if err != nil {
		return nil, false
	}
	var ident models.Identity
	if err := json.Unmarshal(data, &ident); err != nil {
		return nil, false
	}
	return &ident, true
}

func (f *File) Clear() error {
	err := os.Remove(f.path())
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

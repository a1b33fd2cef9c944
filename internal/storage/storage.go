// Package storage abstracts the object store that keeps product images and
// AR markers. The platform only needs paths back; serving is done by the
// router (local) or the store's own URLs (hosted).
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Storage persists uploaded files and returns the path they live under.
type Storage interface {
	Save(name string, r io.Reader) (path string, err error)
	URL(path string) string
}

// Local writes files under a base directory and serves them from /uploads/.
type Local struct {
	BaseDir string
}

func NewLocal(baseDir string) (*Local, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, err
	}
	return &Local{BaseDir: baseDir}, nil
}

func (l *Local) Save(name string, r io.Reader) (string, error) {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(filepath.Base(name), ext)
	// timestamp prefix keeps names unique without a coordination step
	stored := fmt.Sprintf("%d_%s%s", time.Now().UnixNano(), base, ext)
	f, err := os.Create(filepath.Join(l.BaseDir, stored))
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return "", err
	}
	return stored, nil
}

func (l *Local) URL(path string) string {
	return "/uploads/" + path
}

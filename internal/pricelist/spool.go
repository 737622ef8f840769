package pricelist

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrOutsideSpool is returned for paths that do not belong to the spool.
var ErrOutsideSpool = errors.New("path outside upload spool")

// Upload is a spooled document waiting for background processing.
type Upload struct {
	ID       string  `json:"id"`
	Filename string  `json:"filename"`
	Path     string  `json:"path"`
	Options  Options `json:"options"`
}

// Spool keeps uploaded files on disk between the API and the worker. Both
// processes must mount the same directory.
type Spool struct {
	dir string
}

// NewSpool creates dir when missing.
func NewSpool(dir string) (*Spool, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("pricelist: spool: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("pricelist: spool: %w", err)
	}
	return &Spool{dir: abs}, nil
}

// Save writes data under the upload id and returns the file path.
func (s *Spool) Save(id, filename string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	path := filepath.Join(s.dir, filepath.Base(id)+ext)
	if err := os.WriteFile(path, data, 0o640); err != nil {
		return "", fmt.Errorf("pricelist: spool save: %w", err)
	}
	return path, nil
}

// Load reads a spooled file.
func (s *Spool) Load(path string) ([]byte, error) {
	if err := s.contains(path); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pricelist: spool load: %w", err)
	}
	return data, nil
}

// Remove deletes a spooled file. Missing files are not an error.
func (s *Spool) Remove(path string) error {
	if err := s.contains(path); err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("pricelist: spool remove: %w", err)
	}
	return nil
}

// Sweep removes files last modified before the cutoff.
func (s *Spool) Sweep(before time.Time) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("pricelist: spool sweep: %w", err)
	}
	n := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(before) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err == nil {
			n++
		}
	}
	return n, nil
}

func (s *Spool) contains(path string) error {
	rel, err := filepath.Rel(s.dir, filepath.Clean(path))
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") || strings.ContainsRune(rel, filepath.Separator) {
		return fmt.Errorf("%w: %s", ErrOutsideSpool, path)
	}
	return nil
}

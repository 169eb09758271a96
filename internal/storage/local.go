package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
)

// LocalStore keeps covers as files in a single directory.
type LocalStore struct {
	dir string
}

// NewLocalStore creates dir if needed.
func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads dir: %w", err)
	}
	return &LocalStore{dir: dir}, nil
}

func (s *LocalStore) Save(_ context.Context, up Upload) (string, error) {
	up, err := Admit(up)
	if err != nil {
		return "", err
	}
	name := StoredName(up.Name)
	p := filepath.Join(s.dir, name)
	f, err := os.OpenFile(p, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", name, err)
	}
	if _, err := io.Copy(f, up.Body); err != nil {
		f.Close()
		os.Remove(p)
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(p)
		return "", fmt.Errorf("close %s: %w", name, err)
	}
	return name, nil
}

func (s *LocalStore) Open(_ context.Context, name string) (*Object, error) {
	if !ValidName(name) {
		return nil, ErrFileNotFound
	}
	f, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrFileNotFound
		}
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	info, err := f.Stat()
	if err != nil || info.IsDir() {
		f.Close()
		return nil, ErrFileNotFound
	}
	mt, err := mimetype.DetectReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("detect %s: %w", name, err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, fmt.Errorf("rewind %s: %w", name, err)
	}
	return &Object{Content: f, Size: info.Size(), ContentType: mt.String(), ModTime: info.ModTime()}, nil
}

func (s *LocalStore) Delete(_ context.Context, name string) error {
	if !ValidName(name) {
		return ErrFileNotFound
	}
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrFileNotFound
		}
		return fmt.Errorf("remove %s: %w", name, err)
	}
	return nil
}

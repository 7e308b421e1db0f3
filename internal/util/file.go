package util

import (
	"fmt"
	"os"
	"path/filepath"
)

func EnsureDir(path string) error {
	return os.MkdirAll(path, 0o755)
}

// StagedFile is data written next to its final path but not yet visible there.
type StagedFile struct {
	tmp  string
	path string
}

// StageFile writes data to a temp file beside path. path must not be a
// directory.
func StageFile(path string, data []byte, mode os.FileMode) (*StagedFile, error) {
	if fi, err := os.Stat(path); err == nil && fi.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	if err := EnsureDir(filepath.Dir(path)); err != nil {
		return nil, err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return nil, err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, err
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return nil, err
	}
	return &StagedFile{tmp: tmp.Name(), path: path}, nil
}

// Commit renames the staged file into place.
func (f *StagedFile) Commit() error {
	return os.Rename(f.tmp, f.path)
}

// Discard removes the temp file. It is a no-op after Commit.
func (f *StagedFile) Discard() {
	os.Remove(f.tmp)
}

// WriteFileAtomic writes data to a temp file next to path, then renames it.
func WriteFileAtomic(path string, data []byte, mode os.FileMode) error {
	f, err := StageFile(path, data, mode)
	if err != nil {
		return err
	}
	defer f.Discard()
	return f.Commit()
}

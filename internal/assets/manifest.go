// Package assets checks that the model files the engines need are present
// before any engine is constructed.
package assets

import (
	"fmt"
	"os"
)

// Resource names one required model file.
type Resource struct {
	Name  string // human readable, e.g. "stt encoder"
	Path  string
	IsDir bool
}

// Manifest is the list of files that must be readable before Initialize.
type Manifest []Resource

// MissingError reports the first resource that could not be used.
type MissingError struct {
	Resource Resource
	Err      error
}

func (e *MissingError) Error() string {
	if e.Resource.Path == "" {
		return fmt.Sprintf("missing model: %s (no path configured)", e.Resource.Name)
	}
	return fmt.Sprintf("missing model: %s at %s: %v", e.Resource.Name, e.Resource.Path, e.Err)
}

func (e *MissingError) Unwrap() error { return e.Err }

// Verify checks every resource in order and returns a *MissingError for the
// first one that is unset, absent, unreadable or of the wrong kind.
func (m Manifest) Verify() error {
	for _, r := range m {
		if err := r.check(); err != nil {
			return &MissingError{Resource: r, Err: err}
		}
	}
	return nil
}

func (r Resource) check() error {
	if r.Path == "" {
		return os.ErrNotExist
	}
	fi, err := os.Stat(r.Path)
	if err != nil {
		return err
	}
	if r.IsDir {
		if !fi.IsDir() {
			return fmt.Errorf("not a directory")
		}
		return nil
	}
	if fi.IsDir() {
		return fmt.Errorf("is a directory")
	}
	f, err := os.Open(r.Path)
	if err != nil {
		return err
	}
	return f.Close()
}

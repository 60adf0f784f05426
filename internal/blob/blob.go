package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/spf13/afero"
)

var (
	ErrExists      = errors.New("object already exists")
	ErrNotFound    = errors.New("object not found")
	ErrInvalidName = errors.New("invalid object name")
)

// Store holds uploaded sketches.
type Store interface {
	// Upload writes a new object. Existing objects are never replaced.
	Upload(ctx context.Context, name string, data []byte, contentType string) error
	PublicURL(name string) string
}

// Object is an open blob ready to be served.
type Object struct {
	io.ReadSeekCloser
	Name    string
	ModTime time.Time
	Size    int64
}

// FS stores objects as files in a flat directory of an afero filesystem.
type FS struct {
	fs      afero.Fs
	baseURL string
}

// NewFS roots the store at dir on fsys. baseURL is the externally visible
// server address; objects are published under <baseURL>/sketches/.
func NewFS(fsys afero.Fs, dir, baseURL string) (*FS, error) {
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("blob: create %s: %w", dir, err)
	}
	return &FS{
		fs:      afero.NewBasePathFs(fsys, dir),
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

// NewDir is NewFS on the OS filesystem.
func NewDir(dir, baseURL string) (*FS, error) {
	return NewFS(afero.NewOsFs(), dir, baseURL)
}

func checkName(name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

func (s *FS) Upload(ctx context.Context, name string, data []byte, contentType string) error {
	if err := checkName(name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := s.fs.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("blob: %s: %w", name, ErrExists)
	}
	if err != nil {
		return fmt.Errorf("blob: create %s: %w", name, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		_ = s.fs.Remove(name)
		return fmt.Errorf("blob: write %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("blob: close %s: %w", name, err)
	}
	return nil
}

func (s *FS) PublicURL(name string) string {
	return s.baseURL + path.Join("/sketches", url.PathEscape(name))
}

// Open returns the object for reading. The caller closes it.
func (s *FS) Open(name string) (*Object, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	f, err := s.fs.Open(name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("blob: %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("blob: open %s: %w", name, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("blob: stat %s: %w", name, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("blob: %s: %w", name, ErrNotFound)
	}
	return &Object{ReadSeekCloser: f, Name: name, ModTime: info.ModTime(), Size: info.Size()}, nil
}

package storage

import (
	"errors"
	"fmt"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// PUBLIC_PREFIX is the URL path the server mounts the upload directory on.
const PUBLIC_PREFIX = "/UPLOAD"

var ErrUnsupportedFormat = errors.New("only jpg, jpeg and png images are accepted")

var allowedExtensions = map[string]struct{}{
	"jpg":  {},
	"jpeg": {},
	"png":  {},
}

// Disk keeps the ID photos sent with the inscription form in a local directory.
type Disk struct {
	dir    string
	logger *zap.Logger
}

func NewDisk(dir string, logger *zap.Logger) (*Disk, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("os.MkdirAll failed: %w", err)
	}
	return &Disk{dir: dir, logger: logger}, nil
}

func (d *Disk) Dir() string {
	return d.dir
}

// Files serves the stored photos by exact name. Directories are reported as missing so the upload folder
// can not be listed.
func (d *Disk) Files() http.FileSystem {
	return photoFS{root: http.Dir(d.dir)}
}

type photoFS struct {
	root http.FileSystem
}

func (p photoFS) Open(name string) (http.File, error) {
	f, err := p.root.Open(name)
	if err != nil {
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, os.ErrNotExist
	}

	return f, nil
}

// Save copies the uploaded file under a random name and returns the public path stored in the players row.
func (d *Disk) Save(fieldName string, fh *multipart.FileHeader) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(fh.Filename), "."))
	if _, ok := allowedExtensions[ext]; !ok {
		return "", fmt.Errorf("%s %q: %w", fieldName, fh.Filename, ErrUnsupportedFormat)
	}

	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("fh.Open failed: %w", err)
	}
	defer src.Close()

	name := fmt.Sprintf("%s.%s", uuid.NewString(), ext)
	dst, err := os.Create(filepath.Join(d.dir, name))
	if err != nil {
		return "", fmt.Errorf("os.Create failed: %w", err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		_ = os.Remove(dst.Name())
		return "", fmt.Errorf("io.Copy failed: %w", err)
	}

	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("dst.Close failed: %w", err)
	}

	d.logger.Debug("Photo stored", zap.String("field", fieldName), zap.String("file", name),
		zap.Int64("size", fh.Size))

	return path.Join(PUBLIC_PREFIX, name), nil
}

// Remove deletes a photo by the public path Save returned. A missing file is not an error.
func (d *Disk) Remove(public string) error {
	name, ok := strings.CutPrefix(public, PUBLIC_PREFIX+"/")
	if !ok || name == "" || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%q is not a stored photo", public)
	}

	if err := os.Remove(filepath.Join(d.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("os.Remove failed: %w", err)
	}
	return nil
}

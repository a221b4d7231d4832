package media

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/angelmondragon/vendorcrm-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/vendorcrm-backend/pkg/errors"
	"github.com/angelmondragon/vendorcrm-backend/pkg/logger"
)

// Folder groups uploads on disk by what they illustrate.
type Folder string

const (
	FolderOrders   Folder = "orders"
	FolderProducts Folder = "products"
)

// Upload describes a stored file.
type Upload struct {
	Path        string `json:"path"`
	ContentType string `json:"contentType"`
	SizeBytes   int64  `json:"sizeBytes"`
}

// Store writes images under a root directory that the API serves statically.
type Store struct {
	root       string
	publicPath string
	maxBytes   int64
	logg       *logger.Logger
	now        func() time.Time
}

func NewStore(cfg config.UploadsConfig, logg *logger.Logger) (*Store, error) {
	root := strings.TrimSpace(cfg.Dir)
	if root == "" {
		return nil, fmt.Errorf("uploads dir required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads dir: %w", err)
	}
	public := "/" + strings.Trim(cfg.PublicPath, "/")
	if public == "/" {
		public = "/uploads"
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Store{
		root:       root,
		publicPath: public,
		maxBytes:   cfg.MaxBytes(),
		logg:       logg,
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

// Root is the directory served at PublicPath.
func (s *Store) Root() string { return s.root }

func (s *Store) PublicPath() string { return s.publicPath }

func (s *Store) MaxBytes() int64 { return s.maxBytes }

// Save validates the content and writes it to <folder>/<yyyy>/<mm>/<id>-<name>.<ext>.
// The returned path is the public URL path.
func (s *Store) Save(ctx context.Context, folder Folder, fileName string, r io.Reader) (*Upload, error) {
	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read upload")
	}
	if len(data) == 0 {
		return nil, pkgerrors.Validation("invalid upload", pkgerrors.FieldError{Field: "image", Message: "file is empty"})
	}
	if int64(len(data)) > s.maxBytes {
		return nil, pkgerrors.Validation("invalid upload", pkgerrors.FieldError{
			Field:   "image",
			Message: fmt.Sprintf("file must be at most %d MB", s.maxBytes>>20),
		})
	}
	kind, ok := sniffImage(data)
	if !ok {
		return nil, pkgerrors.Validation("invalid upload", pkgerrors.FieldError{
			Field:   "image",
			Message: "only " + acceptedLabels() + " images are accepted",
		})
	}

	now := s.now()
	id := uuid.New()
	name := id.String()
	if clean := sanitizeFileName(strings.TrimSuffix(fileName, filepath.Ext(fileName))); clean != "" {
		name += "-" + clean
	}
	rel := path.Join(string(folder), now.Format("2006"), now.Format("01"), name+kind.ext)

	dest := filepath.Join(s.root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create upload folder")
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "write upload")
	}

	upload := &Upload{
		Path:        s.publicPath + "/" + rel,
		ContentType: kind.mime,
		SizeBytes:   int64(len(data)),
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{"path": upload.Path, "size_bytes": upload.SizeBytes}), "media.stored")
	return upload, nil
}

// Remove deletes a previously stored file by its public path. Missing files
// are ignored.
func (s *Store) Remove(ctx context.Context, publicPath string) error {
	rel := strings.TrimPrefix(publicPath, s.publicPath+"/")
	if rel == publicPath || strings.Contains(rel, "..") {
		return fmt.Errorf("path %q is outside the upload root", publicPath)
	}
	if err := os.Remove(filepath.Join(s.root, filepath.FromSlash(rel))); err != nil && !os.IsNotExist(err) {
		return err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{"path": publicPath}), "media.removed")
	return nil
}

func sanitizeFileName(name string) string {
	clean := path.Base(strings.TrimSpace(strings.ReplaceAll(name, "\\", "/")))
	if clean == "." || clean == "/" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(clean))
	for _, r := range clean {
		switch {
		case unicode.IsControl(r):
			continue
		case unicode.IsSpace(r):
			b.WriteRune('-')
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_':
			b.WriteRune(unicode.ToLower(r))
		}
	}
	result := strings.Trim(b.String(), "-_.")
	if len(result) > 60 {
		result = result[:60]
	}
	return result
}

package middleware

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/R3E-Network/recordstore/internal/errors"
	internalhttputil "github.com/R3E-Network/recordstore/internal/httputil"
	"github.com/R3E-Network/recordstore/internal/logging"
)

type uploadKey struct{}

// DefaultImageTypes are the MIME types accepted for cover and group images.
var DefaultImageTypes = []string{"image/jpeg", "image/png", "image/webp", "image/gif"}

// UploadMiddleware stores a single multipart file under dir and exposes its
// generated name to the next handler.
type UploadMiddleware struct {
	dir      string
	maxBytes int64
	allowed  []string
	logger   *logging.Logger
}

// NewUploadMiddleware creates dir if needed. allowed defaults to DefaultImageTypes.
func NewUploadMiddleware(dir string, maxBytes int64, allowed []string, logger *logging.Logger) (*UploadMiddleware, error) {
	if dir == "" {
		return nil, fmt.Errorf("upload dir is required")
	}
	if maxBytes <= 0 {
		return nil, fmt.Errorf("upload max bytes must be positive")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	if len(allowed) == 0 {
		allowed = DefaultImageTypes
	}
	if logger == nil {
		logger = logging.NewDefault("upload")
	}
	return &UploadMiddleware{dir: dir, maxBytes: maxBytes, allowed: allowed, logger: logger}, nil
}

// Dir is the directory files are written to.
func (m *UploadMiddleware) Dir() string {
	return m.dir
}

// Handler reads the multipart field, validates the sniffed content type and
// saves the file. The file is removed again when next responds with an error.
func (m *UploadMiddleware) Handler(field string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Multipart framing adds some overhead on top of the file itself.
			r.Body = http.MaxBytesReader(w, r.Body, m.maxBytes+64<<10)
			if err := r.ParseMultipartForm(m.maxBytes); err != nil {
				var maxErr *http.MaxBytesError
				if stderrors.As(err, &maxErr) {
					internalhttputil.WriteError(w, r, errors.Validation(field, fmt.Sprintf("exceeds %d bytes", m.maxBytes)))
					return
				}
				internalhttputil.WriteError(w, r, errors.BadRequest("expected multipart/form-data body"))
				return
			}
			defer func() {
				if r.MultipartForm != nil {
					_ = r.MultipartForm.RemoveAll()
				}
			}()

			file, _, err := r.FormFile(field)
			if err != nil {
				internalhttputil.WriteError(w, r, errors.Required(field))
				return
			}
			defer file.Close()

			data, err := io.ReadAll(io.LimitReader(file, m.maxBytes+1))
			if err != nil {
				internalhttputil.WriteError(w, r, errors.BadRequest("could not read upload"))
				return
			}
			if int64(len(data)) > m.maxBytes {
				internalhttputil.WriteError(w, r, errors.Validation(field, fmt.Sprintf("exceeds %d bytes", m.maxBytes)))
				return
			}

			detected := mimetype.Detect(data)
			if !mimetype.EqualsAny(detected.String(), m.allowed...) {
				internalhttputil.WriteError(w, r, errors.Validation(field, "unsupported file type "+detected.String()).
					WithDetails("allowed", m.allowed))
				return
			}

			name := uuid.NewString() + detected.Extension()
			if err := os.WriteFile(filepath.Join(m.dir, name), data, 0o644); err != nil {
				m.logger.WithContext(r.Context()).WithError(err).Error("store upload")
				internalhttputil.WriteError(w, r, errors.Internal("could not store upload", err))
				return
			}

			m.logger.WithContext(r.Context()).
				WithField("file", name).
				WithField("mime", detected.String()).
				WithField("bytes", len(data)).
				Info("upload stored")

			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r.WithContext(WithUploadedFile(r.Context(), name)))

			if wrapped.Status() >= http.StatusBadRequest {
				_ = m.Remove(name)
			}
		})
	}
}

// Remove deletes a stored upload. Missing files are ignored.
func (m *UploadMiddleware) Remove(name string) error {
	if name == "" || filepath.Base(name) != name {
		return nil
	}
	err := os.Remove(filepath.Join(m.dir, name))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func WithUploadedFile(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, uploadKey{}, name)
}

// UploadedFile returns the stored file name set by UploadMiddleware.
func UploadedFile(ctx context.Context) string {
	v, _ := ctx.Value(uploadKey{}).(string)
	return v
}

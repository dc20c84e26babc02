package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/R3E-Network/recordstore/internal/logging"
)

// AuditEntry describes one authenticated request.
type AuditEntry struct {
	Time       time.Time `json:"time" db:"occurred_at"`
	User       string    `json:"user" db:"user_id"`
	Role       string    `json:"role" db:"role"`
	Method     string    `json:"method" db:"method"`
	Path       string    `json:"path" db:"path"`
	Status     int       `json:"status" db:"status"`
	RemoteAddr string    `json:"remote_addr,omitempty" db:"remote_addr"`
	UserAgent  string    `json:"user_agent,omitempty" db:"user_agent"`
}

// AuditSink persists entries outside the in-memory ring.
type AuditSink interface {
	Write(ctx context.Context, entry AuditEntry) error
}

// auditReader is implemented by sinks that can serve recent entries.
type auditReader interface {
	Recent(ctx context.Context, limit int) ([]AuditEntry, error)
}

// AuditLog keeps the most recent entries in memory and forwards each one to
// its sinks.
type AuditLog struct {
	mu      sync.Mutex
	entries []AuditEntry
	max     int
	sinks   []AuditSink
	log     *logging.Logger
}

// NewAuditLog keeps up to max entries (200 when max <= 0). Nil sinks are
// skipped.
func NewAuditLog(max int, sinks ...AuditSink) *AuditLog {
	if max <= 0 {
		max = 200
	}
	l := &AuditLog{max: max, log: logging.NewDefault("audit")}
	for _, s := range sinks {
		if s != nil {
			l.sinks = append(l.sinks, s)
		}
	}
	return l
}

// WithLogger sets the logger used to report sink failures.
func (l *AuditLog) WithLogger(log *logging.Logger) *AuditLog {
	if log != nil {
		l.log = log
	}
	return l
}

func (l *AuditLog) add(ctx context.Context, entry AuditEntry) {
	l.mu.Lock()
	l.entries = append(l.entries, entry)
	if len(l.entries) > l.max {
		l.entries = l.entries[len(l.entries)-l.max:]
	}
	sinks := l.sinks
	l.mu.Unlock()

	for _, sink := range sinks {
		// Sink failures never fail the request.
		if err := sink.Write(ctx, entry); err != nil {
			l.log.WithError(err).WithField("path", entry.Path).Warn("audit sink write failed")
		}
	}
}

// List returns up to limit of the newest entries, oldest first. A sink that
// can read back its history is preferred over the in-memory ring.
func (l *AuditLog) List(ctx context.Context, limit int) ([]AuditEntry, error) {
	if limit <= 0 || limit > l.max {
		limit = l.max
	}
	for _, sink := range l.sinks {
		if reader, ok := sink.(auditReader); ok {
			return reader.Recent(ctx, limit)
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	start := 0
	if len(l.entries) > limit {
		start = len(l.entries) - limit
	}
	out := make([]AuditEntry, len(l.entries)-start)
	copy(out, l.entries[start:])
	return out, nil
}

// Middleware records the request once the response status is known. It must
// run after authentication so the caller is in the context.
func (l *AuditLog) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		ctx := r.Context()
		l.add(ctx, AuditEntry{
			Time:       time.Now().UTC(),
			User:       logging.GetUserID(ctx),
			Role:       logging.GetRole(ctx),
			Method:     r.Method,
			Path:       r.URL.Path,
			Status:     rec.status,
			RemoteAddr: r.RemoteAddr,
			UserAgent:  r.UserAgent(),
		})
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.wroteHeader {
		r.status = code
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	r.wroteHeader = true
	return r.ResponseWriter.Write(b)
}

// FileAuditSink appends audit entries as JSONL.
type FileAuditSink struct {
	mu   sync.Mutex
	file *os.File
}

// NewFileAuditSink opens path for appending. An empty path returns nil.
func NewFileAuditSink(path string) (*FileAuditSink, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return nil, err
	}
	return &FileAuditSink{file: f}, nil
}

func (s *FileAuditSink) Write(_ context.Context, entry AuditEntry) error {
	if s == nil || s.file == nil {
		return nil
	}
	b, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.file.Write(append(b, '\n'))
	return err
}

func (s *FileAuditSink) Close() error {
	if s == nil || s.file == nil {
		return nil
	}
	return s.file.Close()
}

// PostgresAuditSink stores entries in the audit_log table.
type PostgresAuditSink struct {
	db      *sqlx.DB
	timeout time.Duration
}

func NewPostgresAuditSink(db *sqlx.DB) *PostgresAuditSink {
	if db == nil {
		return nil
	}
	return &PostgresAuditSink{db: db, timeout: 2 * time.Second}
}

func (s *PostgresAuditSink) Write(ctx context.Context, entry AuditEntry) error {
	if s == nil {
		return nil
	}
	// The request context may already be cancelled once the response is out.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO audit_log (occurred_at, user_id, role, method, path, status, remote_addr, user_agent)
		VALUES (:occurred_at, :user_id, :role, :method, :path, :status, :remote_addr, :user_agent)
	`, entry)
	return err
}

// Recent returns the newest limit entries, oldest first.
func (s *PostgresAuditSink) Recent(ctx context.Context, limit int) ([]AuditEntry, error) {
	entries := []AuditEntry{}
	if s == nil {
		return entries, nil
	}
	err := s.db.SelectContext(ctx, &entries, `
		SELECT occurred_at, user_id, role, method, path, status, remote_addr, user_agent
		FROM (
			SELECT * FROM audit_log ORDER BY occurred_at DESC, id DESC LIMIT $1
		) recent
		ORDER BY occurred_at, id
	`, limit)
	return entries, err
}

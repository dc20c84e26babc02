package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/recordstore/internal/logging"
)

type failingSink struct{ calls int }

func (s *failingSink) Write(context.Context, AuditEntry) error {
	s.calls++
	return fmt.Errorf("sink unavailable")
}

func TestAuditLogKeepsNewestEntries(t *testing.T) {
	log := NewAuditLog(3)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		log.add(ctx, AuditEntry{Path: fmt.Sprintf("/p%d", i)})
	}

	entries, err := log.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "/p2", entries[0].Path)
	assert.Equal(t, "/p4", entries[2].Path)

	entries, err = log.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "/p4", entries[0].Path)
}

func TestAuditMiddlewareCapturesStatusAndCaller(t *testing.T) {
	sink := &failingSink{}
	log := NewAuditLog(10, sink, nil)

	handler := log.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodDelete, "/records/42", nil)
	req = req.WithContext(logging.WithUser(req.Context(), "user-1", "admin"))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusTeapot, resp.Code)
	assert.Equal(t, 1, sink.calls, "sink errors do not stop the request")

	entries, err := log.List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "user-1", entries[0].User)
	assert.Equal(t, "admin", entries[0].Role)
	assert.Equal(t, http.MethodDelete, entries[0].Method)
	assert.Equal(t, http.StatusTeapot, entries[0].Status)
}

func TestFileAuditSinkAppendsJSONLines(t *testing.T) {
	none, err := NewFileAuditSink("")
	require.NoError(t, err)
	assert.Nil(t, none)
	assert.NoError(t, none.Write(context.Background(), AuditEntry{}))

	path := filepath.Join(t.TempDir(), "audit.jsonl")
	sink, err := NewFileAuditSink(path)
	require.NoError(t, err)

	log := NewAuditLog(10, sink)
	log.add(context.Background(), AuditEntry{User: "a", Path: "/cart", Status: 200})
	log.add(context.Background(), AuditEntry{User: "b", Path: "/orders", Status: 201})
	require.NoError(t, sink.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var got []AuditEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry AuditEntry
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		got = append(got, entry)
	}
	require.NoError(t, scanner.Err())
	require.Len(t, got, 2)
	assert.Equal(t, "/orders", got[1].Path)
	assert.Equal(t, 201, got[1].Status)
}

func TestPostgresAuditSink(t *testing.T) {
	assert.Nil(t, NewPostgresAuditSink(nil))

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	sink := NewPostgresAuditSink(sqlx.NewDb(db, "postgres"))

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec("INSERT INTO audit_log").
		WithArgs(at, "user-1", "user", http.MethodPost, "/orders", http.StatusCreated, "10.0.0.1:5000", "curl").
		WillReturnResult(sqlmock.NewResult(1, 1))

	log := NewAuditLog(10, sink)
	log.add(context.Background(), AuditEntry{
		Time: at, User: "user-1", Role: "user", Method: http.MethodPost, Path: "/orders",
		Status: http.StatusCreated, RemoteAddr: "10.0.0.1:5000", UserAgent: "curl",
	})

	rows := sqlmock.NewRows([]string{"occurred_at", "user_id", "role", "method", "path", "status", "remote_addr", "user_agent"}).
		AddRow(at, "user-1", "user", http.MethodPost, "/orders", http.StatusCreated, "10.0.0.1:5000", "curl")
	mock.ExpectQuery("FROM audit_log").WithArgs(5).WillReturnRows(rows)

	entries, err := log.List(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "/orders", entries[0].Path)
	assert.True(t, at.Equal(entries[0].Time))

	require.NoError(t, mock.ExpectationsWereMet())
}

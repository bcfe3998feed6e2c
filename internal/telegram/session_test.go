package telegram_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"tgvault/internal/telegram"

	"github.com/gotd/td/session"
)

func TestSessionStorage_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	s := &telegram.SessionStorage{Path: path}
	ctx := context.Background()

	data := []byte(`{"key":"value"}`)
	if err := s.StoreSession(ctx, data); err != nil {
		t.Fatalf("StoreSession() error: %v", err)
	}

	got, err := s.LoadSession(ctx)
	if err != nil {
		t.Fatalf("LoadSession() error: %v", err)
	}
	if string(got) != string(data) {
		t.Errorf("LoadSession() = %q, want %q", got, data)
	}
}

func TestSessionStorage_NotFound(t *testing.T) {
	s := &telegram.SessionStorage{Path: filepath.Join(t.TempDir(), "missing.json")}

	_, err := s.LoadSession(context.Background())
	if !errors.Is(err, session.ErrNotFound) {
		t.Errorf("LoadSession() error = %v, want session.ErrNotFound", err)
	}
}

func TestSessionStorage_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")

	// Null bytes from a crashed write must read as "no session", not an error.
	if err := os.WriteFile(path, make([]byte, 64), 0o600); err != nil {
		t.Fatal(err)
	}

	s := &telegram.SessionStorage{Path: path}
	_, err := s.LoadSession(context.Background())
	if !errors.Is(err, session.ErrNotFound) {
		t.Errorf("LoadSession() error = %v, want session.ErrNotFound", err)
	}
}

func TestSessionStorage_CreatesDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "session.json")
	s := &telegram.SessionStorage{Path: path}

	if err := s.StoreSession(context.Background(), []byte(`{}`)); err != nil {
		t.Fatalf("StoreSession() error: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("session file not written: %v", err)
	}
}

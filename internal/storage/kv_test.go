package storage

import (
	"path/filepath"
	"testing"
)

func TestSQLiteKVRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	kv, err := NewSQLiteKV(path)
	if err != nil {
		t.Fatalf("open kv: %v", err)
	}

	if _, ok, err := kv.Get("missing"); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}

	if err := kv.Set("sessions", []byte(`[{"id":"a"}]`)); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := kv.Set("sessions", []byte(`[{"id":"b"}]`)); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	value, ok, err := kv.Get("sessions")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if string(value) != `[{"id":"b"}]` {
		t.Fatalf("unexpected value: %s", value)
	}

	if err := kv.Delete("sessions"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := kv.Get("sessions"); ok {
		t.Fatalf("expected miss after delete")
	}
	if err := kv.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestSQLiteKVSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	kv, err := NewSQLiteKV(path)
	if err != nil {
		t.Fatalf("open kv: %v", err)
	}
	if err := kv.Set("active_session", []byte("sess-1")); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := kv.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewSQLiteKV(path)
	if err != nil {
		t.Fatalf("reopen kv: %v", err)
	}
	defer reopened.Close()

	value, ok, err := reopened.Get("active_session")
	if err != nil || !ok {
		t.Fatalf("get after reopen: ok=%v err=%v", ok, err)
	}
	if string(value) != "sess-1" {
		t.Fatalf("unexpected value: %s", value)
	}
}

func TestSQLiteKVEmptyPath(t *testing.T) {
	if _, err := NewSQLiteKV("  "); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

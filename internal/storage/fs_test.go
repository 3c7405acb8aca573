package storage

import (
	"io"
	"strings"
	"testing"
)

func TestFSStoreRoundTrip(t *testing.T) {
	s, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	key, err := s.Put("speaking_responses/abc.webm", strings.NewReader("payload"))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if key != "speaking_responses/abc.webm" {
		t.Fatalf("canonical key = %q", key)
	}

	rc, err := s.Get(key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "payload" {
		t.Fatalf("read back %q", data)
	}

	if err := s.Delete(key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(key); err == nil {
		t.Fatal("get after delete succeeded")
	}
}

func TestFSStorePutEmptyKey(t *testing.T) {
	s, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if _, err := s.Put("", strings.NewReader("x")); err == nil {
		t.Fatal("empty key accepted")
	}
	if err := s.Delete(""); err != nil {
		t.Fatalf("delete empty key: %v", err)
	}
}

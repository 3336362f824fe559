package storage

import (
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestStore(t *testing.T) *DiskStore {
	t.Helper()
	store, err := NewDiskStore(filepath.Join(t.TempDir(), "uploads"))
	if err != nil {
		t.Fatalf("NewDiskStore() error = %v", err)
	}
	return store
}

func dataURL(content string) string {
	return "data:application/octet-stream;base64," + base64.StdEncoding.EncodeToString([]byte(content))
}

func TestDiskStore_SaveRoundtrip(t *testing.T) {
	store := newTestStore(t)

	ref, err := store.Save("cat.png", dataURL("not really a png"))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if !strings.HasSuffix(ref, "_cat.png") {
		t.Errorf("Save() ref = %q, want suffix _cat.png", ref)
	}

	name := filepath.Base(ref)
	data, err := os.ReadFile(filepath.Join(store.Dir(), name))
	if err != nil {
		t.Fatalf("read saved file: %v", err)
	}
	if string(data) != "not really a png" {
		t.Errorf("saved content = %q, want %q", data, "not really a png")
	}
}

func TestDiskStore_SaveUniqueNames(t *testing.T) {
	store := newTestStore(t)
	ref1, err := store.Save("cat.png", dataURL("a"))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	ref2, err := store.Save("cat.png", dataURL("b"))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if ref1 == ref2 {
		t.Errorf("Save() produced colliding refs: %q", ref1)
	}
}

func TestDiskStore_SaveBadPayload(t *testing.T) {
	store := newTestStore(t)
	for _, payload := range []string{"no comma here", "data:text/plain;base64,%%%"} {
		if _, err := store.Save("x.txt", payload); !errors.Is(err, ErrBadPayload) {
			t.Errorf("Save(%q) error = %v, want ErrBadPayload", payload, err)
		}
	}
}

func TestDiskStore_SaveSanitizesFilename(t *testing.T) {
	store := newTestStore(t)
	ref, err := store.Save("../../etc/pass wd", dataURL("x"))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	name := filepath.Base(ref)
	if strings.Contains(name, "..") || strings.Contains(name, "/") || strings.Contains(name, " ") {
		t.Errorf("Save() unsafe stored name %q", name)
	}
	if _, err := os.Stat(filepath.Join(store.Dir(), name)); err != nil {
		t.Errorf("sanitized file not written inside store dir: %v", err)
	}
}

func TestIsInline(t *testing.T) {
	tests := []struct {
		ref  string
		want bool
	}{
		{"/uploads/a.png", true},
		{"/uploads/a.JPG", true},
		{"/uploads/a.webp", true},
		{"/uploads/a.pdf", false},
		{"/uploads/a", false},
	}
	for _, tt := range tests {
		if got := IsInline(tt.ref); got != tt.want {
			t.Errorf("IsInline(%q) = %v, want %v", tt.ref, got, tt.want)
		}
	}
}

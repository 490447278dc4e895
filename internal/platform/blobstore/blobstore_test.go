package blobstore

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestObjectPath(t *testing.T) {
	tenant := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	chart := uuid.MustParse("22222222-2222-2222-2222-222222222222")

	p := ObjectPath(tenant, &chart, "Scan 01.PDF")
	if !strings.HasPrefix(p, tenant.String()+"/"+chart.String()+"/") {
		t.Errorf("unexpected prefix: %s", p)
	}
	if !strings.HasSuffix(p, ".pdf") {
		t.Errorf("expected lowercased extension, got %s", p)
	}

	p = ObjectPath(tenant, nil, "notes")
	parts := strings.Split(p, "/")
	if len(parts) != 3 || parts[1] != "unassigned" {
		t.Fatalf("unexpected unassigned path: %s", p)
	}
	if _, err := uuid.Parse(parts[2]); err != nil {
		t.Errorf("expected bare uuid name without extension, got %s", parts[2])
	}

	p = ObjectPath(tenant, nil, `C:\uploads\..\label.jpeg`)
	if strings.Contains(p, "..") || !strings.HasSuffix(p, ".jpeg") {
		t.Errorf("unexpected path for windows-style name: %s", p)
	}
}

func TestObjectPath_Unique(t *testing.T) {
	tenant := uuid.New()
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		p := ObjectPath(tenant, nil, "same.png")
		if seen[p] {
			t.Fatalf("duplicate path %s", p)
		}
		seen[p] = true
	}
}

func TestPathFromPublicURL(t *testing.T) {
	const prefix = "https://docs.s3.us-east-1.amazonaws.com/"
	tests := []struct {
		name    string
		prefix  string
		url     string
		want    string
		wantErr bool
	}{
		{"plain", prefix, prefix + "t/c/a.pdf", "t/c/a.pdf", false},
		{"query stripped", prefix, prefix + "t/c/a.pdf?v=2", "t/c/a.pdf", false},
		{"escaped", prefix, prefix + "t/c/my%20file.pdf", "t/c/my file.pdf", false},
		{"other host", prefix, "https://cdn.example.com/t/c/a.pdf", "", true},
		{"empty prefix", "", prefix + "t/c/a.pdf", "", true},
		{"prefix only", prefix, prefix, "", true},
		{"traversal", prefix, prefix + "t/../../etc", "", true},
		{"bad escape", prefix, prefix + "t/%zz", "", true},
		{"no trailing slash", "http://host/docs", "http://host/docs/t/x", "t/x", false},
		{"sibling path", "http://host/docs", "http://host/docs-private/t/x", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PathFromPublicURL(tt.prefix, tt.url)
			if tt.wantErr {
				if !errors.Is(err, ErrPathNotDerivable) {
					t.Fatalf("expected ErrPathNotDerivable, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPathFromPublicURL_RoundTrip(t *testing.T) {
	store := NewMemoryStore("http://localhost:9000/docs")
	p := ObjectPath(uuid.New(), nil, "x.png")

	got, err := PathFromPublicURL("http://localhost:9000/docs/", store.PublicURL(p))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != p {
		t.Errorf("got %q, want %q", got, p)
	}
}

func TestMemoryStore_PutGetRemove(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore("http://localhost/docs/")

	data := []byte("%PDF-1.4")
	if err := store.Put(ctx, "t/unassigned/a.pdf", data, "application/pdf"); err != nil {
		t.Fatalf("put: %v", err)
	}
	data[0] = 'X'

	got, ct, ok := store.Get("t/unassigned/a.pdf")
	if !ok || string(got) != "%PDF-1.4" || ct != "application/pdf" {
		t.Fatalf("unexpected object: %q %q %v", got, ct, ok)
	}

	if err := store.Remove(ctx, "t/unassigned/a.pdf"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if store.Len() != 0 {
		t.Errorf("expected empty store, got %d objects", store.Len())
	}
	if err := store.Remove(ctx, "t/unassigned/a.pdf"); !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("expected ErrObjectNotFound, got %v", err)
	}
}

func TestMemoryStore_SignedURL(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore("http://localhost/docs/")
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return fixed }

	if _, err := store.SignedURL(ctx, "missing", time.Hour); !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound, got %v", err)
	}

	_ = store.Put(ctx, "t/c/a.png", []byte("png"), "image/png")
	u, err := store.SignedURL(ctx, "t/c/a.png", time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "http://localhost/docs/t/c/a.png?expires=" + "1767229200"
	if u != want {
		t.Errorf("got %q, want %q", u, want)
	}
}

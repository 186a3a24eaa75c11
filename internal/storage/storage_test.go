package storage

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestMemoryStorageRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage("http://cdn.test/media/")

	if err := s.Upload(ctx, "themes/akurai/logo.webp", strings.NewReader("webp"), 4, "image/webp"); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if err := s.Upload(ctx, "readme.txt", strings.NewReader("hi"), -1, "text/plain"); err != nil {
		t.Fatalf("Upload unknown size: %v", err)
	}

	listing, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(listing) != 2 {
		t.Fatalf("len(listing) = %d, want 2", len(listing))
	}
	for _, o := range listing {
		if o.ID == "themes/akurai/logo.webp" && (o.SizeBytes == nil || *o.SizeBytes != 4) {
			t.Errorf("size = %v, want 4", o.SizeBytes)
		}
		if o.UploadedAt.IsZero() {
			t.Errorf("%s has no upload time", o.ID)
		}
	}

	if err := s.Delete(ctx, "themes/akurai/logo.webp"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, "never/existed.png"); err != nil {
		t.Errorf("Delete of missing key: %v", err)
	}
	listing, _ = s.List(ctx)
	if len(listing) != 1 || listing[0].ID != "readme.txt" {
		t.Errorf("listing after delete = %+v", listing)
	}

	if got := s.PublicURL("a/b.png"); got != "http://cdn.test/media/a/b.png" {
		t.Errorf("PublicURL = %q", got)
	}
}

func TestMemoryStorageSizeMismatch(t *testing.T) {
	s := NewMemoryStorage("")
	err := s.Upload(context.Background(), "a.png", strings.NewReader("abc"), 10, "image/png")
	se, ok := AsError(err)
	if !ok {
		t.Fatalf("err = %v, want *Error", err)
	}
	if se.Status != 400 || se.Key != "a.png" {
		t.Errorf("error = %+v", se)
	}
}

func TestMemoryStorageCancelledList(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMemoryStorage("").List(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestErrorMessage(t *testing.T) {
	base := errors.New("access denied")
	tests := []struct {
		err  *Error
		want string
	}{
		{&Error{Op: "list objects", Err: base}, "list objects: access denied"},
		{&Error{Op: "put object", Key: "a/b.png", Err: base}, `put object "a/b.png": access denied`},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
		if !errors.Is(tt.err, base) {
			t.Error("Unwrap lost the cause")
		}
	}
}

func TestEndpointURL(t *testing.T) {
	tests := []struct {
		endpoint string
		ssl      bool
		want     string
	}{
		{"localhost:9000", false, "http://localhost:9000"},
		{"s3.amazonaws.com", true, "https://s3.amazonaws.com"},
		{"https://r2.example.com", false, "https://r2.example.com"},
	}
	for _, tt := range tests {
		if got := endpointURL(tt.endpoint, tt.ssl); got != tt.want {
			t.Errorf("endpointURL(%q, %v) = %q, want %q", tt.endpoint, tt.ssl, got, tt.want)
		}
	}
}

func TestNewUnknownDriver(t *testing.T) {
	if _, err := New(context.Background(), Config{Driver: "ftp"}); err == nil {
		t.Error("expected error for unknown driver")
	}
	s, err := New(context.Background(), Config{Driver: "memory"})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.(*MemoryStorage); !ok {
		t.Errorf("driver memory returned %T", s)
	}
}

package attachments

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	localstore "articles-backend/internal/shared/storage/object/local"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

func pngBytes(payload int) []byte {
	return append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{0x01}, payload)...)
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(localstore.New(t.TempDir()))
}

func TestStageAcceptsAllowedImageTypes(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	cases := []struct {
		name string
		data []byte
		mime string
	}{
		{"cover.png", pngBytes(16), "image/png"},
		{"photo.jpg", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F'}, "image/jpeg"},
		{"anim.gif", []byte("GIF89a trailing data"), "image/gif"},
	}

	for _, tc := range cases {
		att, err := store.Stage(ctx, tc.name, bytes.NewReader(tc.data))
		if err != nil {
			t.Fatalf("Stage %s: %v", tc.name, err)
		}
		if att.MimeType != tc.mime {
			t.Fatalf("%s: expected mime %s, got %s", tc.name, tc.mime, att.MimeType)
		}
		if att.SizeBytes != int64(len(tc.data)) {
			t.Fatalf("%s: expected size %d, got %d", tc.name, len(tc.data), att.SizeBytes)
		}
		if !strings.HasPrefix(att.Key, "uploads/") {
			t.Fatalf("%s: expected uploads/ key, got %s", tc.name, att.Key)
		}
		if _, err := store.Resolve(ctx, store.PathFor(att)); err != nil {
			t.Fatalf("%s: staged attachment not resolvable: %v", tc.name, err)
		}
	}
}

func TestStageRejectsDisallowedMime(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Stage(context.Background(), "notes.txt", strings.NewReader("plain text, not an image"))
	if !errors.Is(err, ErrUnsupportedMedia) {
		t.Fatalf("expected ErrUnsupportedMedia, got %v", err)
	}
}

func TestStageRejectsOversizeUpload(t *testing.T) {
	store := newTestStore(t)

	att, err := store.Stage(context.Background(), "huge.png", bytes.NewReader(pngBytes(MaxBytes)))
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v (att=%+v)", err, att)
	}
}

func TestStageSanitizesFileName(t *testing.T) {
	store := newTestStore(t)

	att, err := store.Stage(context.Background(), "dir/sub\\evil.png", bytes.NewReader(pngBytes(8)))
	if err != nil {
		t.Fatalf("Stage: %v", err)
	}
	if strings.Contains(att.Name, "/") || strings.Contains(att.Name, "\\") {
		t.Fatalf("expected separators stripped, got %s", att.Name)
	}

	if _, err := store.Stage(context.Background(), "../escape.png", bytes.NewReader(pngBytes(8))); err == nil {
		t.Fatalf("expected traversal name rejected")
	}
}

func TestDiscardRemovesStagedAttachment(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	att, err := store.Stage(ctx, "cover.png", bytes.NewReader(pngBytes(8)))
	if err != nil {
		t.Fatalf("Stage: %v", err)
	}

	store.Discard(ctx, att)

	if _, err := store.Resolve(ctx, store.PathFor(att)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after discard, got %v", err)
	}
}

func TestRetireIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	att, err := store.Stage(ctx, "cover.png", bytes.NewReader(pngBytes(8)))
	if err != nil {
		t.Fatalf("Stage: %v", err)
	}
	ref := store.PathFor(att)

	store.Retire(ctx, ref)
	store.Retire(ctx, ref)
	store.Retire(ctx, "")

	if _, err := store.Resolve(ctx, ref); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after retire, got %v", err)
	}
}

func TestResolveRejectsForeignRefs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, ref := range []string{"", "etc/passwd", "uploads/../../secret", "/uploads/abs"} {
		if _, err := store.Resolve(ctx, ref); !errors.Is(err, ErrNotFound) {
			t.Fatalf("ref %q: expected ErrNotFound, got %v", ref, err)
		}
	}
}

package attachments

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"articles-backend/internal/shared/metrics"
	"articles-backend/internal/shared/storage/object"
	"articles-backend/internal/shared/telemetry"
	"articles-backend/internal/shared/util"
)

// MaxBytes is the largest accepted upload.
const MaxBytes = 5 << 20

const keyPrefix = "uploads"

var (
	// ErrUnsupportedMedia is returned for uploads outside the allowed image types.
	ErrUnsupportedMedia = errors.New("unsupported media type")
	// ErrTooLarge is returned when an upload exceeds MaxBytes.
	ErrTooLarge = errors.New("attachment too large")
	// ErrNotFound is returned when a ref names no stored attachment.
	ErrNotFound = errors.New("attachment not found")
)

var allowedMimes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/gif":  {},
}

// Attachment describes one staged or committed image.
type Attachment struct {
	Name      string
	Key       string
	SizeBytes int64
	MimeType  string
}

// Store owns attachment naming, mime policy, and lifecycle. Bytes live in
// the underlying object store; records reference attachments by the public
// path returned from PathFor.
type Store struct {
	objects object.Store
	now     func() time.Time
}

// NewStore builds a Store over the given object store.
func NewStore(objects object.Store) *Store {
	return &Store{objects: objects, now: time.Now}
}

// Stage validates and persists an incoming upload. The mime type is sniffed
// from the first bytes; disallowed types are rejected before anything is
// written. A staged attachment is uncommitted until a record points at it.
func (s *Store) Stage(ctx context.Context, fileName string, r io.Reader) (Attachment, error) {
	start := time.Now()

	sanitized, err := util.SanitizeFileName(fileName)
	if err != nil {
		return Attachment{}, fmt.Errorf("sanitize file name: %w", err)
	}

	var sniff [512]byte
	n, readErr := io.ReadFull(r, sniff[:])
	if readErr != nil && readErr != io.EOF && readErr != io.ErrUnexpectedEOF {
		return Attachment{}, fmt.Errorf("read sniff: %w", readErr)
	}

	mimeType := strings.TrimSpace(strings.Split(http.DetectContentType(sniff[:n]), ";")[0])
	if _, ok := allowedMimes[mimeType]; !ok {
		metrics.IncAttachmentRejected()
		return Attachment{}, fmt.Errorf("%w: %s", ErrUnsupportedMedia, mimeType)
	}

	name := fmt.Sprintf("%d-%s", s.now().UnixMilli(), sanitized)
	key := path.Join(keyPrefix, name)

	body := io.MultiReader(bytes.NewReader(sniff[:n]), io.LimitReader(r, MaxBytes))
	size, err := s.objects.Save(ctx, key, body)
	if err != nil {
		return Attachment{}, fmt.Errorf("stage attachment: %w", err)
	}
	if size > MaxBytes {
		metrics.IncAttachmentRejected()
		if delErr := s.objects.Delete(ctx, key); delErr != nil {
			s.warnCleanup("stage.oversize", key, delErr)
		}
		return Attachment{}, ErrTooLarge
	}

	metrics.IncAttachmentStaged()
	metrics.ObserveStageDurationMs(float64(time.Since(start).Microseconds()) / 1000.0)

	return Attachment{
		Name:      name,
		Key:       key,
		SizeBytes: size,
		MimeType:  mimeType,
	}, nil
}

// Resolve maps a public path back to a staged attachment, verifying the
// object exists. Records must never point at a missing file, so callers
// resolve before committing a ref they did not stage themselves.
func (s *Store) Resolve(ctx context.Context, ref string) (Attachment, error) {
	key, err := refToKey(ref)
	if err != nil {
		return Attachment{}, err
	}

	rc, err := s.objects.Open(ctx, key)
	if err != nil {
		if errors.Is(err, object.ErrNotFound) {
			return Attachment{}, ErrNotFound
		}
		return Attachment{}, fmt.Errorf("resolve attachment: %w", err)
	}
	rc.Close()

	return Attachment{Name: path.Base(key), Key: key}, nil
}

// Open streams a stored attachment by its public path. The caller closes
// the reader.
func (s *Store) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	key, err := refToKey(ref)
	if err != nil {
		return nil, err
	}
	rc, err := s.objects.Open(ctx, key)
	if err != nil {
		if errors.Is(err, object.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("open attachment: %w", err)
	}
	return rc, nil
}

// Discard deletes a staged attachment that was never committed. Best-effort:
// failures are logged and never surfaced, because the response is already
// determined by the record-store outcome.
func (s *Store) Discard(ctx context.Context, att Attachment) {
	if att.Key == "" {
		return
	}
	if err := s.objects.Delete(ctx, att.Key); err != nil {
		s.warnCleanup("discard", att.Key, err)
		return
	}
	metrics.IncAttachmentDiscarded()
}

// Retire deletes a previously committed attachment once superseded or
// cleared. Same best-effort contract as Discard; retiring an already
// deleted attachment is a no-op.
func (s *Store) Retire(ctx context.Context, ref string) {
	if ref == "" {
		return
	}
	key, err := refToKey(ref)
	if err != nil {
		s.warnCleanup("retire", ref, err)
		return
	}
	if err := s.objects.Delete(ctx, key); err != nil {
		s.warnCleanup("retire", key, err)
		return
	}
	metrics.IncAttachmentRetired()
}

// PathFor returns the public path stored in a record's attachment ref.
func (s *Store) PathFor(att Attachment) string {
	return att.Key
}

func (s *Store) warnCleanup(op, key string, err error) {
	metrics.IncAttachmentCleanupFailed()
	telemetry.Warn("attachment.cleanup_failed", map[string]any{
		"op":  op,
		"key": key,
		"err": err.Error(),
	})
}

func refToKey(ref string) (string, error) {
	clean := path.Clean(strings.TrimSpace(ref))
	if !strings.HasPrefix(clean, keyPrefix+"/") || strings.Contains(clean, "..") {
		return "", fmt.Errorf("%w: invalid ref", ErrNotFound)
	}
	return clean, nil
}

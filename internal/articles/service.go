package articles

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"articles-backend/internal/attachments"
	"articles-backend/internal/resources"
)

// ErrInvalidInput wraps request validation failures.
var ErrInvalidInput = errors.New("invalid input")

const maxTitleLen = 200

type Service struct {
	Repo        Repo
	Attachments *attachments.Store
	Coordinator *resources.Coordinator
}

func NewService(repo Repo, store *attachments.Store, coordinator *resources.Coordinator) *Service {
	return &Service{Repo: repo, Attachments: store, Coordinator: coordinator}
}

// Draft is the input for a new article. ImageRef, when set, must name a
// previously uploaded attachment.
type Draft struct {
	AuthorID int64
	Title    string
	Body     string
	ImageRef string
}

// Create validates the draft and persists it. A dangling image ref is
// rejected so no article ever points at a missing file.
func (s *Service) Create(ctx context.Context, draft Draft) (Article, error) {
	draft.Title = strings.TrimSpace(draft.Title)
	if err := validateTitle(draft.Title); err != nil {
		return Article{}, err
	}

	var staged *attachments.Attachment
	if draft.ImageRef != "" {
		att, err := s.Attachments.Resolve(ctx, draft.ImageRef)
		if err != nil {
			if errors.Is(err, attachments.ErrNotFound) {
				return Article{}, fmt.Errorf("%w: image not found", ErrInvalidInput)
			}
			return Article{}, err
		}
		staged = &att
	}

	created, err := s.Repo.Create(ctx, Article{
		AuthorID: draft.AuthorID,
		Title:    draft.Title,
		Body:     draft.Body,
		ImageRef: draft.ImageRef,
	})
	if err != nil {
		// The record never existed, so the uploaded image must not linger.
		if staged != nil {
			s.Attachments.Discard(ctx, *staged)
		}
		return Article{}, err
	}
	return s.Repo.GetByID(ctx, created.ID, draft.AuthorID)
}

func (s *Service) Get(ctx context.Context, id, viewerID int64) (Article, error) {
	return s.Repo.GetByID(ctx, id, viewerID)
}

func (s *Service) List(ctx context.Context, q ListQuery) ([]Article, error) {
	return s.Repo.List(ctx, q)
}

// Update carries the tri-state article fields. Image present-and-empty (or
// null) detaches the current image; a non-empty value must name a previously
// uploaded attachment.
type Update struct {
	Title resources.Opt `json:"title"`
	Body  resources.Opt `json:"body"`
	Image resources.Opt `json:"imageUrl"`
}

// Update runs the article update through the coordinator. Only the author
// may update; the old image is retired only after the new ref is durable.
func (s *Service) Update(ctx context.Context, id, principal int64, upd Update) (Article, error) {
	req := resources.UpdateRequest{
		ID:        id,
		Principal: principal,
		RefColumn: "image_ref",
		Build: func(ctx context.Context, snap resources.Snapshot, cs *resources.ChangeSet) error {
			if upd.Title.Present() {
				title := strings.TrimSpace(upd.Title.String())
				if err := validateTitle(title); err != nil {
					return err
				}
				if title != snap.Fields["title"] {
					cs.Force("title", title)
				}
			}
			// Body may be cleared to empty, never to NULL.
			if upd.Body.Present() && upd.Body.String() != snap.Fields["body"] {
				cs.Force("body", upd.Body.String())
			}
			return nil
		},
	}

	switch {
	case upd.Image.Present() && !upd.Image.Cleared():
		att, err := s.Attachments.Resolve(ctx, upd.Image.String())
		if err != nil {
			if errors.Is(err, attachments.ErrNotFound) {
				return Article{}, fmt.Errorf("%w: image not found", ErrInvalidInput)
			}
			return Article{}, err
		}
		req.Staged = &att
	case upd.Image.Cleared():
		req.Clear = true
	}

	if err := s.Coordinator.Update(ctx, s.Repo, req); err != nil {
		return Article{}, err
	}
	return s.Repo.GetByID(ctx, id, principal)
}

// Delete removes an article after the author guard and retires its image.
func (s *Service) Delete(ctx context.Context, id, principal int64) error {
	return s.Coordinator.Delete(ctx, s.Repo, id, principal)
}

// ToggleLike flips the viewer's like and returns the new state.
func (s *Service) ToggleLike(ctx context.Context, id, userID int64) (bool, int64, error) {
	return s.Repo.ToggleLike(ctx, id, userID)
}

func validateTitle(title string) error {
	if title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if len(title) > maxTitleLen {
		return fmt.Errorf("%w: title exceeds %d characters", ErrInvalidInput, maxTitleLen)
	}
	return nil
}

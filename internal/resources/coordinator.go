package resources

import (
	"context"
	"fmt"

	"articles-backend/internal/attachments"
)

// Snapshot is the slice of a record the coordinator needs: identity,
// ownership, the current attachment ref, and the current field values the
// request builder diffs against.
type Snapshot struct {
	ID            int64
	OwnerID       int64
	AttachmentRef string
	Fields        map[string]string
}

// Record is a persisted resource the coordinator can update. Load returns
// ErrNotFound for missing ids; Apply writes the change set and returns
// ErrNotFound when the row vanished between Load and Apply.
type Record interface {
	Load(ctx context.Context, id int64) (Snapshot, error)
	Apply(ctx context.Context, id int64, cs *ChangeSet) error
}

// Removable is a Record that also supports deletion.
type Removable interface {
	Record
	Remove(ctx context.Context, id int64) error
}

// UpdateRequest describes one coordinated update. Staged is a freshly staged
// attachment to commit, Clear detaches the current one; they are mutually
// exclusive and Staged wins. Build diffs the caller's fields into the change
// set and may reject the request (validation, uniqueness) before anything is
// written.
type UpdateRequest struct {
	ID        int64
	Principal int64
	Staged    *attachments.Attachment
	Clear     bool
	RefColumn string
	Build     func(ctx context.Context, snap Snapshot, cs *ChangeSet) error
}

// Coordinator sequences record updates against their attachments so that a
// record never points at a missing file. The new ref is written before the
// old attachment is retired, and a staged attachment that fails to commit is
// discarded instead of leaking.
type Coordinator struct {
	attachments *attachments.Store
}

// NewCoordinator builds a Coordinator over the given attachment store.
func NewCoordinator(store *attachments.Store) *Coordinator {
	return &Coordinator{attachments: store}
}

// Update runs the update lifecycle: guard ownership, build the minimal
// change set, persist it, then retire the superseded attachment. Any abort
// before the record write discards the staged attachment. An empty change
// set is a successful no-op.
func (c *Coordinator) Update(ctx context.Context, rec Record, req UpdateRequest) error {
	discardStaged := req.Staged != nil

	snap, err := rec.Load(ctx, req.ID)
	if err != nil {
		c.abort(ctx, req, discardStaged)
		return err
	}
	if snap.OwnerID != req.Principal {
		c.abort(ctx, req, discardStaged)
		return ErrForbidden
	}

	cs := &ChangeSet{}
	if req.Build != nil {
		if err := req.Build(ctx, snap, cs); err != nil {
			c.abort(ctx, req, discardStaged)
			return err
		}
	}

	var retire string
	switch {
	case req.Staged != nil:
		newRef := c.attachments.PathFor(*req.Staged)
		if newRef == snap.AttachmentRef {
			// Re-sent the current attachment: the file is live, keep it.
			discardStaged = false
			break
		}
		if req.RefColumn == "" {
			c.abort(ctx, req, discardStaged)
			return fmt.Errorf("staged attachment without ref column")
		}
		cs.Force(req.RefColumn, newRef)
		retire = snap.AttachmentRef
	case req.Clear && snap.AttachmentRef != "":
		cs.Force(req.RefColumn, nil)
		retire = snap.AttachmentRef
	}

	if cs.Empty() {
		return nil
	}

	if err := rec.Apply(ctx, req.ID, cs); err != nil {
		c.abort(ctx, req, discardStaged)
		return err
	}

	c.attachments.Retire(ctx, retire)
	return nil
}

// Delete removes a record after the ownership guard and retires its
// attachment once the row is gone.
func (c *Coordinator) Delete(ctx context.Context, rec Removable, id, principal int64) error {
	snap, err := rec.Load(ctx, id)
	if err != nil {
		return err
	}
	if snap.OwnerID != principal {
		return ErrForbidden
	}

	if err := rec.Remove(ctx, id); err != nil {
		return err
	}

	c.attachments.Retire(ctx, snap.AttachmentRef)
	return nil
}

func (c *Coordinator) abort(ctx context.Context, req UpdateRequest, discardStaged bool) {
	if discardStaged && req.Staged != nil {
		c.attachments.Discard(ctx, *req.Staged)
	}
}

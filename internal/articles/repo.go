package articles

import (
	"context"

	"articles-backend/internal/resources"
)

// ErrNotFound mirrors the coordinator's not-found so handlers map one error.
var ErrNotFound = resources.ErrNotFound

// ListQuery bounds a listing page. Zero Limit means the default page size.
type ListQuery struct {
	ViewerID int64
	Limit    int
	Offset   int
}

const defaultPageSize = 20
const maxPageSize = 100

func (q ListQuery) bounds() (int, int) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// Repo persists articles. It doubles as a resources.Removable so updates and
// deletes run through the update coordinator.
type Repo interface {
	resources.Removable

	Create(ctx context.Context, article Article) (Article, error)
	GetByID(ctx context.Context, id, viewerID int64) (Article, error)
	List(ctx context.Context, q ListQuery) ([]Article, error)
	ToggleLike(ctx context.Context, articleID, userID int64) (liked bool, likes int64, err error)
}

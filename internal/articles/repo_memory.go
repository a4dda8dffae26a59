package articles

import (
	"context"
	"sort"
	"sync"
	"time"

	"articles-backend/internal/resources"
)

// AuthorLookup resolves author display names for the memory repo. The
// Postgres repo joins users directly.
type AuthorLookup func(ctx context.Context, id int64) (string, error)

// MemoryRepo is an in-memory Repo for development and tests.
type MemoryRepo struct {
	mu       sync.RWMutex
	nextID   int64
	articles map[int64]Article
	likes    map[int64]map[int64]struct{}
	author   AuthorLookup
}

func NewMemoryRepo(author AuthorLookup) *MemoryRepo {
	return &MemoryRepo{
		nextID:   1,
		articles: make(map[int64]Article),
		likes:    make(map[int64]map[int64]struct{}),
		author:   author,
	}
}

func (r *MemoryRepo) Create(ctx context.Context, article Article) (Article, error) {
	if err := ctx.Err(); err != nil {
		return Article{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	article.ID = r.nextID
	r.nextID++
	article.PublishedAt = now
	article.UpdatedAt = now
	r.articles[article.ID] = article
	return article, nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, id, viewerID int64) (Article, error) {
	if err := ctx.Err(); err != nil {
		return Article{}, err
	}
	r.mu.RLock()
	article, ok := r.articles[id]
	if !ok {
		r.mu.RUnlock()
		return Article{}, ErrNotFound
	}
	article.Likes = int64(len(r.likes[id]))
	_, article.LikedByViewer = r.likes[id][viewerID]
	r.mu.RUnlock()

	return r.withAuthor(ctx, article)
}

func (r *MemoryRepo) List(ctx context.Context, q ListQuery) ([]Article, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	limit, offset := q.bounds()

	r.mu.RLock()
	all := make([]Article, 0, len(r.articles))
	for id, article := range r.articles {
		article.Likes = int64(len(r.likes[id]))
		_, article.LikedByViewer = r.likes[id][q.ViewerID]
		all = append(all, article)
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].PublishedAt.Equal(all[j].PublishedAt) {
			return all[i].PublishedAt.After(all[j].PublishedAt)
		}
		return all[i].ID > all[j].ID
	})

	if offset >= len(all) {
		return []Article{}, nil
	}
	all = all[offset:]
	if len(all) > limit {
		all = all[:limit]
	}

	out := make([]Article, 0, len(all))
	for _, article := range all {
		withAuthor, err := r.withAuthor(ctx, article)
		if err != nil {
			return nil, err
		}
		out = append(out, withAuthor)
	}
	return out, nil
}

func (r *MemoryRepo) ToggleLike(ctx context.Context, articleID, userID int64) (bool, int64, error) {
	if err := ctx.Err(); err != nil {
		return false, 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.articles[articleID]; !ok {
		return false, 0, ErrNotFound
	}
	set, ok := r.likes[articleID]
	if !ok {
		set = make(map[int64]struct{})
		r.likes[articleID] = set
	}
	if _, liked := set[userID]; liked {
		delete(set, userID)
		return false, int64(len(set)), nil
	}
	set[userID] = struct{}{}
	return true, int64(len(set)), nil
}

func (r *MemoryRepo) Load(ctx context.Context, id int64) (resources.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return resources.Snapshot{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	article, ok := r.articles[id]
	if !ok {
		return resources.Snapshot{}, ErrNotFound
	}
	return resources.Snapshot{
		ID:            article.ID,
		OwnerID:       article.AuthorID,
		AttachmentRef: article.ImageRef,
		Fields: map[string]string{
			"title": article.Title,
			"body":  article.Body,
		},
	}, nil
}

func (r *MemoryRepo) Apply(ctx context.Context, id int64, cs *resources.ChangeSet) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	article, ok := r.articles[id]
	if !ok {
		return ErrNotFound
	}
	for _, a := range cs.Assignments() {
		value := ""
		if a.Value != nil {
			value = a.Value.(string)
		}
		switch a.Column {
		case "title":
			article.Title = value
		case "body":
			article.Body = value
		case "image_ref":
			article.ImageRef = value
		}
	}
	article.UpdatedAt = time.Now().UTC()
	r.articles[id] = article
	return nil
}

func (r *MemoryRepo) Remove(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.articles[id]; !ok {
		return ErrNotFound
	}
	delete(r.articles, id)
	delete(r.likes, id)
	return nil
}

func (r *MemoryRepo) withAuthor(ctx context.Context, article Article) (Article, error) {
	if r.author == nil {
		return article, nil
	}
	name, err := r.author(ctx, article.AuthorID)
	if err != nil {
		return Article{}, err
	}
	article.AuthorName = name
	return article, nil
}

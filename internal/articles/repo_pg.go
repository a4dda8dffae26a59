package articles

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"articles-backend/internal/resources"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const articleColumns = `
a.id, a.author_id, u.name, a.title, a.body, a.image_ref, a.published_at, a.updated_at,
(SELECT count(*) FROM article_likes l WHERE l.article_id = a.id),
EXISTS (SELECT 1 FROM article_likes l WHERE l.article_id = a.id AND l.user_id = $1)`

func (r *PGRepo) Create(ctx context.Context, article Article) (Article, error) {
	const query = `
INSERT INTO articles (author_id, title, body, image_ref, published_at, updated_at)
VALUES ($1, $2, $3, $4, now(), now())
RETURNING id, published_at, updated_at`
	err := r.DB.QueryRowContext(ctx, query,
		article.AuthorID,
		article.Title,
		article.Body,
		nullableString(article.ImageRef),
	).Scan(&article.ID, &article.PublishedAt, &article.UpdatedAt)
	if err != nil {
		return Article{}, err
	}
	return article, nil
}

func (r *PGRepo) GetByID(ctx context.Context, id, viewerID int64) (Article, error) {
	query := `
SELECT` + articleColumns + `
FROM articles a
JOIN users u ON u.id = a.author_id
WHERE a.id = $2
LIMIT 1`
	article, err := scanArticle(r.DB.QueryRowContext(ctx, query, viewerID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Article{}, ErrNotFound
		}
		return Article{}, err
	}
	return article, nil
}

func (r *PGRepo) List(ctx context.Context, q ListQuery) ([]Article, error) {
	limit, offset := q.bounds()
	query := `
SELECT` + articleColumns + `
FROM articles a
JOIN users u ON u.id = a.author_id
ORDER BY a.published_at DESC, a.id DESC
LIMIT $2 OFFSET $3`
	rows, err := r.DB.QueryContext(ctx, query, q.ViewerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := make([]Article, 0, limit)
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, article)
	}
	return list, rows.Err()
}

// ToggleLike flips the viewer's like inside one transaction: a delete that
// removes nothing means the like was absent, so it is inserted instead.
func (r *PGRepo) ToggleLike(ctx context.Context, articleID, userID int64) (bool, int64, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, 0, err
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM articles WHERE id = $1)`, articleID).Scan(&exists); err != nil {
		return false, 0, err
	}
	if !exists {
		return false, 0, ErrNotFound
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM article_likes WHERE article_id = $1 AND user_id = $2`, articleID, userID)
	if err != nil {
		return false, 0, err
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return false, 0, err
	}

	liked := removed == 0
	if liked {
		if _, err := tx.ExecContext(ctx, `INSERT INTO article_likes (article_id, user_id) VALUES ($1, $2)`, articleID, userID); err != nil {
			return false, 0, err
		}
	}

	var likes int64
	if err := tx.QueryRowContext(ctx, `SELECT count(*) FROM article_likes WHERE article_id = $1`, articleID).Scan(&likes); err != nil {
		return false, 0, err
	}

	if err := tx.Commit(); err != nil {
		return false, 0, err
	}
	return liked, likes, nil
}

// Load snapshots the article for the update coordinator.
func (r *PGRepo) Load(ctx context.Context, id int64) (resources.Snapshot, error) {
	const query = `
SELECT id, author_id, title, body, image_ref
FROM articles
WHERE id = $1
LIMIT 1`
	var snap resources.Snapshot
	var title, body string
	var imageRef sql.NullString
	err := r.DB.QueryRowContext(ctx, query, id).Scan(&snap.ID, &snap.OwnerID, &title, &body, &imageRef)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return resources.Snapshot{}, ErrNotFound
		}
		return resources.Snapshot{}, err
	}
	snap.AttachmentRef = imageRef.String
	snap.Fields = map[string]string{"title": title, "body": body}
	return snap, nil
}

// Apply writes the change set as a dynamic UPDATE over exactly the changed
// columns.
func (r *PGRepo) Apply(ctx context.Context, id int64, cs *resources.ChangeSet) error {
	clause, args := cs.SetClause(1)
	query := fmt.Sprintf(`UPDATE articles SET %s, updated_at = now() WHERE id = $%d`, clause, len(args)+1)
	args = append(args, id)

	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Remove deletes the article row; likes go with it via the cascade.
func (r *PGRepo) Remove(ctx context.Context, id int64) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM articles WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArticle(row rowScanner) (Article, error) {
	var a Article
	var imageRef sql.NullString
	err := row.Scan(
		&a.ID,
		&a.AuthorID,
		&a.AuthorName,
		&a.Title,
		&a.Body,
		&imageRef,
		&a.PublishedAt,
		&a.UpdatedAt,
		&a.Likes,
		&a.LikedByViewer,
	)
	if err != nil {
		return Article{}, err
	}
	a.ImageRef = imageRef.String
	return a, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

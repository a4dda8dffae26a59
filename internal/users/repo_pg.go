package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"articles-backend/internal/resources"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const pgUniqueViolation = "23505"

func (r *PGRepo) Create(ctx context.Context, user User) (User, error) {
	const query = `
INSERT INTO users (name, email, password_hash, avatar_ref, created_at, updated_at)
VALUES ($1, $2, $3, $4, now(), now())
RETURNING id, created_at, updated_at`
	err := r.DB.QueryRowContext(ctx, query,
		user.Name,
		user.Email,
		nullableString(user.PasswordHash),
		nullableString(user.AvatarRef),
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return User{}, ErrEmailTaken
		}
		return User{}, err
	}
	return user, nil
}

func (r *PGRepo) GetByID(ctx context.Context, id int64) (User, error) {
	return r.getBy(ctx, "id = $1", id)
}

func (r *PGRepo) GetByEmail(ctx context.Context, email string) (User, error) {
	return r.getBy(ctx, "email = $1", email)
}

func (r *PGRepo) getBy(ctx context.Context, where string, arg any) (User, error) {
	query := `
SELECT id, name, email, password_hash, avatar_ref, created_at, updated_at
FROM users
WHERE ` + where + `
LIMIT 1`
	var user User
	var passwordHash sql.NullString
	var avatarRef sql.NullString
	err := r.DB.QueryRowContext(ctx, query, arg).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&passwordHash,
		&avatarRef,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	user.PasswordHash = passwordHash.String
	user.AvatarRef = avatarRef.String
	return user, nil
}

func (r *PGRepo) EmailTaken(ctx context.Context, email string, excludeID int64) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1 AND id <> $2)`
	var taken bool
	if err := r.DB.QueryRowContext(ctx, query, email, excludeID).Scan(&taken); err != nil {
		return false, err
	}
	return taken, nil
}

// Load snapshots the account for the update coordinator. Accounts are owned
// by themselves.
func (r *PGRepo) Load(ctx context.Context, id int64) (resources.Snapshot, error) {
	user, err := r.GetByID(ctx, id)
	if err != nil {
		return resources.Snapshot{}, err
	}
	return resources.Snapshot{
		ID:            user.ID,
		OwnerID:       user.ID,
		AttachmentRef: user.AvatarRef,
		Fields: map[string]string{
			"name":  user.Name,
			"email": user.Email,
		},
	}, nil
}

// Apply writes the change set as a dynamic UPDATE over exactly the changed
// columns.
func (r *PGRepo) Apply(ctx context.Context, id int64, cs *resources.ChangeSet) error {
	clause, args := cs.SetClause(1)
	query := fmt.Sprintf(`UPDATE users SET %s, updated_at = now() WHERE id = $%d`, clause, len(args)+1)
	args = append(args, id)

	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailTaken
		}
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

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

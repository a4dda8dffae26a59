package users

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"articles-backend/internal/resources"
)

func newMockRepo(t *testing.T) (*PGRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return &PGRepo{DB: db}, mock
}

func TestPGRepoCreateReturnsGeneratedID(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	mock.ExpectQuery("INSERT INTO users").
		WithArgs("Ana", "ana@example.com", sqlmock.AnyArg(), nil).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(42), now, now))

	user, err := repo.Create(context.Background(), User{Name: "Ana", Email: "ana@example.com", PasswordHash: "hash"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if user.ID != 42 {
		t.Fatalf("expected id 42, got %d", user.ID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoCreateMapsUniqueViolation(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("INSERT INTO users").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})

	_, err := repo.Create(context.Background(), User{Name: "Ana", Email: "ana@example.com", PasswordHash: "hash"})
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestPGRepoGetByEmailNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("SELECT id, name, email").
		WithArgs("ghost@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "password_hash", "avatar_ref", "created_at", "updated_at"}))

	_, err := repo.GetByEmail(context.Background(), "ghost@example.com")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGRepoApplyUpdatesOnlyChangedColumns(t *testing.T) {
	repo, mock := newMockRepo(t)

	cs := &resources.ChangeSet{}
	cs.Force("name", "Ana Maria")
	cs.Force("avatar_ref", nil)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE users SET name = $1, avatar_ref = $2, updated_at = now() WHERE id = $3`)).
		WithArgs("Ana Maria", nil, int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Apply(context.Background(), 42, cs); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoApplyZeroRowsIsNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	cs := &resources.ChangeSet{}
	cs.Force("name", "Ana")

	mock.ExpectExec("UPDATE users SET").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Apply(context.Background(), 404, cs); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGRepoLoadSnapshotsOwnership(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT id, name, email").
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "password_hash", "avatar_ref", "created_at", "updated_at"}).
			AddRow(int64(42), "Ana", "ana@example.com", "hash", "uploads/1-a.png", now, now))

	snap, err := repo.Load(context.Background(), 42)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if snap.OwnerID != 42 || snap.AttachmentRef != "uploads/1-a.png" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if snap.Fields["email"] != "ana@example.com" {
		t.Fatalf("expected email field, got %+v", snap.Fields)
	}
}

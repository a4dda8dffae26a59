package users

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"articles-backend/internal/attachments"
	"articles-backend/internal/resources"
	"articles-backend/internal/shared/auth"
)

// ErrInvalidInput wraps request validation failures.
var ErrInvalidInput = errors.New("invalid input")

const minPasswordLen = 6

type Service struct {
	Repo        Repo
	Coordinator *resources.Coordinator
	Issuer      *auth.TokenIssuer
}

func NewService(repo Repo, coordinator *resources.Coordinator, issuer *auth.TokenIssuer) *Service {
	return &Service{Repo: repo, Coordinator: coordinator, Issuer: issuer}
}

// Register creates an account and returns it with a signed token.
func (s *Service) Register(ctx context.Context, name, email, password string) (User, string, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)

	if name == "" {
		return User{}, "", fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if err := validateEmail(email); err != nil {
		return User{}, "", err
	}
	if err := validatePassword(password); err != nil {
		return User{}, "", err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return User{}, "", err
	}

	user, err := s.Repo.Create(ctx, User{Name: name, Email: email, PasswordHash: hash})
	if err != nil {
		return User{}, "", err
	}

	token, err := s.token(user)
	if err != nil {
		return User{}, "", err
	}
	return user, token, nil
}

// Login verifies credentials and returns the account with a signed token.
// Unknown emails and wrong passwords both map to ErrBadCredentials so the
// response never reveals which part failed.
func (s *Service) Login(ctx context.Context, email, password string) (User, string, error) {
	user, err := s.Repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, "", auth.ErrBadCredentials
		}
		return User{}, "", err
	}

	if err := auth.CheckPassword(user.PasswordHash, password); err != nil {
		return User{}, "", err
	}

	token, err := s.token(user)
	if err != nil {
		return User{}, "", err
	}
	return user, token, nil
}

// Profile returns the account by id.
func (s *Service) Profile(ctx context.Context, id int64) (User, error) {
	return s.Repo.GetByID(ctx, id)
}

// ProfileUpdate carries the tri-state profile fields plus the avatar intent:
// Avatar replaces, ClearAvatar detaches, neither keeps the current one.
type ProfileUpdate struct {
	Name        resources.Opt
	Email       resources.Opt
	Password    resources.Opt
	Avatar      *attachments.Attachment
	ClearAvatar bool
}

// UpdateProfile runs the account update through the coordinator so the
// avatar lifecycle follows the record write.
func (s *Service) UpdateProfile(ctx context.Context, id int64, upd ProfileUpdate) (User, error) {
	err := s.Coordinator.Update(ctx, s.Repo, resources.UpdateRequest{
		ID:        id,
		Principal: id,
		Staged:    upd.Avatar,
		Clear:     upd.ClearAvatar,
		RefColumn: "avatar_ref",
		Build: func(ctx context.Context, snap resources.Snapshot, cs *resources.ChangeSet) error {
			if upd.Name.Present() && upd.Name.Cleared() {
				return fmt.Errorf("%w: name cannot be empty", ErrInvalidInput)
			}
			cs.Compare("name", upd.Name, snap.Fields["name"])

			if upd.Email.Present() {
				email := normalizeEmail(upd.Email.String())
				if err := validateEmail(email); err != nil {
					return err
				}
				if email != snap.Fields["email"] {
					taken, err := s.Repo.EmailTaken(ctx, email, id)
					if err != nil {
						return err
					}
					if taken {
						return ErrEmailTaken
					}
					cs.Force("email", email)
				}
			}

			if upd.Password.Present() {
				if err := validatePassword(upd.Password.String()); err != nil {
					return err
				}
				hash, err := auth.HashPassword(upd.Password.String())
				if err != nil {
					return err
				}
				cs.Force("password_hash", hash)
			}
			return nil
		},
	})
	if err != nil {
		return User{}, err
	}
	return s.Repo.GetByID(ctx, id)
}

// FindOrCreateFromGoogle maps a verified Google identity to an account,
// creating a password-less one on first sign-in.
func (s *Service) FindOrCreateFromGoogle(ctx context.Context, email, name string) (User, error) {
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return User{}, err
	}

	user, err := s.Repo.GetByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return User{}, err
	}

	if strings.TrimSpace(name) == "" {
		name = email[:strings.Index(email, "@")]
	}
	return s.Repo.Create(ctx, User{Name: strings.TrimSpace(name), Email: email})
}

// Token signs a JWT for the given user. Used by login, register, and the
// Google callback.
func (s *Service) Token(user User) (string, error) {
	return s.token(user)
}

func (s *Service) token(user User) (string, error) {
	return s.Issuer.Sign(auth.Claims{Sub: user.ID, Email: user.Email, Name: user.Name})
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return fmt.Errorf("%w: malformed email", ErrInvalidInput)
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < minPasswordLen {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLen)
	}
	return nil
}

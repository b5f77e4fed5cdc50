package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/karmakanban/karmakanban-backend/internal/domain"
	"github.com/karmakanban/karmakanban-backend/internal/repository/ports"
	"github.com/karmakanban/karmakanban-backend/internal/util"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailAlreadyUsed   = errors.New("email already registered")
	ErrPasswordTooWeak    = errors.New("password does not meet complexity requirements")
	ErrPasswordMismatch   = errors.New("current password is incorrect")
	ErrInvalidEmail       = errors.New("a valid email address is required")
	ErrSessionInvalid     = errors.New("session expired or revoked")
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

type AuthResult struct {
	User      *domain.User
	Token     string
	ExpiresAt time.Time
}

type AuthService struct {
	users       ports.UserRepository
	roles       ports.RoleRepository
	sessions    ports.SessionRepository
	jwt         *util.JWTManager
	adminEmails map[string]struct{}
}

func NewAuthService(users ports.UserRepository, roles ports.RoleRepository, sessions ports.SessionRepository, jwt *util.JWTManager, adminEmails []string) *AuthService {
	admins := make(map[string]struct{}, len(adminEmails))
	for _, email := range adminEmails {
		admins[util.NormalizeEmail(email)] = struct{}{}
	}
	return &AuthService{users: users, roles: roles, sessions: sessions, jwt: jwt, adminEmails: admins}
}

func (s *AuthService) RegisterWithEmail(ctx context.Context, email, password string) (*AuthResult, error) {
	email = util.NormalizeEmail(email)
	if !validEmail(email) {
		return nil, ErrInvalidEmail
	}
	if err := util.ValidatePassword(password); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPasswordTooWeak, err)
	}

	hash, salt, err := util.DerivePassword(password)
	if err != nil {
		return nil, err
	}
	user, err := s.users.CreateEmailUser(ctx, email, hash, salt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrEmailAlreadyUsed
		}
		return nil, err
	}

	if err := s.assignDefaultRoles(ctx, user); err != nil {
		return nil, err
	}
	if reloaded, err := s.loadUser(ctx, user.ID); err == nil {
		user = reloaded
	}
	return s.issueSession(ctx, user)
}

func (s *AuthService) LoginWithEmail(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.users.FindByEmail(ctx, util.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !util.VerifyPassword(password, user.PasswordSalt, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	if err := s.attachRoles(ctx, user); err != nil {
		return nil, err
	}
	return s.issueSession(ctx, user)
}

// Authenticate resolves a bearer token to its user. Both the JWT and the
// backing session row must be valid.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	claims, err := s.jwt.Parse(token)
	if err != nil {
		return nil, ErrSessionInvalid
	}
	if _, err := s.sessions.FindActiveSession(ctx, token); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionInvalid
		}
		return nil, err
	}
	user, err := s.loadUser(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionInvalid
		}
		return nil, err
	}
	return user, nil
}

func (s *AuthService) Logout(ctx context.Context, token string) error {
	return s.sessions.DeactivateSession(ctx, token)
}

func (s *AuthService) ChangePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword string) error {
	if err := util.ValidatePassword(newPassword); err != nil {
		return fmt.Errorf("%w: %v", ErrPasswordTooWeak, err)
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrInvalidCredentials
		}
		return err
	}
	if len(user.PasswordHash) > 0 && !util.VerifyPassword(currentPassword, user.PasswordSalt, user.PasswordHash) {
		return ErrPasswordMismatch
	}
	hash, salt, err := util.DerivePassword(newPassword)
	if err != nil {
		return err
	}
	return s.users.UpdatePassword(ctx, userID, hash, salt)
}

func (s *AuthService) ListUsers(ctx context.Context, limit, offset int) ([]domain.User, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	users, err := s.users.List(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, len(users))
	for i := range users {
		ids[i] = users[i].ID
	}
	roles, err := s.roles.ListForUsers(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range users {
		users[i].Roles = roles[users[i].ID]
	}
	return users, nil
}

func (s *AuthService) IsAdmin(user *domain.User) bool {
	return user != nil && user.HasRoleName(domain.RoleAdmin)
}

func (s *AuthService) assignDefaultRoles(ctx context.Context, user *domain.User) error {
	names := []string{domain.RoleMember}
	if _, ok := s.adminEmails[user.Email]; ok {
		names = append(names, domain.RoleAdmin)
	}
	for _, name := range names {
		role, err := s.roles.GetOrCreateRole(ctx, name, roleDescription(name))
		if err != nil {
			return err
		}
		if err := s.roles.AssignUserRole(ctx, user.ID, role.ID); err != nil {
			return err
		}
	}
	return nil
}

func (s *AuthService) loadUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.attachRoles(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *AuthService) attachRoles(ctx context.Context, user *domain.User) error {
	roles, err := s.roles.ListForUsers(ctx, []uuid.UUID{user.ID})
	if err != nil {
		return err
	}
	user.Roles = roles[user.ID]
	return nil
}

func (s *AuthService) issueSession(ctx context.Context, user *domain.User) (*AuthResult, error) {
	token, expiresAt, err := s.jwt.Generate(user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	if _, err := s.sessions.CreateSession(ctx, user.ID, token, expiresAt); err != nil {
		return nil, err
	}
	return &AuthResult{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

func roleDescription(name string) string {
	switch name {
	case domain.RoleAdmin:
		return "Workspace administrator"
	default:
		return "Workspace member"
	}
}

var emailValidate = validator.New()

func validEmail(email string) bool {
	return emailValidate.Var(email, "required,email") == nil
}

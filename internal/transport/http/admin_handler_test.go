package http

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/karmakanban/karmakanban-backend/internal/domain"
	"github.com/karmakanban/karmakanban-backend/internal/logging"
	"github.com/karmakanban/karmakanban-backend/internal/service"
	"github.com/karmakanban/karmakanban-backend/internal/util"
)

type stubUsers struct {
	byID map[uuid.UUID]*domain.User
}

func (s *stubUsers) CreateEmailUser(ctx context.Context, email string, hash, salt []byte) (*domain.User, error) {
	return nil, sql.ErrConnDone
}

func (s *stubUsers) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return nil, sql.ErrNoRows
}

func (s *stubUsers) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	if u, ok := s.byID[id]; ok {
		clone := *u
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (s *stubUsers) UpdatePassword(ctx context.Context, id uuid.UUID, hash, salt []byte) error {
	return nil
}

func (s *stubUsers) List(ctx context.Context, limit, offset int) ([]domain.User, error) {
	out := make([]domain.User, 0, len(s.byID))
	for _, u := range s.byID {
		out = append(out, *u)
	}
	return out, nil
}

type stubRoles struct {
	byUser map[uuid.UUID][]domain.Role
}

func (s *stubRoles) GetOrCreateRole(ctx context.Context, name, description string) (*domain.Role, error) {
	return &domain.Role{ID: uuid.New(), Name: name}, nil
}

func (s *stubRoles) AssignUserRole(ctx context.Context, userID, roleID uuid.UUID) error { return nil }

func (s *stubRoles) ListForUsers(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID][]domain.Role, error) {
	out := make(map[uuid.UUID][]domain.Role)
	for _, id := range ids {
		out[id] = s.byUser[id]
	}
	return out, nil
}

type stubSessions struct{}

func (stubSessions) CreateSession(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) (*domain.Session, error) {
	return &domain.Session{UserID: userID, Token: token, ExpiresAt: expiresAt, IsActive: true}, nil
}

func (stubSessions) DeactivateSession(ctx context.Context, token string) error { return nil }

func (stubSessions) DeactivateUserSessions(ctx context.Context, userID uuid.UUID) (int64, error) {
	return 0, nil
}

func (stubSessions) FindActiveSession(ctx context.Context, token string) (*domain.Session, error) {
	return &domain.Session{Token: token, IsActive: true}, nil
}

type stubResetAdmin struct {
	revoked []string
	swept   int
}

func (s *stubResetAdmin) ChallengeStatus(email string) domain.ChallengeStatus {
	return domain.ChallengeStatus{Identity: email, Active: true, SecondsRemaining: 120}
}

func (s *stubResetAdmin) RevokeChallenge(email string) bool {
	s.revoked = append(s.revoked, email)
	return email == "a@example.com"
}

func (s *stubResetAdmin) SweepExpiredTokens(ctx context.Context) (int64, error) {
	s.swept++
	return 3, nil
}

type adminFixture struct {
	e          *echo.Echo
	resets     *stubResetAdmin
	adminToken string
	userToken  string
}

func newAdminFixture(t *testing.T) *adminFixture {
	t.Helper()
	jwt := util.NewJWTManager("test-secret", time.Hour)
	admin := &domain.User{ID: uuid.New(), Email: "boss@example.com"}
	member := &domain.User{ID: uuid.New(), Email: "member@example.com"}
	users := &stubUsers{byID: map[uuid.UUID]*domain.User{admin.ID: admin, member.ID: member}}
	roles := &stubRoles{byUser: map[uuid.UUID][]domain.Role{
		admin.ID:  {{Name: domain.RoleAdmin}},
		member.ID: {{Name: domain.RoleMember}},
	}}
	auth := service.NewAuthService(users, roles, stubSessions{}, jwt, nil)

	adminToken, _, err := jwt.Generate(admin.ID, admin.Email)
	if err != nil {
		t.Fatalf("generate admin token: %v", err)
	}
	userToken, _, err := jwt.Generate(member.ID, member.Email)
	if err != nil {
		t.Fatalf("generate member token: %v", err)
	}

	resets := &stubResetAdmin{}
	e := NewRouter([]string{"*"}, logging.Discard())
	RegisterAdmin(e, auth, resets)
	return &adminFixture{e: e, resets: resets, adminToken: adminToken, userToken: userToken}
}

func (f *adminFixture) do(method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	f := newAdminFixture(t)

	if rec := f.do(http.MethodGet, "/api/v1/admin/users", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
	if rec := f.do(http.MethodGet, "/api/v1/admin/users", "garbage"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", rec.Code)
	}
	if rec := f.do(http.MethodGet, "/api/v1/admin/users", f.userToken); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for member, got %d", rec.Code)
	}
	if rec := f.do(http.MethodGet, "/api/v1/admin/users", f.adminToken); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d", rec.Code)
	}
}

func TestAdminChallengeEndpoints(t *testing.T) {
	f := newAdminFixture(t)

	rec := f.do(http.MethodGet, "/api/v1/admin/password-resets/challenges/a@example.com", f.adminToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["active"] != true || body["seconds_remaining"] != float64(120) {
		t.Fatalf("unexpected status body %v", body)
	}

	if rec := f.do(http.MethodDelete, "/api/v1/admin/password-resets/challenges/a@example.com", f.adminToken); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if rec := f.do(http.MethodDelete, "/api/v1/admin/password-resets/challenges/b@example.com", f.adminToken); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	rec = f.do(http.MethodPost, "/api/v1/admin/password-resets/sweep", f.adminToken)
	if rec.Code != http.StatusOK || f.resets.swept != 1 {
		t.Fatalf("expected sweep to run, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["deleted"] != float64(3) {
		t.Fatalf("unexpected sweep body %v", body)
	}
}

package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/karmakanban/karmakanban-backend/internal/domain"
	"github.com/karmakanban/karmakanban-backend/internal/service"
	"github.com/karmakanban/karmakanban-backend/internal/util"
)

// ResetAdministration is implemented by *service.PasswordResetService.
type ResetAdministration interface {
	ChallengeStatus(email string) domain.ChallengeStatus
	RevokeChallenge(email string) bool
	SweepExpiredTokens(ctx context.Context) (int64, error)
}

type AdminHandler struct {
	auth   *service.AuthService
	resets ResetAdministration
}

func RegisterAdmin(e *echo.Echo, auth *service.AuthService, resets ResetAdministration) {
	handler := &AdminHandler{auth: auth, resets: resets}

	g := e.Group("/api/v1/admin", RequireAuth(auth), RequireAdmin(auth))
	g.GET("/users", handler.listUsers)
	g.GET("/password-resets/challenges/:email", handler.challengeStatus)
	g.DELETE("/password-resets/challenges/:email", handler.revokeChallenge)
	g.POST("/password-resets/sweep", handler.sweep)
}

// listUsers handles GET /api/v1/admin/users
func (h *AdminHandler) listUsers(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))

	users, err := h.auth.ListUsers(c.Request().Context(), limit, offset)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, util.Error("unable to list users"))
	}
	out := make([]AuthUser, 0, len(users))
	for i := range users {
		out = append(out, toAuthUser(&users[i]))
	}
	return c.JSON(http.StatusOK, UsersListResponse{
		Users: out,
		Meta:  UsersMeta{Limit: limit, Offset: offset, Count: len(out)},
	})
}

// challengeStatus handles GET /api/v1/admin/password-resets/challenges/{email}
func (h *AdminHandler) challengeStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, h.resets.ChallengeStatus(c.Param("email")))
}

// revokeChallenge handles DELETE /api/v1/admin/password-resets/challenges/{email}
func (h *AdminHandler) revokeChallenge(c echo.Context) error {
	if !h.resets.RevokeChallenge(c.Param("email")) {
		return c.JSON(http.StatusNotFound, util.Error("no active challenge"))
	}
	return c.NoContent(http.StatusNoContent)
}

// sweep handles POST /api/v1/admin/password-resets/sweep
func (h *AdminHandler) sweep(c echo.Context) error {
	n, err := h.resets.SweepExpiredTokens(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, util.Error("sweep failed"))
	}
	return c.JSON(http.StatusOK, SweepResponse{Deleted: n})
}

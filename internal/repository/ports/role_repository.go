package ports

import (
	"context"

	"github.com/google/uuid"

	"github.com/karmakanban/karmakanban-backend/internal/domain"
)

type RoleRepository interface {
	GetOrCreateRole(ctx context.Context, name, description string) (*domain.Role, error)
	AssignUserRole(ctx context.Context, userID, roleID uuid.UUID) error
	ListForUsers(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID][]domain.Role, error)
}

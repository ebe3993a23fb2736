package repository

import (
	"context"
	"fmt"

	"github.com/trendhub-shop/commerce-platform/internal/models"
	"github.com/trendhub-shop/commerce-platform/internal/utils"
)

// UserRepository is the narrow read contract the checkout core has on the
// accounts collaborator.
type UserRepository interface {
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
}

type userRepository struct {
	db DBTX
}

func NewUserRepo(db DBTX) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, email, name, COALESCE(address, ''), role, created_at, updated_at
		FROM users
		WHERE id = $1
	`

	user := &models.User{}

	err := r.db.QueryRowContext(dbCtx, query, id).Scan(
		&user.ID, &user.Email, &user.Name, &user.Address, &user.Role, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

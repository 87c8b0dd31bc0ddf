package repository

import (
	"context"

	"github.com/ErlanBelekov/automation-scheduler/internal/domain"
)

type UserRepository interface {
	Upsert(ctx context.Context, id string) error
	FindByID(ctx context.Context, id string) (*domain.User, error)
}

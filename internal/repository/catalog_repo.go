package repository

import (
	"context"

	"washly/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CatalogRepository reads the client directory and the service catalog.
// Both are owned elsewhere; the order core never writes them.
type CatalogRepository interface {
	FindClientByID(ctx context.Context, id uuid.UUID) (*model.Client, error)
	FindServiceByID(ctx context.Context, id uuid.UUID) (*model.CatalogService, error)
}

type catalogRepo struct{ db *gorm.DB }

func NewCatalogRepository(db *gorm.DB) CatalogRepository { return &catalogRepo{db: db} }

func (r *catalogRepo) FindClientByID(ctx context.Context, id uuid.UUID) (*model.Client, error) {
	var c model.Client
	err := r.db.WithContext(ctx).First(&c, "id = ?", id).Error
	return &c, err
}

func (r *catalogRepo) FindServiceByID(ctx context.Context, id uuid.UUID) (*model.CatalogService, error) {
	var s model.CatalogService
	err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error
	return &s, err
}

package repository

import (
	"context"

	"gorm.io/gorm"

	"ripple/internal/cache"
	"ripple/internal/models"
)

// LinkRepository defines the interface for shared-link data operations
type LinkRepository interface {
	Create(ctx context.Context, link *models.Link) error
	GetByID(ctx context.Context, id uint) (*models.Link, error)
	List(ctx context.Context, limit, offset int) ([]*models.Link, error)
	Update(ctx context.Context, link *models.Link) error
	Delete(ctx context.Context, id uint) error
}

type linkRepository struct {
	db *gorm.DB
}

// NewLinkRepository creates a new link repository
func NewLinkRepository(db *gorm.DB) LinkRepository {
	return &linkRepository{db: db}
}

func (r *linkRepository) Create(ctx context.Context, link *models.Link) error {
	return r.db.WithContext(ctx).Create(link).Error
}

func (r *linkRepository) GetByID(ctx context.Context, id uint) (*models.Link, error) {
	var link models.Link
	err := cache.Aside(ctx, cache.LinkKey(id), &link, cache.LinkTTL, func() error {
		return r.db.WithContext(ctx).Preload("User").First(&link, id).Error
	})
	if err != nil {
		return nil, err
	}
	return &link, nil
}

func (r *linkRepository) List(ctx context.Context, limit, offset int) ([]*models.Link, error) {
	var links []*models.Link
	err := r.db.WithContext(ctx).
		Preload("User").
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&links).Error
	if err != nil {
		return nil, err
	}
	return links, nil
}

func (r *linkRepository) Update(ctx context.Context, link *models.Link) error {
	if err := r.db.WithContext(ctx).Save(link).Error; err != nil {
		return err
	}
	cache.Invalidate(ctx, cache.LinkKey(link.ID))
	return nil
}

func (r *linkRepository) Delete(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Delete(&models.Link{}, id).Error; err != nil {
		return err
	}
	cache.Invalidate(ctx, cache.LinkKey(id))
	return nil
}

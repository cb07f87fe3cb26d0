package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/quocanhngo/tradetalk/internal/model"
	"gorm.io/gorm"
)

// ListingRepository is a read-only lookup into the marketplace listings
type ListingRepository struct {
	db *gorm.DB
}

func NewListingRepository(db *gorm.DB) *ListingRepository {
	return &ListingRepository{db: db}
}

// Create inserts a listing; only the seeder and tests write listings
func (r *ListingRepository) Create(ctx context.Context, listing *model.Listing) error {
	return r.db.WithContext(ctx).Create(listing).Error
}

// FindByID finds a listing by ID
func (r *ListingRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Listing, error) {
	var listing model.Listing
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&listing).Error; err != nil {
		return nil, notFound(err, "listing")
	}
	return &listing, nil
}

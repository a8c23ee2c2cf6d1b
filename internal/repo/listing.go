package repo

import (
	"context"

	"github.com/KNICEX/listing-agent/internal/entity"
	"gorm.io/gorm"
)

type ListingRepo interface {
	Create(ctx context.Context, listing entity.Listing) (entity.Listing, error)
	FindById(ctx context.Context, id int64) (entity.Listing, error)
	// FindLatest exchange 为空时不过滤, 按观察时间倒序
	FindLatest(ctx context.Context, exchange string, limit int) ([]entity.Listing, error)
}

type listingRepo struct {
	db *gorm.DB
}

func NewListingRepo(db *gorm.DB) ListingRepo {
	return &listingRepo{
		db: db,
	}
}

// Create 单条记录单独写入, 不跨记录开事务
func (r *listingRepo) Create(ctx context.Context, listing entity.Listing) (entity.Listing, error) {
	err := r.db.WithContext(ctx).Create(&listing).Error
	if err != nil {
		return entity.Listing{}, err
	}
	return listing, nil
}

func (r *listingRepo) FindById(ctx context.Context, id int64) (entity.Listing, error) {
	var listing entity.Listing
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&listing).Error
	if err != nil {
		return entity.Listing{}, err
	}
	return listing, nil
}

func (r *listingRepo) FindLatest(ctx context.Context, exchange string, limit int) ([]entity.Listing, error) {
	var listings []entity.Listing
	query := r.db.WithContext(ctx).Order("observed_at DESC").Order("id DESC")
	if exchange != "" {
		query = query.Where("LOWER(exchange) = LOWER(?)", exchange)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&listings).Error; err != nil {
		return nil, err
	}
	return listings, nil
}

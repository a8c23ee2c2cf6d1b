package repo

import (
	"context"
	"strings"

	"github.com/KNICEX/listing-agent/internal/entity"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

type ExchangeRepo interface {
	CreateOrGet(ctx context.Context, name string) (entity.Exchange, error)
	Delete(ctx context.Context, id int64) error
	FindAll(ctx context.Context) ([]entity.Exchange, error)
	FindById(ctx context.Context, id int64) (entity.Exchange, error)
	// Names 相关性过滤使用的名称快照
	Names(ctx context.Context) ([]string, error)
}

type exchangeRepo struct {
	db *gorm.DB
}

func NewExchangeRepo(db *gorm.DB) ExchangeRepo {
	return &exchangeRepo{
		db: db,
	}
}

func (r *exchangeRepo) CreateOrGet(ctx context.Context, name string) (entity.Exchange, error) {
	exchange := entity.Exchange{Name: strings.TrimSpace(name)}
	err := r.db.WithContext(ctx).Where("name = ?", exchange.Name).FirstOrCreate(&exchange).Error
	if err != nil {
		return entity.Exchange{}, err
	}
	return exchange, nil
}

func (r *exchangeRepo) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&entity.Exchange{}, id).Error
}

func (r *exchangeRepo) FindAll(ctx context.Context) ([]entity.Exchange, error) {
	var exchanges []entity.Exchange
	err := r.db.WithContext(ctx).Order("id").Find(&exchanges).Error
	if err != nil {
		return nil, err
	}
	return exchanges, nil
}

func (r *exchangeRepo) FindById(ctx context.Context, id int64) (entity.Exchange, error) {
	var exchange entity.Exchange
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&exchange).Error
	if err != nil {
		return entity.Exchange{}, err
	}
	return exchange, nil
}

func (r *exchangeRepo) Names(ctx context.Context) ([]string, error) {
	exchanges, err := r.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	return lo.Map(exchanges, func(item entity.Exchange, index int) string {
		return item.Name
	}), nil
}

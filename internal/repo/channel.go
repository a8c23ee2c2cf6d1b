package repo

import (
	"context"
	"strings"

	"github.com/KNICEX/listing-agent/internal/entity"
	"gorm.io/gorm"
)

type ChannelRepo interface {
	// CreateOrGet 已存在同名频道时直接返回
	CreateOrGet(ctx context.Context, name string) (entity.Channel, error)
	Delete(ctx context.Context, id int64) error
	FindAll(ctx context.Context) ([]entity.Channel, error)
	FindById(ctx context.Context, id int64) (entity.Channel, error)
}

type channelRepo struct {
	db *gorm.DB
}

func NewChannelRepo(db *gorm.DB) ChannelRepo {
	return &channelRepo{
		db: db,
	}
}

func (r *channelRepo) CreateOrGet(ctx context.Context, name string) (entity.Channel, error) {
	channel := entity.Channel{Name: strings.TrimSpace(name)}
	err := r.db.WithContext(ctx).Where("name = ?", channel.Name).FirstOrCreate(&channel).Error
	if err != nil {
		return entity.Channel{}, err
	}
	return channel, nil
}

func (r *channelRepo) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&entity.Channel{}, id).Error
}

func (r *channelRepo) FindAll(ctx context.Context) ([]entity.Channel, error) {
	var channels []entity.Channel
	err := r.db.WithContext(ctx).Order("id").Find(&channels).Error
	if err != nil {
		return nil, err
	}
	return channels, nil
}

func (r *channelRepo) FindById(ctx context.Context, id int64) (entity.Channel, error) {
	var channel entity.Channel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&channel).Error
	if err != nil {
		return entity.Channel{}, err
	}
	return channel, nil
}

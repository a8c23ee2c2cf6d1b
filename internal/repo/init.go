package repo

import (
	"errors"

	"github.com/KNICEX/listing-agent/internal/entity"
	"gorm.io/gorm"
)

var ErrNotFound = gorm.ErrRecordNotFound

func InitTables(db *gorm.DB) error {
	return db.AutoMigrate(&entity.Channel{}, &entity.Exchange{}, &entity.Listing{})
}

func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

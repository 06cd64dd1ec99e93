package database

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"gorm.io/gorm"

	"stocks-simulator/models"
)

var (
	ErrInvalidBatchSize = errors.New("invalid batch size")
	ErrInvalidData      = errors.New("invalid data, expected slice")
)

// AutoMigrate creates or updates the users, portfolio, history and stock_prices tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Holding{},
		&models.Transaction{},
		&models.StockPrice{},
	)
}

// WithTx runs fn inside a transaction, rolling back on error or panic.
func WithTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit().Error
}

// CreateInBatches inserts a slice in chunks of batchSize using tx.
func CreateInBatches(tx *gorm.DB, data interface{}, batchSize int) error {
	if batchSize <= 0 {
		return ErrInvalidBatchSize
	}

	slice := reflect.ValueOf(data)
	if slice.Kind() != reflect.Slice {
		return ErrInvalidData
	}

	total := slice.Len()
	for i := 0; i < total; i += batchSize {
		end := i + batchSize
		if end > total {
			end = total
		}

		chunk := slice.Slice(i, end).Interface()
		if err := tx.Create(chunk).Error; err != nil {
			return fmt.Errorf("batch insert failed: %w", err)
		}
	}
	return nil
}

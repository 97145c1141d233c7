// Package repo implements the data persistence layer for the purchase
// tracker, backed by GORM. This file provides the key-value receipts store
// used by the ledger: one named row whose value is a JSON array of product
// id strings.
//
// Error semantics:
//   - GetStringList returns ErrNotFound when the key has never been written.
//     Absence is a valid state ("no purchases yet") distinct from an empty
//     array; both decode to an empty set at the service layer.
//   - On DB errors the raw gorm error is propagated; the ledger maps them to
//     its persistence-unavailable sentinel.
package repo

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/uptech/buykit/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// GetStringList reads the named entry and decodes its JSON array value.
// Returns ErrNotFound when the key is absent.
func GetStringList(ctx context.Context, db *gorm.DB, key string) ([]string, error) {
	var row domain.KVEntry
	err := db.WithContext(ctx).
		Where("key = ?", key).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var out []string
	if err := json.Unmarshal([]byte(row.Value), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// PutStringList writes values as a JSON array under key, inserting or
// replacing the row. The write is synchronous: when it returns without error
// the entry is durable.
func PutStringList(ctx context.Context, db *gorm.DB, key string, values []string) error {
	if values == nil {
		values = []string{}
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return err
	}

	row := domain.KVEntry{
		Key:       key,
		Value:     string(raw),
		UpdatedAt: time.Now().UTC(),
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&row).Error
}

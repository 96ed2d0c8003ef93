package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides plain CRUD over one administrative entity.
type Repository[T any] struct {
	db       *gorm.DB
	key      string
	preloads []string
}

// NewRepository creates a repository keyed on the given column.
func NewRepository[T any](db *gorm.DB, key string, preloads ...string) *Repository[T] {
	return &Repository[T]{db: db, key: key, preloads: preloads}
}

func (r *Repository[T]) query(ctx context.Context) *gorm.DB {
	q := r.db.WithContext(ctx)
	for _, p := range r.preloads {
		q = q.Preload(p)
	}
	return q
}

// List returns every record ordered by key.
func (r *Repository[T]) List(ctx context.Context) ([]T, error) {
	var list []T
	if err := r.query(ctx).Order(r.key).Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list %T: %w", *new(T), err)
	}
	return list, nil
}

// Get loads the record with the given key.
func (r *Repository[T]) Get(ctx context.Context, key any) (*T, error) {
	var v T
	if err := r.query(ctx).Where(r.key+" = ?", key).First(&v).Error; err != nil {
		return nil, fmt.Errorf("get %T %v: %w", v, key, translate(err))
	}
	return &v, nil
}

// Create inserts v without touching its associations.
func (r *Repository[T]) Create(ctx context.Context, v *T) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(v).Error; err != nil {
		return fmt.Errorf("create %T: %w", *v, translate(err))
	}
	return nil
}

// Update overwrites the record with the given key. v must carry that key.
func (r *Repository[T]) Update(ctx context.Context, key any, v *T) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(new(T)).Where(r.key+" = ?", key).Count(&count).Error; err != nil {
			return fmt.Errorf("update %T %v: %w", *v, key, err)
		}
		if count == 0 {
			return fmt.Errorf("update %T %v: %w", *v, key, ErrNotFound)
		}
		if err := tx.Omit(clause.Associations, "CreatedAt").Save(v).Error; err != nil {
			return fmt.Errorf("update %T %v: %w", *v, key, translate(err))
		}
		return nil
	})
}

// Delete removes the record with the given key.
func (r *Repository[T]) Delete(ctx context.Context, key any) error {
	result := r.db.WithContext(ctx).Where(r.key+" = ?", key).Delete(new(T))
	if result.Error != nil {
		return fmt.Errorf("delete %T %v: %w", *new(T), key, translate(result.Error))
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("delete %T %v: %w", *new(T), key, ErrNotFound)
	}
	return nil
}

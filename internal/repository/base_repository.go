package repository

import (
	"context"
	"errors"
	"fmt"

	appErr "github.com/learnhub/engine/pkg/errors"
	"gorm.io/gorm"
)

// BaseRepository defines common CRUD operations.
type BaseRepository[T any] interface {
	Create(ctx context.Context, obj *T) error
	GetByID(ctx context.Context, id any, dest *T) error
	Update(ctx context.Context, obj *T) error
	Delete(ctx context.Context, id any) error
}

type baseRepository[T any] struct {
	db   *gorm.DB
	kind string
}

// NewBaseRepository builds CRUD helpers; kind names the entity in error messages.
func NewBaseRepository[T any](db *gorm.DB, kind string) BaseRepository[T] {
	return &baseRepository[T]{db: db, kind: kind}
}

func (r *baseRepository[T]) Create(ctx context.Context, obj *T) error {
	if err := r.db.WithContext(ctx).Create(obj).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return appErr.Wrap(err, appErr.CodeAlreadyExists, r.kind+" already exists")
		}
		return appErr.Wrap(err, appErr.CodeInternal, "create "+r.kind+" failed")
	}
	return nil
}

func (r *baseRepository[T]) GetByID(ctx context.Context, id any, dest *T) error {
	if err := r.db.WithContext(ctx).First(dest, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return appErr.NotFound(r.kind, fmt.Sprint(id))
		}
		return appErr.Wrap(err, appErr.CodeInternal, "get "+r.kind+" failed")
	}
	return nil
}

func (r *baseRepository[T]) Update(ctx context.Context, obj *T) error {
	if err := r.db.WithContext(ctx).Save(obj).Error; err != nil {
		return appErr.Wrap(err, appErr.CodeInternal, "update "+r.kind+" failed")
	}
	return nil
}

func (r *baseRepository[T]) Delete(ctx context.Context, id any) error {
	var t T
	res := r.db.WithContext(ctx).Delete(&t, "id = ?", id)
	if res.Error != nil {
		return appErr.Wrap(res.Error, appErr.CodeInternal, "delete "+r.kind+" failed")
	}
	if res.RowsAffected == 0 {
		return appErr.NotFound(r.kind, fmt.Sprint(id))
	}
	return nil
}

package utils

import (
	"context"

	"github.com/mmdatafocus/kasmoni_backend/config"
)

// ValidateResourceId checks a referenced row exists; returns
// ErrorRecordNotFound when it does not.
func ValidateResourceId[T any](ctx context.Context, id interface{}) error {
	db := config.GetDB()
	var model T
	var count int64
	if err := db.WithContext(ctx).Model(&model).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count <= 0 {
		return ErrorRecordNotFound
	}
	return nil
}

// ResourceCountWhere counts rows of T matching the condition.
func ResourceCountWhere[T any](ctx context.Context, cond string, values ...interface{}) (int64, error) {
	db := config.GetDB()
	var model T
	var count int64
	err := db.WithContext(ctx).Model(&model).Where(cond, values...).Count(&count).Error
	return count, err
}

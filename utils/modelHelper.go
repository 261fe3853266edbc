package utils

import (
	"context"

	"bitbucket.org/mmdatafocus/stockroom_backend/config"
)

/* DB fetching */

// fetch model from db
// (may return RecordNotFound)
func FetchSingleModel[T any](ctx context.Context, id int, associations ...string) (*T, error) {

	db := config.GetDB()
	dbCtx := db.WithContext(ctx)
	// preloading
	for _, field := range associations {
		dbCtx.Preload(field)
	}
	var result T
	err := dbCtx.First(&result, id).Error
	if err != nil {
		return nil, ErrorRecordNotFound
	}
	return &result, nil
}

// fetch model from db
// (ctx's business_id is used in query's WHERE, may return RecordNotFound)
func FetchModel[T any](ctx context.Context, businessId string, id int, associations ...string) (*T, error) {

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	// preloading
	for _, field := range associations {
		dbCtx.Preload(field)
	}
	var result T
	err := dbCtx.First(&result, id).Error
	if err != nil {
		return nil, ErrorRecordNotFound
	}
	return &result, nil
}

// fetch all models from db
// (ctx's business_id is used in query's WHERE)
func FetchAllModels[T any](ctx context.Context, businessId string, associations ...string) ([]*T, error) {

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	// preloading
	for _, field := range associations {
		dbCtx.Preload(field)
	}
	var results []*T
	err := dbCtx.Find(&results).Error
	if err != nil {
		return nil, ErrorRecordNotFound
	}
	return results, nil
}

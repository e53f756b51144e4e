package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bobarin/viralforge/internal/models"
	"github.com/google/uuid"
)

func (db *DB) CreateRunAsset(ctx context.Context, asset *models.RunAsset) error {
	query := `
		INSERT INTO run_assets (
			id, run_id, type, storage_bucket, storage_path, content_type, byte_size
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`

	return db.QueryRowContext(
		ctx, query,
		asset.ID, asset.RunID, asset.Type, asset.StorageBucket,
		asset.StoragePath, asset.ContentType, asset.ByteSize,
	).Scan(&asset.CreatedAt)
}

func (db *DB) GetRunAsset(ctx context.Context, runID uuid.UUID, assetType models.AssetType) (*models.RunAsset, error) {
	query := `
		SELECT
			id, run_id, type, storage_bucket, storage_path,
			content_type, byte_size, created_at
		FROM run_assets
		WHERE run_id = $1 AND type = $2
		ORDER BY created_at DESC
		LIMIT 1
	`

	asset := &models.RunAsset{}
	err := db.QueryRowContext(ctx, query, runID, assetType).Scan(
		&asset.ID, &asset.RunID, &asset.Type, &asset.StorageBucket,
		&asset.StoragePath, &asset.ContentType, &asset.ByteSize, &asset.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, ErrAssetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get asset: %w", err)
	}

	return asset, nil
}

func (db *DB) GetRunAssets(ctx context.Context, runID uuid.UUID) ([]models.RunAsset, error) {
	query := `
		SELECT
			id, run_id, type, storage_bucket, storage_path,
			content_type, byte_size, created_at
		FROM run_assets
		WHERE run_id = $1
		ORDER BY created_at
	`

	rows, err := db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query assets: %w", err)
	}
	defer rows.Close()

	assets := []models.RunAsset{}
	for rows.Next() {
		var asset models.RunAsset
		err := rows.Scan(
			&asset.ID, &asset.RunID, &asset.Type, &asset.StorageBucket,
			&asset.StoragePath, &asset.ContentType, &asset.ByteSize, &asset.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan asset: %w", err)
		}
		assets = append(assets, asset)
	}

	return assets, rows.Err()
}

package repository

import "errors"

var (
	ErrNotFound = errors.New("repository: not found")

	// ErrAssetAlreadySet means the entity already carries a platform asset
	// id. Re-ingestion requires an explicit reset first.
	ErrAssetAlreadySet = errors.New("repository: stream asset already set")
)

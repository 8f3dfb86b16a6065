package domain

import "errors"

var (
	ErrUnsupportedBackend  = errors.New("unsupported vector backend")
	ErrUnsupportedProvider = errors.New("unsupported model provider")
	ErrCloudModelsDisabled = errors.New("cloud models are disabled (privacy.allow_cloud_models)")
	ErrMissingCredentials  = errors.New("missing model credentials")
	ErrEmbedding           = errors.New("embedding failed")
	ErrGeneration          = errors.New("generation failed")
	ErrDimensionMismatch   = errors.New("embedding dimension mismatch")
	ErrIndexCorrupt        = errors.New("vector index is corrupt")
	ErrSurrogateCollision  = errors.New("surrogate id collision")
	ErrNotFound            = errors.New("not found")
	ErrUnsupportedFormat   = errors.New("unsupported document format")
)

package embedding

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/config"
	"docrag/internal/domain"
)

func TestNew_HashByDefault(t *testing.T) {
	cfg := config.DefaultConfig()

	e, err := New(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &HashEmbedder{}, e)
	assert.Equal(t, 384, e.Dimension())
}

func TestNew_CloudProviderBlockedByPrivacy(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Embedding.Provider = "openai"

	_, err := New(context.Background(), cfg)
	assert.ErrorIs(t, err, domain.ErrCloudModelsDisabled)
}

func TestNew_OpenAIRequiresKey(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Privacy.AllowCloudModels = true
	cfg.Embedding.Provider = "openai"
	cfg.Embedding.APIKeyEnv = "DOCRAG_TEST_MISSING_KEY"
	t.Setenv("DOCRAG_TEST_MISSING_KEY", "")

	_, err := New(context.Background(), cfg)
	assert.ErrorIs(t, err, domain.ErrMissingCredentials)
}

func TestNew_OpenAIWithKey(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Privacy.AllowCloudModels = true
	cfg.Embedding.Provider = "openai"
	cfg.Embedding.Model = "text-embedding-3-small"
	cfg.Embedding.Dimension = 0
	cfg.Embedding.APIKeyEnv = "DOCRAG_TEST_KEY"
	t.Setenv("DOCRAG_TEST_KEY", "sk-test")

	e, err := New(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, 1536, e.Dimension())
}

func TestNew_LocalCompatibleAllowedWithoutCloud(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Embedding.Provider = "compatible"
	cfg.Embedding.BaseURL = "http://localhost:8080/v1"
	cfg.Embedding.Dimension = 768

	e, err := New(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, 768, e.Dimension())
}

func TestNew_UnknownProvider(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Embedding.Provider = "word2vec"

	_, err := New(context.Background(), cfg)
	assert.ErrorIs(t, err, domain.ErrUnsupportedProvider)
}

package secrets_test

import (
	"context"
	"testing"

	"github.com/straye-as/pipeline-api/internal/secrets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mapStore map[string]string

func (m mapStore) GetSecret(_ context.Context, name string) (string, error) {
	if v, ok := m[name]; ok {
		return v, nil
	}
	return "", secrets.ErrSecretNotFound
}

func TestResolveSource(t *testing.T) {
	assert.Equal(t, secrets.SourceEnvironment, secrets.ResolveSource(secrets.SourceAuto, "development"))
	assert.Equal(t, secrets.SourceEnvironment, secrets.ResolveSource(secrets.SourceAuto, ""))
	assert.Equal(t, secrets.SourceVault, secrets.ResolveSource(secrets.SourceAuto, "production"))
	assert.Equal(t, secrets.SourceEnvironment, secrets.ResolveSource(secrets.SourceEnvironment, "production"))
}

func TestProvider_GetSecretOrEnv(t *testing.T) {
	ctx := context.Background()
	p := secrets.NewProviderWithStore(secrets.SourceVault, mapStore{"JWT-SECRET": "from-vault"}, zap.NewNop())

	t.Run("store value when env is unset", func(t *testing.T) {
		t.Setenv("PIPELINE_TEST_JWT", "")
		v, err := p.GetSecretOrEnv(ctx, "JWT-SECRET", "PIPELINE_TEST_JWT")
		require.NoError(t, err)
		assert.Equal(t, "from-vault", v)
	})

	t.Run("env overrides store", func(t *testing.T) {
		t.Setenv("PIPELINE_TEST_JWT", "from-env")
		v, err := p.GetSecretOrEnv(ctx, "JWT-SECRET", "PIPELINE_TEST_JWT")
		require.NoError(t, err)
		assert.Equal(t, "from-env", v)
	})

	t.Run("missing secret falls back to default", func(t *testing.T) {
		assert.Equal(t, "fallback", p.GetSecretOrEnvWithDefault(ctx, "NOPE", "PIPELINE_TEST_NOPE", "fallback"))
	})
}

func TestNewProvider_Environment(t *testing.T) {
	t.Setenv("PIPELINE_TEST_SECRET", "value")
	p, err := secrets.NewProvider(&secrets.ProviderConfig{Source: secrets.SourceAuto, Environment: "development"}, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, p.IsVaultEnabled())

	v, err := p.GetSecret(context.Background(), "PIPELINE_TEST_SECRET")
	require.NoError(t, err)
	assert.Equal(t, "value", v)

	_, err = p.GetSecret(context.Background(), "PIPELINE_TEST_MISSING")
	assert.ErrorIs(t, err, secrets.ErrSecretNotFound)
}

func TestNewProvider_VaultRequiresName(t *testing.T) {
	_, err := secrets.NewProvider(&secrets.ProviderConfig{Source: secrets.SourceVault}, zap.NewNop())
	assert.Error(t, err)
}

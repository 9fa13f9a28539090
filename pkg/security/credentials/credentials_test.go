package credentials

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// localsecrets key for tests only.
const testKeeperURL = "base64key://smGbjm71Nxd1Ig5FS0wj9SlbzAIrnolCz9bQQ6uAhl4="

func TestStaticPassthrough(t *testing.T) {
	got, err := Static{}.Resolve(context.Background(), "file:jade.db")
	require.NoError(t, err)
	assert.Equal(t, "file:jade.db", got)
}

func TestEnvResolver(t *testing.T) {
	t.Setenv("JADE_TEST_DSN", "file:/var/lib/jade/events.db")

	got, err := Env{}.Resolve(context.Background(), "env:JADE_TEST_DSN")
	require.NoError(t, err)
	assert.Equal(t, "file:/var/lib/jade/events.db", got)

	_, err = Env{}.Resolve(context.Background(), "env:JADE_TEST_MISSING")
	assert.Error(t, err)

	got, err = Env{}.Resolve(context.Background(), "plain-value")
	require.NoError(t, err)
	assert.Equal(t, "plain-value", got)
}

func TestKeeperRoundTrip(t *testing.T) {
	ctx := context.Background()
	keeper, err := NewKeeper(ctx, testKeeperURL)
	require.NoError(t, err)
	defer keeper.Close()

	encrypted, err := keeper.Encrypt(ctx, "postgres://user:s3cret@db/jade")
	require.NoError(t, err)
	assert.NotContains(t, encrypted, "s3cret")

	plain, err := keeper.Resolve(ctx, encrypted)
	require.NoError(t, err)
	assert.Equal(t, "postgres://user:s3cret@db/jade", plain)

	// Literal values pass through untouched.
	plain, err = keeper.Resolve(ctx, "file:jade.db")
	require.NoError(t, err)
	assert.Equal(t, "file:jade.db", plain)
}

func TestChainResolvesThroughLayers(t *testing.T) {
	ctx := context.Background()
	keeper, err := NewKeeper(ctx, testKeeperURL)
	require.NoError(t, err)

	encrypted, err := keeper.Encrypt(ctx, "file:/data/jade.db")
	require.NoError(t, err)
	t.Setenv("JADE_TEST_ENC_DSN", encrypted)

	chain := NewChain(Env{}, keeper)
	defer chain.Close()

	got, err := chain.Resolve(ctx, "env:JADE_TEST_ENC_DSN")
	require.NoError(t, err)
	assert.Equal(t, "file:/data/jade.db", got)
}

package container

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trailsocial/engagement/internal/config"
	"github.com/trailsocial/engagement/internal/engagement"
	"github.com/trailsocial/engagement/internal/viewer"
)

func testConfig(t *testing.T) config.Config {
	return config.Config{
		Environment:   "test",
		PermalinkSalt: "container-test-salt",
		DedupWindow:   time.Hour,
		Database: config.DatabaseConfig{
			Driver: "sqlite",
			Path:   filepath.Join(t.TempDir(), "container.db"),
		},
	}
}

func TestBuildWiresSQLiteStack(t *testing.T) {
	cfg := testConfig(t)
	cfg.JWTSecret = "secret"

	c, err := Build(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Cleanup(context.Background()) })

	require.NoError(t, c.Migrate(true))
	assert.Nil(t, c.Cache())
	assert.Nil(t, c.WindowCounter())
	assert.Nil(t, c.HealthPinger())
	require.NotNil(t, c.TokenValidator())
	require.NotNil(t, c.Handlers())

	id := int64(9)
	ctx := context.Background()
	res, err := c.recorder.RecordView(ctx, engagement.EntryTarget(1), viewer.Identity{UserID: &id})
	require.NoError(t, err)
	assert.True(t, res.Recorded)

	count, err := c.Counters().Get(ctx, engagement.EntryTarget(1))
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	token, err := c.Obfuscator().Encode(1)
	require.NoError(t, err)
	decoded, ok := c.Obfuscator().Decode(token)
	assert.True(t, ok)
	assert.Equal(t, int64(1), decoded)
}

func TestBuildWithoutJWTSecretIsAnonymous(t *testing.T) {
	c, err := Build(testConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Cleanup(context.Background()) })

	assert.Nil(t, c.Auth())
	assert.Nil(t, c.TokenValidator())
}

func TestBuildRejectsEmptySalt(t *testing.T) {
	cfg := testConfig(t)
	cfg.PermalinkSalt = ""

	_, err := Build(cfg)
	assert.Error(t, err)
}

func TestCleanupRunsInReverseOrder(t *testing.T) {
	c := New(config.Config{})
	var order []int
	boom := errors.New("boom")

	c.OnCleanup(func(context.Context) error { order = append(order, 1); return nil })
	c.OnCleanup(func(context.Context) error { order = append(order, 2); return boom })
	c.OnCleanup(func(context.Context) error { order = append(order, 3); return nil })

	err := c.Cleanup(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []int{3, 2, 1}, order)

	// A second call has nothing left to run.
	require.NoError(t, c.Cleanup(context.Background()))
	assert.Len(t, order, 3)
}

func TestValidateReportsMissingDependencies(t *testing.T) {
	err := New(config.Config{}).Validate()

	var initErr *InitializationError
	require.ErrorAs(t, err, &initErr)
	assert.Contains(t, initErr.MissingDeps, "database (DB)")
}

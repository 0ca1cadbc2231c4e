package wirekit_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/junioryono/wirekit"
	"github.com/junioryono/wirekit/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const engineConfig = `
profile: economy
lifecycles:
  '*testutil.Car': Unique
defaults:
  testutil.Engine: v6
profiles:
  economy:
    testutil.Engine: v8
  sport:
    testutil.Engine: v6
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// unsetEnv clears key for the test and restores it afterwards.
func unsetEnv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))
}

func TestLoadConfig(t *testing.T) {
	t.Run("full document", func(t *testing.T) {
		cfg, err := wirekit.LoadConfig(strings.NewReader(engineConfig))
		require.NoError(t, err)

		assert.Equal(t, "economy", cfg.Profile)
		assert.Equal(t, "Unique", cfg.Lifecycles["*testutil.Car"])
		assert.Equal(t, "v6", cfg.Defaults["testutil.Engine"])
		assert.Equal(t, "v8", cfg.Profiles["economy"]["testutil.Engine"])
	})

	t.Run("empty document", func(t *testing.T) {
		cfg, err := wirekit.LoadConfig(strings.NewReader(""))
		require.NoError(t, err)
		assert.Empty(t, cfg.Profile)
	})

	t.Run("unknown field", func(t *testing.T) {
		_, err := wirekit.LoadConfig(strings.NewReader("profiel: economy\n"))
		var cfgErr wirekit.ConfigError
		require.True(t, errors.As(err, &cfgErr))
		assert.Equal(t, "reader", cfgErr.Source)
	})

	t.Run("invalid lifetime", func(t *testing.T) {
		_, err := wirekit.LoadConfig(strings.NewReader("lifecycles:\n  testutil.Engine: forever\n"))
		var cfgErr wirekit.ConfigError
		require.True(t, errors.As(err, &cfgErr))
		assert.Equal(t, "lifecycles.testutil.Engine", cfgErr.Field)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := wirekit.LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestApplyConfig(t *testing.T) {
	t.Run("configures the graph", func(t *testing.T) {
		cfg, err := wirekit.LoadConfig(strings.NewReader(engineConfig))
		require.NoError(t, err)

		c := testutil.NewContainer(t, []wirekit.Module{
			testutil.EngineModule(),
			wirekit.Use[*testutil.Car](testutil.NewCar),
			wirekit.WithConfig(cfg),
		})

		assert.Equal(t, "economy", c.Profile())
		assert.Equal(t, 8, testutil.AssertResolvable[testutil.Engine](t, c).Cylinders())

		first := testutil.AssertResolvable[*testutil.Car](t, c)
		second := testutil.AssertResolvable[*testutil.Car](t, c)
		assert.NotSame(t, first, second)

		require.NoError(t, c.SetProfile(""))
		assert.Equal(t, 6, testutil.AssertResolvable[testutil.Engine](t, c).Cylinders())
	})

	t.Run("unknown plugin type", func(t *testing.T) {
		cfg := &wirekit.Config{Defaults: map[string]string{"testutil.Boat": "sail"}}

		_, err := wirekit.Build(testutil.EngineModule(), wirekit.WithConfig(cfg))
		var cfgErr wirekit.ConfigError
		require.True(t, errors.As(err, &cfgErr))
		assert.Equal(t, "defaults.testutil.Boat", cfgErr.Field)
	})

	t.Run("unknown default name", func(t *testing.T) {
		cfg := &wirekit.Config{Defaults: map[string]string{"testutil.Engine": "v12"}}

		_, err := wirekit.Build(testutil.EngineModule(), wirekit.WithConfig(cfg))
		assert.True(t, wirekit.IsMissing(err))
	})

	t.Run("nil config", func(t *testing.T) {
		_, err := wirekit.Build(testutil.EngineModule(), wirekit.WithConfig(nil))
		assert.NoError(t, err)
	})
}

func TestConfigFromEnv(t *testing.T) {
	t.Run("dotenv file names the config", func(t *testing.T) {
		unsetEnv(t, wirekit.EnvConfig)
		unsetEnv(t, wirekit.EnvProfile)

		dir := t.TempDir()
		cfgPath := writeFile(t, dir, "wirekit.yaml", engineConfig)
		envPath := writeFile(t, dir, ".env", wirekit.EnvConfig+"="+cfgPath+"\n"+wirekit.EnvProfile+"=sport\n")

		cfg, err := wirekit.ConfigFromEnv(envPath)
		require.NoError(t, err)
		assert.Equal(t, "sport", cfg.Profile)
		assert.Equal(t, "v6", cfg.Defaults["testutil.Engine"])
	})

	t.Run("environment without files", func(t *testing.T) {
		unsetEnv(t, wirekit.EnvConfig)
		t.Setenv(wirekit.EnvProfile, "economy")

		cfg, err := wirekit.ConfigFromEnv(filepath.Join(t.TempDir(), ".env"))
		require.NoError(t, err)
		assert.Equal(t, "economy", cfg.Profile)
		assert.Empty(t, cfg.Defaults)
	})

	t.Run("config file missing", func(t *testing.T) {
		unsetEnv(t, wirekit.EnvProfile)
		t.Setenv(wirekit.EnvConfig, filepath.Join(t.TempDir(), "missing.yaml"))

		_, err := wirekit.ConfigFromEnv(filepath.Join(t.TempDir(), ".env"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

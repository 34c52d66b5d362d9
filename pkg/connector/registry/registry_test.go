package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/railstream/pkg/config"
	"github.com/ajitpratap0/railstream/pkg/connector/core"
	"github.com/ajitpratap0/railstream/pkg/errors"
)

func stubFactory(src core.Source, err error) SourceFactory {
	return func(*config.BaseConfig) (core.Source, error) {
		return src, err
	}
}

func TestRegisterAndCreateSource(t *testing.T) {
	reg := NewRegistry()

	created := false
	require.NoError(t, reg.RegisterSource("stub", func(cfg *config.BaseConfig) (core.Source, error) {
		created = true
		assert.Equal(t, "stub", cfg.Type)
		return nil, nil
	}))

	_, err := reg.CreateSource("stub", config.NewBaseConfig("test", "stub"))
	require.NoError(t, err)
	assert.True(t, created)
}

func TestRegisterDuplicateSource(t *testing.T) {
	reg := NewRegistry()

	require.NoError(t, reg.RegisterSource("dup", stubFactory(nil, nil)))

	err := reg.RegisterSource("dup", stubFactory(nil, nil))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
	assert.Contains(t, err.Error(), "already registered")
}

func TestCreateUnknownSource(t *testing.T) {
	reg := NewRegistry()

	_, err := reg.CreateSource("missing", config.NewBaseConfig("test", "missing"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
	assert.Contains(t, err.Error(), "not found")
}

func TestCreateSourceFactoryError(t *testing.T) {
	reg := NewRegistry()

	boom := errors.New(errors.ErrorTypeConfig, "bad credentials")
	require.NoError(t, reg.RegisterSource("broken", stubFactory(nil, boom)))

	_, err := reg.CreateSource("broken", config.NewBaseConfig("test", "broken"))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestListSourcesSorted(t *testing.T) {
	reg := NewRegistry()

	require.NoError(t, reg.RegisterSource("zeta", stubFactory(nil, nil)))
	require.NoError(t, reg.RegisterSource("alpha", stubFactory(nil, nil)))
	require.NoError(t, reg.RegisterSource("mid", stubFactory(nil, nil)))

	assert.Equal(t, []string{"alpha", "mid", "zeta"}, reg.ListSources())
}

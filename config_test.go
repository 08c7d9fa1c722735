package wasmvalid

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/wazvalid/wasmvalid/api"
)

func TestConfig_WithMethodsReturnClones(t *testing.T) {
	base := NewConfig()
	derived := base.WithFeatures(api.CoreFeaturesGC).WithMaxTypes(10).WithWorkerCount(4)

	require.Equal(t, api.CoreFeaturesV2, base.features)
	require.Equal(t, api.CoreFeaturesGC, derived.features)
	require.Equal(t, 10, derived.limits.MaxTypes)
	require.Equal(t, 4, derived.workerCount)
	require.NotEqual(t, base.limits.MaxTypes, derived.limits.MaxTypes)
}

func TestConfig_WithLogger(t *testing.T) {
	logger := logrus.New()
	cfg := NewConfig().WithLogger(logger)
	require.Same(t, logger, cfg.logger)
	require.Nil(t, NewConfig().logger)
}

func TestConfig_WithMaxTypeSize(t *testing.T) {
	cfg := NewConfig().WithMaxTypeSize(42)
	require.EqualValues(t, 42, cfg.limits.MaxTypeSize)
}

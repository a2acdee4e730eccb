package strategies

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigDefaults(t *testing.T) {
	cfg := Config{SCMIFunction: FunctionFLCMI}
	require.NoError(t, cfg.SetDefaultsAndValidate())

	assert.Equal(t, "NaiveGreedy", cfg.Optimizer)
	assert.Equal(t, "cosine", cfg.Metric)
	assert.Equal(t, 1.0, *cfg.Eta)
	assert.Equal(t, 1.0, *cfg.Nu)
	assert.Equal(t, 1.0, *cfg.LambdaVal)
	assert.Equal(t, EmbeddingGradients, cfg.EmbeddingType)
	assert.Equal(t, "bias_linear", cfg.GradType)
	assert.Equal(t, "avgpool", cfg.LayerName)
	assert.False(t, cfg.StopIfZeroGain)
	assert.False(t, cfg.StopIfNegativeGain)
	assert.False(t, cfg.KeepEmbedding)
	assert.False(t, cfg.Verbose)
}

func TestConfigKeepsExplicitValues(t *testing.T) {
	eta := 3.0
	cfg := Config{
		SCMIFunction: FunctionLogDetCMI,
		Optimizer:    "LazyGreedy",
		Metric:       "euclidean",
		Eta:          &eta,
		GradType:     "bias",
	}
	require.NoError(t, cfg.SetDefaultsAndValidate())

	assert.Equal(t, "LazyGreedy", cfg.Optimizer)
	assert.Equal(t, "euclidean", cfg.Metric)
	assert.Equal(t, 3.0, *cfg.Eta)
	assert.Equal(t, "bias", cfg.GradType)
}

func TestConfigValidation(t *testing.T) {
	zero := 0.0

	tests := []struct {
		name     string
		cfg      Config
		contains string
	}{
		{
			name:     "missing function",
			cfg:      Config{},
			contains: "scmi function must be set",
		},
		{
			name:     "unsupported function",
			cfg:      Config{SCMIFunction: "gcmi"},
			contains: "scmi function must be one of",
		},
		{
			name:     "unsupported embedding type",
			cfg:      Config{SCMIFunction: FunctionFLCMI, EmbeddingType: "activations"},
			contains: "embedding type must be one of",
		},
		{
			name:     "unsupported grad type",
			cfg:      Config{SCMIFunction: FunctionFLCMI, GradType: "weights"},
			contains: "gradient type must be one of",
		},
		{
			name:     "unsupported metric",
			cfg:      Config{SCMIFunction: FunctionFLCMI, Metric: "manhattan"},
			contains: "metric must be one of",
		},
		{
			name:     "unsupported optimizer",
			cfg:      Config{SCMIFunction: FunctionFLCMI, Optimizer: "BeamSearch"},
			contains: "unsupported optimizer",
		},
		{
			name:     "non-positive lambda",
			cfg:      Config{SCMIFunction: FunctionLogDetCMI, LambdaVal: &zero},
			contains: "lambdaVal must be positive",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := test.cfg.SetDefaultsAndValidate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrConfiguration))
			assert.Contains(t, err.Error(), test.contains)
		})
	}
}

func TestConfigGradTypeIgnoredForFeatures(t *testing.T) {
	// An off-list grad type is irrelevant when features are selected.
	cfg := Config{
		SCMIFunction:  FunctionFLCMI,
		EmbeddingType: EmbeddingFeatures,
		GradType:      "weights",
	}
	require.NoError(t, cfg.SetDefaultsAndValidate())
}

package strategies

import (
	"github.com/pkg/errors"

	"github.com/shrey23812/trust/embeddings"
	"github.com/shrey23812/trust/submod"
)

// ErrConfiguration marks strategy configuration failures. These surface
// at construction time, before any embedding or kernel work, and are
// checkable with errors.Is.
var ErrConfiguration = errors.New("invalid strategy configuration")

// SCMI objective variants.
const (
	FunctionFLCMI     = "flcmi"
	FunctionLogDetCMI = "logdetcmi"
)

// Embedding sources.
const (
	EmbeddingGradients = "gradients"
	EmbeddingFeatures  = "features"
)

// Config holds the settings of an SCMI selection strategy. SCMIFunction
// is required; everything else has a default filled in by
// SetDefaultsAndValidate.
type Config struct {
	// SCMIFunction selects the objective variant, "flcmi" or
	// "logdetcmi". Required.
	SCMIFunction string
	// Optimizer names the maximization strategy. Default: NaiveGreedy.
	Optimizer string
	// Metric is the kernel similarity metric, "cosine" or "euclidean".
	// Default: cosine.
	Metric string
	// Eta trades query-relevance against diversity; higher is more
	// query-focused. Default: 1.
	Eta *float64
	// Nu governs the hardness of the privacy constraint. Default: 1.
	Nu *float64
	// LambdaVal regularizes the log-determinant objective's kernel
	// diagonal. Only used by logdetcmi. Default: 1.
	LambdaVal *float64
	// EmbeddingType is the embedding source, "gradients" or "features".
	// Default: gradients.
	EmbeddingType string
	// GradType composes gradient embeddings from "bias", "linear" or
	// "bias_linear" blocks. Only used with gradient embeddings.
	// Default: bias_linear.
	GradType string
	// LayerName is the feature-extraction layer. Only used with feature
	// embeddings. Default: avgpool.
	LayerName string
	// StopIfZeroGain halts maximization on zero marginal gain.
	StopIfZeroGain bool
	// StopIfNegativeGain halts maximization on negative marginal gain.
	StopIfNegativeGain bool
	// KeepEmbedding retains the computed embedding matrices on the
	// strategy instance after Select.
	KeepEmbedding bool
	// Verbose enables per-acceptance maximizer logging.
	Verbose bool
}

// SetDefaultsAndValidate fills unset options with their defaults and
// validates the result. Validation is eager so that a misconfigured
// strategy fails before any expensive computation.
func (c *Config) SetDefaultsAndValidate() error {
	c.setDefaults()
	return c.validate()
}

func (c *Config) setDefaults() {
	c.Optimizer = optionalString(c.Optimizer, submod.OptimizerNaiveGreedy)
	c.Metric = optionalString(c.Metric, string(submod.MetricCosine))
	c.Eta = optionalFloat(c.Eta, 1)
	c.Nu = optionalFloat(c.Nu, 1)
	c.LambdaVal = optionalFloat(c.LambdaVal, 1)
	c.EmbeddingType = optionalString(c.EmbeddingType, EmbeddingGradients)
	c.GradType = optionalString(c.GradType, string(embeddings.GradBiasLinear))
	c.LayerName = optionalString(c.LayerName, "avgpool")
}

func (c *Config) validate() error {
	switch c.SCMIFunction {
	case FunctionFLCMI, FunctionLogDetCMI:
	case "":
		return errors.Wrap(ErrConfiguration, "scmi function must be set")
	default:
		return errors.Wrapf(ErrConfiguration,
			"scmi function must be one of [flcmi, logdetcmi], got %q", c.SCMIFunction)
	}

	switch c.EmbeddingType {
	case EmbeddingGradients, EmbeddingFeatures:
	default:
		return errors.Wrapf(ErrConfiguration,
			"embedding type must be one of [gradients, features], got %q", c.EmbeddingType)
	}

	if c.EmbeddingType == EmbeddingGradients && !embeddings.GradType(c.GradType).Valid() {
		return errors.Wrapf(ErrConfiguration,
			"gradient type must be one of [bias, linear, bias_linear], got %q", c.GradType)
	}

	if !submod.Metric(c.Metric).Valid() {
		return errors.Wrapf(ErrConfiguration,
			"metric must be one of [cosine, euclidean], got %q", c.Metric)
	}

	if _, err := submod.NewOptimizer(c.Optimizer); err != nil {
		return errors.Wrapf(ErrConfiguration, "%s", err)
	}

	if *c.LambdaVal <= 0 {
		return errors.Wrapf(ErrConfiguration,
			"lambdaVal must be positive, got %f", *c.LambdaVal)
	}

	return nil
}

func optionalString(value, defaultValue string) string {
	if value == "" {
		return defaultValue
	}
	return value
}

func optionalFloat(value *float64, defaultValue float64) *float64 {
	if value == nil {
		return &defaultValue
	}
	return value
}

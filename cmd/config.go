package cmd

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

type Config struct {
	Mode               string
	EmbeddingsFile     string
	EmbeddingsURL      string
	EmbeddingsOrigin   string
	Provider           string
	SCMIFunction       string
	Optimizer          string
	Metric             string
	Eta                float64
	Nu                 float64
	LambdaVal          float64
	EmbeddingType      string
	GradType           string
	LayerName          string
	Budget             int
	StopIfZeroGain     bool
	StopIfNegativeGain bool
	KeepEmbedding      bool
	Verbose            bool
	OutputFormat       string
	OutputFile         string
	Labels             string
	LabelMap           map[string]string
	PrometheusConfig   PrometheusConfig
}

// PrometheusConfig holds configuration for Prometheus metrics reporting
type PrometheusConfig struct {
	Enabled    bool
	PushURL    string
	JobName    string
	PushPeriod time.Duration
}

func (c *Config) Validate() error {
	if err := c.validateCommon(); err != nil {
		return err
	}

	// validate specific
	switch c.Mode {
	case "select":
		return c.validateSelect()
	default:
		return errors.Errorf("unrecognized mode %q", c.Mode)
	}
}

func (c *Config) validateCommon() error {
	switch c.OutputFormat {
	case "text", "":
		c.OutputFormat = "text"
	case "json":
	default:
		return errors.Errorf("unsupported output format %q, must be one of [text, json]",
			c.OutputFormat)
	}

	return nil
}

func (c *Config) validateSelect() error {
	if c.Budget <= 0 {
		return errors.Errorf("budget must be set and larger than 0")
	}

	switch c.Provider {
	case "hdf5":
		if c.EmbeddingsFile == "" && c.EmbeddingsURL == "" {
			return errors.Errorf("an embeddings file or url must be provided")
		}
	case "remote":
		if c.EmbeddingsOrigin == "" {
			return errors.Errorf("an embedding service origin must be provided")
		}
	default:
		return errors.Errorf("unsupported provider %q, must be one of [hdf5, remote]",
			c.Provider)
	}

	return nil
}

func (c *Config) parseLabels() {
	result := make(map[string]string)
	pairs := strings.Split(c.Labels, ",")

	for _, pair := range pairs {
		kv := strings.SplitN(pair, "=", 2) // SplitN to make sure we only split on the first "="
		if len(kv) == 2 {
			result[kv[0]] = kv[1]
		}
	}

	c.LabelMap = result
}

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	retryablehttp "github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/shrey23812/trust/embeddings"
	"github.com/shrey23812/trust/strategies"
)

func initSelect() {
	rootCmd.AddCommand(selectCmd)
	f := selectCmd.PersistentFlags()
	f.StringVarP(&globalConfig.EmbeddingsFile, "embeddings", "e", "", "Path to an HDF5 embedding store")
	f.StringVar(&globalConfig.EmbeddingsURL, "embeddings-url", "", "URL to download the HDF5 embedding store from")
	f.StringVar(&globalConfig.EmbeddingsOrigin, "embeddings-origin", "", "Origin of a remote embedding service")
	f.StringVar(&globalConfig.Provider, "provider", "hdf5", "Embedding provider, one of [hdf5, remote]")
	f.StringVarP(&globalConfig.SCMIFunction, "function", "f", "", "SCMI function, one of [flcmi, logdetcmi]")
	f.StringVar(&globalConfig.Optimizer, "optimizer", "NaiveGreedy", "Submodular maximization optimizer")
	f.StringVarP(&globalConfig.Metric, "metric", "m", "cosine", "Similarity metric, one of [cosine, euclidean]")
	f.Float64Var(&globalConfig.Eta, "eta", 1, "Query-relevance vs diversity trade-off")
	f.Float64Var(&globalConfig.Nu, "nu", 1, "Privacy-constraint hardness")
	f.Float64Var(&globalConfig.LambdaVal, "lambda", 1, "Log-determinant kernel regularizer")
	f.StringVar(&globalConfig.EmbeddingType, "embedding-type", "gradients", "Embedding source, one of [gradients, features]")
	f.StringVar(&globalConfig.GradType, "grad-type", "bias_linear", "Gradient composition, one of [bias, linear, bias_linear]")
	f.StringVar(&globalConfig.LayerName, "layer-name", "avgpool", "Feature-extraction layer")
	f.IntVarP(&globalConfig.Budget, "budget", "b", 0, "Number of unlabeled points to select")
	f.BoolVar(&globalConfig.StopIfZeroGain, "stop-if-zero-gain", false, "Halt maximization on zero marginal gain")
	f.BoolVar(&globalConfig.StopIfNegativeGain, "stop-if-negative-gain", false, "Halt maximization on negative marginal gain")
	f.BoolVar(&globalConfig.KeepEmbedding, "keep-embedding", false, "Retain computed embeddings on the strategy")
	f.BoolVarP(&globalConfig.Verbose, "verbose", "v", false, "Verbose maximizer logging")
	f.StringVarP(&globalConfig.OutputFormat, "format", "o", "text", "Output format, one of [text, json]")
	f.StringVar(&globalConfig.OutputFile, "output-file", "", "Filename to write the results to, defaults to stdout")
	f.StringVar(&globalConfig.Labels, "labels", "", "Labels of format key1=value1,key2=value2,...")
	f.BoolVar(&globalConfig.PrometheusConfig.Enabled, "prometheus", false, "Push selection metrics to a Prometheus pushgateway")
	f.StringVar(&globalConfig.PrometheusConfig.PushURL, "prometheus-url", "", "Prometheus pushgateway URL")
	f.StringVar(&globalConfig.PrometheusConfig.JobName, "prometheus-job", "trust-select", "Prometheus job name")
}

// SelectionResults is the machine-readable record of one selection run.
type SelectionResults struct {
	RunID         string `json:"run_id"`
	Function      string `json:"function"`
	Optimizer     string `json:"optimizer"`
	Metric        string `json:"metric"`
	Dataset       string `json:"dataset_file,omitempty"`
	Budget        int    `json:"budget"`
	Selected      int    `json:"selected"`
	Indices       []int  `json:"indices"`
	Took          int64  `json:"took"`
	TookFormatted string `json:"tookFormatted"`
}

func (r SelectionResults) WriteTextTo(w io.Writer) (int64, error) {
	b := strings.Builder{}
	b.WriteString(fmt.Sprintf("Results\nRun: %s\nFunction: %s\nOptimizer: %s\nSelected: %d/%d\nTook: %s\nIndices: %v\n",
		r.RunID, r.Function, r.Optimizer, r.Selected, r.Budget, time.Duration(r.Took), r.Indices))

	n, err := w.Write([]byte(b.String()))
	return int64(n), err
}

func (r SelectionResults) WriteJSONTo(w io.Writer) (int, error) {
	bytes, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return 0, err
	}

	return w.Write(bytes)
}

var selectCmd = &cobra.Command{
	Use:   "select",
	Short: "Select unlabeled points for labeling",
	Long:  `Selects up to budget unlabeled points maximizing conditional mutual information with the query set, conditioned on the private set`,
	Run: func(cmd *cobra.Command, args []string) {

		cfg := globalConfig
		cfg.Mode = "select"

		if err := cfg.Validate(); err != nil {
			fatal(err)
		}

		cfg.parseLabels()

		provider, cleanup, err := buildProvider(&cfg)
		if err != nil {
			fatal(err)
		}
		defer cleanup()

		strategy, err := strategies.NewSCMI(provider, strategyConfig(&cfg))
		if err != nil {
			fatal(err)
		}

		log.WithFields(log.Fields{"function": cfg.SCMIFunction, "optimizer": cfg.Optimizer,
			"metric": cfg.Metric, "budget": cfg.Budget}).Info("Starting selection")

		before := time.Now()
		indices, err := strategy.Select(context.Background(), cfg.Budget)
		if err != nil {
			fatal(err)
		}
		took := time.Since(before)

		result := SelectionResults{
			RunID:         uuid.NewString(),
			Function:      cfg.SCMIFunction,
			Optimizer:     cfg.Optimizer,
			Metric:        cfg.Metric,
			Dataset:       filepath.Base(cfg.EmbeddingsFile),
			Budget:        cfg.Budget,
			Selected:      len(indices),
			Indices:       indices,
			Took:          int64(took),
			TookFormatted: fmt.Sprint(took),
		}

		if err := writeResults(&cfg, result); err != nil {
			fatal(err)
		}
		if cfg.OutputFile != "" {
			infof("Wrote results to %s", cfg.OutputFile)
		}

		if err := PushMetricsToPrometheus(&cfg, &result); err != nil {
			log.WithError(err).Error("Pushing metrics failed")
		}
	},
}

func strategyConfig(cfg *Config) strategies.Config {
	return strategies.Config{
		SCMIFunction:       cfg.SCMIFunction,
		Optimizer:          cfg.Optimizer,
		Metric:             cfg.Metric,
		Eta:                &cfg.Eta,
		Nu:                 &cfg.Nu,
		LambdaVal:          &cfg.LambdaVal,
		EmbeddingType:      cfg.EmbeddingType,
		GradType:           cfg.GradType,
		LayerName:          cfg.LayerName,
		StopIfZeroGain:     cfg.StopIfZeroGain,
		StopIfNegativeGain: cfg.StopIfNegativeGain,
		KeepEmbedding:      cfg.KeepEmbedding,
		Verbose:            cfg.Verbose,
	}
}

func buildProvider(cfg *Config) (embeddings.Provider, func(), error) {
	switch cfg.Provider {
	case "remote":
		return embeddings.NewRemoteProvider(cfg.EmbeddingsOrigin), func() {}, nil
	default:
		path := cfg.EmbeddingsFile
		if cfg.EmbeddingsURL != "" {
			downloaded, err := downloadEmbeddings(cfg.EmbeddingsURL)
			if err != nil {
				return nil, nil, err
			}
			path = downloaded
			cfg.EmbeddingsFile = downloaded
		}

		store, err := embeddings.OpenHDF5Store(path)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	}
}

// downloadEmbeddings fetches an embedding store into the working
// directory, skipping the download if the file is already present.
func downloadEmbeddings(url string) (string, error) {
	path := filepath.Base(url)
	if _, err := os.Stat(path); err == nil {
		log.WithFields(log.Fields{"path": path}).Info("Embedding store already downloaded")
		return path, nil
	}

	log.WithFields(log.Fields{"url": url}).Info("Downloading embedding store")

	client := retryablehttp.NewClient()
	client.Logger = nil

	res, err := client.Get(url)
	if err != nil {
		return "", errors.Wrapf(err, "download %s", url)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return "", errors.Errorf("download %s returned status %d", url, res.StatusCode)
	}

	out, err := os.Create(path)
	if err != nil {
		return "", errors.Wrap(err, "create embedding store file")
	}
	defer out.Close()

	if _, err := io.Copy(out, res.Body); err != nil {
		return "", errors.Wrap(err, "write embedding store file")
	}

	return path, nil
}

func writeResults(cfg *Config, result SelectionResults) error {
	var w io.Writer = os.Stdout
	if cfg.OutputFile != "" {
		f, err := os.Create(cfg.OutputFile)
		if err != nil {
			return errors.Wrap(err, "create output file")
		}
		defer f.Close()
		w = f
	}

	var err error
	if cfg.OutputFormat == "json" {
		_, err = result.WriteJSONTo(w)
	} else {
		_, err = result.WriteTextTo(w)
	}
	return err
}

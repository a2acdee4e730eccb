// Package strategies implements active-learning selection strategies.
//
// The SCMI strategy picks points from an unlabeled pool that are similar
// to a user-provided query set while dissimilar to a private set, by
// maximizing a submodular conditional mutual information objective
// between the selected subset and the query set, conditioned on the
// private set.
package strategies

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"github.com/shrey23812/trust/embeddings"
	"github.com/shrey23812/trust/submod"
)

// SCMI is the submodular conditional mutual information selection
// strategy. Construct it with NewSCMI; configuration problems surface
// there, never later.
type SCMI struct {
	provider embeddings.Provider
	cfg      Config

	// Set after Select when KeepEmbedding is configured.
	UnlabeledEmbedding embeddings.Matrix
	QueryEmbedding     embeddings.Matrix
	PrivateEmbedding   embeddings.Matrix
}

// NewSCMI builds an SCMI strategy over the given embedding provider.
// The provider must serve the unlabeled, query and private splits.
func NewSCMI(provider embeddings.Provider, cfg Config) (*SCMI, error) {
	if provider == nil {
		return nil, errors.Wrap(ErrConfiguration, "embedding provider must be set")
	}
	if err := cfg.SetDefaultsAndValidate(); err != nil {
		return nil, err
	}
	return &SCMI{provider: provider, cfg: cfg}, nil
}

// Select returns up to budget distinct indices into the unlabeled split,
// in acceptance order of the configured greedy optimizer.
func (s *SCMI) Select(ctx context.Context, budget int) ([]int, error) {
	if budget <= 0 {
		return nil, errors.Wrapf(ErrConfiguration, "budget must be positive, got %d", budget)
	}

	start := time.Now()

	unlabeled, query, private, err := s.computeEmbeddings(ctx)
	if err != nil {
		return nil, err
	}

	if s.cfg.KeepEmbedding {
		s.UnlabeledEmbedding = unlabeled
		s.QueryEmbedding = query
		s.PrivateEmbedding = private
	}

	obj, err := s.buildObjective(unlabeled, query, private)
	if err != nil {
		return nil, err
	}

	optimizer, err := submod.NewOptimizer(s.cfg.Optimizer)
	if err != nil {
		return nil, errors.Wrapf(ErrConfiguration, "%s", err)
	}

	greedy, err := optimizer.Maximize(obj, submod.Options{
		Budget:             budget,
		StopIfZeroGain:     s.cfg.StopIfZeroGain,
		StopIfNegativeGain: s.cfg.StopIfNegativeGain,
		Verbose:            s.cfg.Verbose,
	})
	if err != nil {
		return nil, errors.Wrap(err, "maximize objective")
	}

	indices := make([]int, len(greedy))
	for i, g := range greedy {
		indices[i] = g.Index
	}

	log.WithFields(log.Fields{"function": s.cfg.SCMIFunction, "optimizer": s.cfg.Optimizer,
		"budget": budget, "selected": len(indices), "took": time.Since(start)}).Info("Selection done")

	return indices, nil
}

func (s *SCMI) computeEmbeddings(ctx context.Context) (unlabeled, query, private embeddings.Matrix, err error) {
	switch s.cfg.EmbeddingType {
	case EmbeddingGradients:
		gradType := embeddings.GradType(s.cfg.GradType)
		unlabeled, err = s.provider.GradientEmbeddings(ctx, embeddings.SplitUnlabeled, true, gradType)
		if err != nil {
			return nil, nil, nil, errors.Wrap(err, "unlabeled gradient embeddings")
		}
		query, err = s.provider.GradientEmbeddings(ctx, embeddings.SplitQuery, false, gradType)
		if err != nil {
			return nil, nil, nil, errors.Wrap(err, "query gradient embeddings")
		}
		private, err = s.provider.GradientEmbeddings(ctx, embeddings.SplitPrivate, false, gradType)
		if err != nil {
			return nil, nil, nil, errors.Wrap(err, "private gradient embeddings")
		}
	case EmbeddingFeatures:
		unlabeled, err = s.provider.FeatureEmbeddings(ctx, embeddings.SplitUnlabeled, true, s.cfg.LayerName)
		if err != nil {
			return nil, nil, nil, errors.Wrap(err, "unlabeled feature embeddings")
		}
		query, err = s.provider.FeatureEmbeddings(ctx, embeddings.SplitQuery, false, s.cfg.LayerName)
		if err != nil {
			return nil, nil, nil, errors.Wrap(err, "query feature embeddings")
		}
		private, err = s.provider.FeatureEmbeddings(ctx, embeddings.SplitPrivate, false, s.cfg.LayerName)
		if err != nil {
			return nil, nil, nil, errors.Wrap(err, "private feature embeddings")
		}
	}
	return unlabeled, query, private, nil
}

func (s *SCMI) buildObjective(unlabeled, query, private embeddings.Matrix) (submod.Objective, error) {
	metric := submod.Metric(s.cfg.Metric)

	dataSijs, err := submod.Kernel(unlabeled, metric)
	if err != nil {
		return nil, errors.Wrap(err, "data kernel")
	}
	querySijs, err := submod.CrossKernel(unlabeled, query, metric)
	if err != nil {
		return nil, errors.Wrap(err, "data-query kernel")
	}
	privateSijs, err := submod.CrossKernel(unlabeled, private, metric)
	if err != nil {
		return nil, errors.Wrap(err, "data-private kernel")
	}

	switch s.cfg.SCMIFunction {
	case FunctionFLCMI:
		return submod.NewFacilityLocationCMI(dataSijs, querySijs, privateSijs,
			*s.cfg.Eta, *s.cfg.Nu)
	case FunctionLogDetCMI:
		var queryQuerySijs, privatePrivateSijs, queryPrivateSijs *mat.Dense
		queryQuerySijs, err = submod.Kernel(query, metric)
		if err != nil {
			return nil, errors.Wrap(err, "query-query kernel")
		}
		privatePrivateSijs, err = submod.Kernel(private, metric)
		if err != nil {
			return nil, errors.Wrap(err, "private-private kernel")
		}
		queryPrivateSijs, err = submod.CrossKernel(query, private, metric)
		if err != nil {
			return nil, errors.Wrap(err, "query-private kernel")
		}
		return submod.NewLogDeterminantCMI(dataSijs, querySijs, privateSijs,
			queryQuerySijs, privatePrivateSijs, queryPrivateSijs,
			*s.cfg.Eta, *s.cfg.Nu, *s.cfg.LambdaVal)
	}

	// Unreachable, NewSCMI validated the function name.
	return nil, errors.Wrapf(ErrConfiguration, "unsupported scmi function %q", s.cfg.SCMIFunction)
}

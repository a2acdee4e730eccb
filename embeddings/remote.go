package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	retryablehttp "github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
)

// RemoteProvider fetches embedding matrices from an embedding service
// over HTTP. The service exposes POST {origin}/v1/embeddings and answers
// with the full matrix for the requested split.
type RemoteProvider struct {
	origin string
	client *retryablehttp.Client
}

// NewRemoteProvider builds a provider against the given origin, for
// example "http://localhost:9090". Transient failures are retried with
// backoff.
func NewRemoteProvider(origin string) *RemoteProvider {
	client := retryablehttp.NewClient()
	client.Logger = nil
	client.RetryMax = 3
	return &RemoteProvider{origin: origin, client: client}
}

type embeddingRequest struct {
	Split        string `json:"split"`
	Kind         string `json:"kind"`
	Hypothesized bool   `json:"hypothesized"`
	GradType     string `json:"gradType,omitempty"`
	Layer        string `json:"layer,omitempty"`
}

type embeddingResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Error      string      `json:"error,omitempty"`
}

func (p *RemoteProvider) GradientEmbeddings(ctx context.Context, split string, hypothesized bool, gradType GradType) (Matrix, error) {
	return p.fetch(ctx, embeddingRequest{
		Split:        split,
		Kind:         "gradients",
		Hypothesized: hypothesized,
		GradType:     string(gradType),
	})
}

func (p *RemoteProvider) FeatureEmbeddings(ctx context.Context, split string, hypothesized bool, layer string) (Matrix, error) {
	return p.fetch(ctx, embeddingRequest{
		Split:        split,
		Kind:         "features",
		Hypothesized: hypothesized,
		Layer:        layer,
	})
}

func (p *RemoteProvider) fetch(ctx context.Context, payload embeddingRequest) (Matrix, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "marshal embedding request")
	}

	url := fmt.Sprintf("%s/v1/embeddings", p.origin)
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "build embedding request")
	}
	req.Header.Set("content-type", "application/json")

	res, err := p.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "fetch %s embeddings for split %q", payload.Kind, payload.Split)
	}
	defer res.Body.Close()

	resBody, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read embedding response")
	}

	if res.StatusCode != http.StatusOK {
		return nil, errors.Errorf("embedding service returned status %d: %s",
			res.StatusCode, string(resBody))
	}

	var parsed embeddingResponse
	if err := json.Unmarshal(resBody, &parsed); err != nil {
		return nil, errors.Wrap(err, "unmarshal embedding response")
	}
	if parsed.Error != "" {
		return nil, errors.Errorf("embedding service error: %s", parsed.Error)
	}

	out := Matrix(parsed.Embeddings)
	if err := out.Validate(); err != nil {
		return nil, errors.Wrapf(err, "split %q", payload.Split)
	}
	return out, nil
}

package embedding

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/sync/errgroup"

	"github.com/collexdb/collex/domain/model"
	"github.com/collexdb/collex/internal/config"
)

const remoteBatchMax = 10

// RemoteBackend calls an OpenAI-embeddings-API-compatible HTTP endpoint.
// It satisfies model.Backend at dtype F32.
type RemoteBackend struct {
	client *openai.Client
	model  string
	dim    int64

	maxRetries    int
	initialDelay  time.Duration
	backoffFactor float64
}

// NewRemoteBackend builds a RemoteBackend from the endpoint config. dim is
// the model's output dimensionality, as supplied by the caller.
func NewRemoteBackend(endpoint config.Endpoint, dim int64) *RemoteBackend {
	clientCfg := openai.DefaultConfig(endpoint.APIKey())
	if endpoint.BaseURL() != "" {
		clientCfg.BaseURL = endpoint.BaseURL()
	}
	clientCfg.HTTPClient = &http.Client{Timeout: endpoint.Timeout()}

	return &RemoteBackend{
		client:        openai.NewClientWithConfig(clientCfg),
		model:         endpoint.Model(),
		dim:           dim,
		maxRetries:    endpoint.MaxRetries(),
		initialDelay:  2 * time.Second,
		backoffFactor: 2.0,
	}
}

// Load is a no-op: the HTTP client has no session state to establish.
func (b *RemoteBackend) Load(context.Context) error { return nil }

// Unload is a no-op for the same reason.
func (b *RemoteBackend) Unload(context.Context) error { return nil }

// OutputDim returns the model's embedding dimensionality.
func (b *RemoteBackend) OutputDim() int64 { return b.dim }

// OutputDtype reports that the remote backend always predicts at float32.
func (b *RemoteBackend) OutputDtype() model.Dtype { return model.DtypeF32 }

// PredictF16 is not supported by the remote backend; OutputDtype reports
// DtypeF32 so callers never reach this path.
func (b *RemoteBackend) PredictF16(ctx context.Context, texts []string) ([][]float32, error) {
	return b.PredictF32(ctx, texts)
}

// PredictF32 splits texts into batches of remoteBatchMax, calls the
// embeddings endpoint for each batch concurrently, and reassembles results
// in input order.
func (b *RemoteBackend) PredictF32(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	batches := partition(texts, remoteBatchMax)
	results := make([][][]float32, len(batches))

	g, gctx := errgroup.WithContext(ctx)
	for i, batch := range batches {
		i, batch := i, batch
		g.Go(func() error {
			vecs, err := b.embedBatch(gctx, batch)
			if err != nil {
				return err
			}
			results[i] = vecs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([][]float32, 0, len(texts))
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}

func (b *RemoteBackend) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var resp openai.EmbeddingResponse
	err := withRetry(ctx, b.maxRetries, b.initialDelay, b.backoffFactor, func() error {
		var callErr error
		resp, callErr = b.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: texts,
			Model: openai.EmbeddingModel(b.model),
		})
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}

	out := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		out[i] = d.Embedding
	}
	return out, nil
}

func partition(texts []string, batchSize int) [][]string {
	var batches [][]string
	for i := 0; i < len(texts); i += batchSize {
		end := i + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batches = append(batches, texts[i:end])
	}
	return batches
}

func withRetry(ctx context.Context, maxRetries int, initialDelay time.Duration, backoffFactor float64, fn func() error) error {
	delay := initialDelay
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !isRetryable(lastErr) {
			return lastErr
		}
		if attempt == maxRetries {
			break
		}
		jitter := time.Duration(rand.Int63n(int64(delay) / 4))
		select {
		case <-time.After(delay + jitter):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay = time.Duration(float64(delay) * backoffFactor)
	}
	return lastErr
}

func isRetryable(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case 429, 500, 502, 503, 504:
			return true
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return true
	}
	return false
}

var _ model.Backend = (*RemoteBackend)(nil)

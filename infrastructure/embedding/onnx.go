// Package embedding provides the two concrete model.Backend
// implementations: a local ONNX transformer (onnx) and a remote
// OpenAI-embeddings-API-compatible HTTP client (remote).
package embedding

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/pipelines"

	"github.com/collexdb/collex/domain/model"
)

// ortSingleton holds the process-wide ONNX Runtime session. ORT allows only
// one active session per process, so every ONNXBackend shares it; the
// mutex also serializes inference, since ORT sessions are not safe for
// concurrent RunPipeline calls.
var ortSingleton struct {
	session *hugot.Session
	mu      sync.Mutex
}

// ONNXBackend runs a BERT-style feature-extraction model through an
// embedded ONNX Runtime session. It satisfies model.Backend at dtype F32.
type ONNXBackend struct {
	modelDir string
	dim      int64

	mu       sync.Mutex
	pipeline *pipelines.FeatureExtractionPipeline
}

// NewONNXBackend creates a backend that loads model.onnx/tokenizer.json
// from modelDir, declaring dim as its output dimensionality. dim is supplied
// by the caller (the index command's --dim flag); the model manifest read by
// internal/modelfetch carries no dimensionality.
func NewONNXBackend(modelDir string, dim int64) *ONNXBackend {
	return &ONNXBackend{modelDir: modelDir, dim: dim}
}

// Load initializes the shared ORT session (if not already done) and builds
// this backend's feature-extraction pipeline.
func (b *ONNXBackend) Load(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := os.Stat(filepath.Join(b.modelDir, "tokenizer.json")); err != nil {
		return fmt.Errorf("locate tokenizer.json in %s: %w", b.modelDir, err)
	}

	ortSingleton.mu.Lock()
	defer ortSingleton.mu.Unlock()

	if ortSingleton.session == nil {
		session, err := hugot.NewORTSession()
		if err != nil {
			return fmt.Errorf("create onnx runtime session: %w", err)
		}
		ortSingleton.session = session
	}

	config := hugot.FeatureExtractionConfig{
		ModelPath: b.modelDir,
		Name:      fmt.Sprintf("collex-%s", filepath.Base(b.modelDir)),
		Options: []hugot.FeatureExtractionOption{
			pipelines.WithNormalization(),
		},
	}
	pipeline, err := hugot.NewPipeline(ortSingleton.session, config)
	if err != nil {
		return fmt.Errorf("create feature extraction pipeline: %w", err)
	}
	b.pipeline = pipeline
	return nil
}

// PredictF32 tokenizes texts (padded to the batch's longest sequence) and
// runs the transformer, returning L2-normalized embeddings.
func (b *ONNXBackend) PredictF32(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	ortSingleton.mu.Lock()
	defer ortSingleton.mu.Unlock()

	result, err := b.pipeline.RunPipeline(texts)
	if err != nil {
		return nil, fmt.Errorf("run embedding pipeline: %w", err)
	}
	return result.Embeddings, nil
}

// PredictF16 is not supported by the onnx backend; callers dispatch to
// PredictF32 since OutputDtype reports DtypeF32.
func (b *ONNXBackend) PredictF16(ctx context.Context, texts []string) ([][]float32, error) {
	return b.PredictF32(ctx, texts)
}

// OutputDim returns the model's embedding dimensionality.
func (b *ONNXBackend) OutputDim() int64 { return b.dim }

// OutputDtype reports that the onnx backend always predicts at float32.
func (b *ONNXBackend) OutputDtype() model.Dtype { return model.DtypeF32 }

// Unload releases this backend's pipeline. The shared ORT session persists
// for the process lifetime since other backends may still be using it.
func (b *ONNXBackend) Unload(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pipeline = nil
	return nil
}

var _ model.Backend = (*ONNXBackend)(nil)

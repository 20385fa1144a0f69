// Package model implements the ModelManager: a registry of loaded
// embedding backends addressed by integer id, dispatching inference by the
// backend's declared output dtype.
package model

import (
	"context"
	"fmt"
	"sync"

	"github.com/collexdb/collex/domain/collerr"
)

// Dtype is the precision a backend's predict call returns.
type Dtype int

const (
	DtypeF32 Dtype = iota
	DtypeF16
	DtypeI8
)

func (d Dtype) String() string {
	switch d {
	case DtypeF32:
		return "f32"
	case DtypeF16:
		return "f16"
	case DtypeI8:
		return "i8"
	default:
		return "unknown"
	}
}

// Embeddings is a tagged union over the two dtypes a backend may return.
// Exactly one of F16/F32 is populated, selected by Kind.
type Embeddings struct {
	Kind Dtype
	F16  [][]float32 // decoded to float32 for callers; Kind reports the native precision
	F32  [][]float32
}

// Matrix returns the embeddings as a plain float32 matrix regardless of
// native dtype.
func (e Embeddings) Matrix() [][]float32 {
	if e.Kind == DtypeF16 {
		return e.F16
	}
	return e.F32
}

// Backend is the capability set an embedding model implementation exposes.
// Two concrete backends satisfy it: the local onnx transformer and the
// remote OpenAI-compatible HTTP client.
type Backend interface {
	Load(ctx context.Context) error
	Unload(ctx context.Context) error
	PredictF32(ctx context.Context, texts []string) ([][]float32, error)
	PredictF16(ctx context.Context, texts []string) ([][]float32, error)
	OutputDim() int64
	OutputDtype() Dtype
}

// Descriptor is the metadata the manager tracks per loaded model.
type Descriptor struct {
	ID      uint32
	Backend Backend
}

// Manager is the registry of loaded embedding backends.
type Manager struct {
	mu       sync.RWMutex
	nextID   uint32
	models   map[uint32]*Descriptor
	modelMus map[uint32]*sync.RWMutex
}

// NewManager creates an empty Manager.
func NewManager() *Manager {
	return &Manager{
		nextID:   1,
		models:   make(map[uint32]*Descriptor),
		modelMus: make(map[uint32]*sync.RWMutex),
	}
}

// Register loads backend and assigns it a fresh, stable model id.
func (m *Manager) Register(ctx context.Context, backend Backend) (uint32, error) {
	if err := backend.Load(ctx); err != nil {
		return 0, collerr.Wrap(collerr.BackendError, "model.register", "load backend", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	m.models[id] = &Descriptor{ID: id, Backend: backend}
	m.modelMus[id] = &sync.RWMutex{}
	return id, nil
}

func (m *Manager) lookup(id uint32) (*Descriptor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.models[id]
	if !ok {
		return nil, collerr.New(collerr.NotFound, "model.lookup", fmt.Sprintf("model id %d not registered", id))
	}
	return d, nil
}

// Predict dispatches inference to the registered model per its declared
// output dtype: F16 -> PredictF16, F32 -> PredictF32, I8 -> Unimplemented.
func (m *Manager) Predict(ctx context.Context, id uint32, texts []string) (Embeddings, error) {
	d, err := m.lookup(id)
	if err != nil {
		return Embeddings{}, err
	}

	m.mu.RLock()
	mu := m.modelMus[id]
	m.mu.RUnlock()
	mu.RLock()
	defer mu.RUnlock()

	switch d.Backend.OutputDtype() {
	case DtypeF16:
		vecs, err := d.Backend.PredictF16(ctx, texts)
		if err != nil {
			return Embeddings{}, collerr.Wrap(collerr.BackendError, "model.predict", "predict_f16", err)
		}
		return Embeddings{Kind: DtypeF16, F16: vecs}, nil
	case DtypeF32:
		vecs, err := d.Backend.PredictF32(ctx, texts)
		if err != nil {
			return Embeddings{}, collerr.Wrap(collerr.BackendError, "model.predict", "predict_f32", err)
		}
		return Embeddings{Kind: DtypeF32, F32: vecs}, nil
	default:
		return Embeddings{}, collerr.New(collerr.InvalidOperation, "model.predict", "I8 output dtype inference is unimplemented")
	}
}

// OutputDim returns the model's embedding dimensionality.
func (m *Manager) OutputDim(id uint32) (int64, error) {
	d, err := m.lookup(id)
	if err != nil {
		return 0, err
	}
	return d.Backend.OutputDim(), nil
}

// OutputDtype returns the model's native output precision.
func (m *Manager) OutputDtype(id uint32) (Dtype, error) {
	d, err := m.lookup(id)
	if err != nil {
		return 0, err
	}
	return d.Backend.OutputDtype(), nil
}

// Unload releases the backend resources for id and removes it from the registry.
func (m *Manager) Unload(ctx context.Context, id uint32) error {
	m.mu.Lock()
	d, ok := m.models[id]
	if ok {
		delete(m.models, id)
		delete(m.modelMus, id)
	}
	m.mu.Unlock()

	if !ok {
		return collerr.New(collerr.NotFound, "model.unload", fmt.Sprintf("model id %d not registered", id))
	}
	if err := d.Backend.Unload(ctx); err != nil {
		return collerr.Wrap(collerr.BackendError, "model.unload", "unload backend", err)
	}
	return nil
}

// Package vectorindex implements the ANN index that backs one indexed
// column of a Collection: a hand-rolled HNSW graph over cosine distance,
// with scalar quantization (F32/F16/I8) applied as precision rounding on
// insert; vectors are held in memory and persisted as float32.
package vectorindex

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"

	"github.com/collexdb/collex/domain/collerr"
	"github.com/collexdb/collex/internal/quantize"
)

// State is the VectorIndex lifecycle: Empty -> Configured -> Populated -> Persisted.
type State int

const (
	Empty State = iota
	Configured
	Populated
	Persisted
)

func (s State) String() string {
	switch s {
	case Configured:
		return "configured"
	case Populated:
		return "populated"
	case Persisted:
		return "persisted"
	default:
		return "empty"
	}
}

const indexFileName = "index.bin"

const (
	defaultM              = 16
	defaultEfConstruction = 200
	defaultEfSearch        = 64
	defaultSeed           = 1
)

// Result is one hit returned by Search: a row key and its similarity score.
type Result struct {
	Key   uint64
	Score float32
}

// VectorIndex is the per-column ANN facade described by the spec: it owns
// exactly one hnsw graph, the scalar quantizer for its configured Kind, and
// its on-disk location.
type VectorIndex struct {
	mu sync.RWMutex

	path  string
	state State

	dim   int
	kind  quantize.Kind
	graph *hnsw
	sq    *quantize.ScalarQuantizer // only set for Kind == I8
}

// Create sets up path as a VectorIndex root directory. If overwrite is
// true and path already holds an index file, it is removed first.
func Create(path string, overwrite bool) (*VectorIndex, error) {
	existing := filepath.Join(path, indexFileName)
	if _, err := os.Stat(existing); err == nil {
		if !overwrite {
			return nil, collerr.New(collerr.AlreadyExists, "vectorindex.create", fmt.Sprintf("index already exists at %s", path))
		}
		if err := os.Remove(existing); err != nil {
			return nil, collerr.Wrap(collerr.IOError, "vectorindex.create", "remove existing index", err)
		}
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, collerr.Wrap(collerr.IOError, "vectorindex.create", "create index directory", err)
	}
	return &VectorIndex{path: path, state: Empty}, nil
}

// Configure allocates the in-memory graph for dimension dim and scalar
// kind, reserving capacity hint slots. Must be called before Add.
func (v *VectorIndex) Configure(dim int, kind quantize.Kind, capacity int) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.state != Empty {
		return collerr.New(collerr.InvalidOperation, "vectorindex.configure", "index already configured")
	}
	v.dim = dim
	v.kind = kind
	v.graph = newHNSW(defaultM, defaultEfConstruction, defaultSeed)
	if capacity > 0 {
		v.graph.nodes = make(map[int]*hnswNode, capacity)
	}
	if kind == quantize.I8 {
		v.sq = quantize.NewScalarQuantizer(dim)
	}
	v.state = Configured
	return nil
}

// Open loads a previously saved index.bin from path. Dimension and scalar
// kind are recovered from the file and treated as authoritative.
func Open(path string) (*VectorIndex, error) {
	f, err := os.Open(filepath.Join(path, indexFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, collerr.Wrap(collerr.NotFound, "vectorindex.open", "index file missing", err)
		}
		return nil, collerr.Wrap(collerr.IOError, "vectorindex.open", "open index file", err)
	}
	defer f.Close()

	var persisted persistedIndex
	if err := gob.NewDecoder(f).Decode(&persisted); err != nil {
		return nil, collerr.Wrap(collerr.CorruptState, "vectorindex.open", "decode index file", err)
	}

	v := &VectorIndex{
		path:  path,
		state: Persisted,
		dim:   persisted.Dim,
		kind:  persisted.Kind,
		graph: &hnsw{
			m:              persisted.M,
			maxM:           persisted.M * 2,
			efConstruction: persisted.EfConstruction,
			entryPoint:     persisted.EntryPoint,
			nextID:         persisted.NextID,
			nodes:          make(map[int]*hnswNode, len(persisted.Nodes)),
		},
	}
	v.graph.rng = rand.New(rand.NewSource(defaultSeed))
	for _, n := range persisted.Nodes {
		node := n
		v.graph.nodes[node.NodeID] = &node
	}
	if persisted.Kind == quantize.I8 && persisted.Quantizer != nil {
		v.sq = persisted.Quantizer
	}
	return v, nil
}

// Add inserts len(keys) vectors, each D-dimensional, into the index.
// Concurrent calls are serialized by the index's own lock.
func (v *VectorIndex) Add(keys []uint64, vectors [][]float32) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.state == Empty {
		return collerr.New(collerr.InvalidOperation, "vectorindex.add", "index not configured")
	}
	if len(keys) != len(vectors) {
		return collerr.New(collerr.InvalidOperation, "vectorindex.add", "keys/vectors length mismatch")
	}

	for i, vec := range vectors {
		if len(vec) != v.dim {
			return collerr.New(collerr.InvalidOperation, "vectorindex.add", fmt.Sprintf("vector dimension %d does not match index dimension %d", len(vec), v.dim))
		}
		stored := vec
		if v.kind == quantize.I8 {
			if err := v.sq.Observe(vec); err != nil {
				return collerr.Wrap(collerr.Internal, "vectorindex.add", "observe for quantizer training", err)
			}
			enc, err := v.sq.Encode(vec)
			if err != nil {
				return collerr.Wrap(collerr.Internal, "vectorindex.add", "quantize vector", err)
			}
			dec, err := v.sq.Decode(enc)
			if err != nil {
				return collerr.Wrap(collerr.Internal, "vectorindex.add", "dequantize vector", err)
			}
			stored = dec
		} else if v.kind == quantize.F16 {
			stored = quantize.DecodeF16(quantize.EncodeF16(vec))
		}
		v.graph.insert(keys[i], stored)
	}

	if v.state == Configured {
		v.state = Populated
	}
	return nil
}

// Search returns up to k results ordered by descending score.
func (v *VectorIndex) Search(query []float32, k int) ([]Result, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.state == Empty {
		return nil, collerr.New(collerr.InvalidOperation, "vectorindex.search", "index not configured")
	}
	if len(query) != v.dim {
		return nil, collerr.New(collerr.InvalidOperation, "vectorindex.search", fmt.Sprintf("query dimension %d does not match index dimension %d", len(query), v.dim))
	}

	ef := defaultEfSearch
	if ef < k {
		ef = k * 2
	}
	hits := v.graph.search(query, k, ef)

	out := make([]Result, len(hits))
	for i, h := range hits {
		out[i] = Result{Key: h.key, Score: h.score}
	}
	return out, nil
}

// Size returns the number of live vectors in the index.
func (v *VectorIndex) Size() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.graph == nil {
		return 0
	}
	return v.graph.size()
}

// Dim returns the index's configured dimensionality.
func (v *VectorIndex) Dim() int { return v.dim }

// Kind returns the index's configured scalar quantization kind.
func (v *VectorIndex) Kind() quantize.Kind { return v.kind }

// State returns the index's current lifecycle state.
func (v *VectorIndex) State() State { return v.state }

// persistedIndex is the gob-encoded on-disk shape of a VectorIndex.
type persistedIndex struct {
	Dim            int
	Kind           quantize.Kind
	M              int
	EfConstruction int
	EntryPoint     int
	NextID         int
	Nodes          []hnswNode
	Quantizer      *quantize.ScalarQuantizer
}

// Save persists the index to <path>/index.bin.
func (v *VectorIndex) Save() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.state == Empty {
		return collerr.New(collerr.InvalidOperation, "vectorindex.save", "nothing to save, index not configured")
	}

	persisted := persistedIndex{
		Dim:            v.dim,
		Kind:           v.kind,
		M:              v.graph.m,
		EfConstruction: v.graph.efConstruction,
		EntryPoint:     v.graph.entryPoint,
		NextID:         v.graph.nextID,
		Quantizer:      v.sq,
	}
	for _, n := range v.graph.nodes {
		persisted.Nodes = append(persisted.Nodes, *n)
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&persisted); err != nil {
		return collerr.Wrap(collerr.Internal, "vectorindex.save", "encode index", err)
	}

	if err := os.MkdirAll(v.path, 0o755); err != nil {
		return collerr.Wrap(collerr.IOError, "vectorindex.save", "create index directory", err)
	}
	tmp := filepath.Join(v.path, indexFileName+".tmp")
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return collerr.Wrap(collerr.IOError, "vectorindex.save", "write index file", err)
	}
	if err := os.Rename(tmp, filepath.Join(v.path, indexFileName)); err != nil {
		return collerr.Wrap(collerr.IOError, "vectorindex.save", "finalize index file", err)
	}

	v.state = Persisted
	return nil
}

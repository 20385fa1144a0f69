// Package collection implements the Collection entity: a named on-disk
// dataset pairing a DuckDB-backed row store with one ANN vector index per
// embedded column, orchestrated through a shared model manager.
package collection

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/collexdb/collex/domain/collerr"
	"github.com/collexdb/collex/domain/model"
	"github.com/collexdb/collex/domain/vectorindex"
	"github.com/collexdb/collex/internal/quantize"
	"github.com/collexdb/collex/internal/rowstore"
)

const defaultIndexCapacity = 20000

// ModelRef names a model a collection expects to be preloaded at open time.
type ModelRef struct {
	Name    string
	Variant string
}

// SearchResult is one ranked hit returned by Search.
type SearchResult struct {
	Content string
	Key     uint64
	Score   float32
}

// Collection owns its row-store handle and its column->VectorIndex map.
// The model manager is shared across collections and is not owned here.
type Collection struct {
	root   string
	config Config
	db     *rowstore.Database
	models *model.Manager

	mu      sync.RWMutex
	indexes map[string]*vectorindex.VectorIndex
}

// Create builds a new collection at <homeRoot>/<name>. When overwrite is
// true, an existing directory by that name is removed first.
func Create(ctx context.Context, homeRoot string, name, modelName, modelVariant string, overwrite bool, models *model.Manager) (*Collection, error) {
	root := filepath.Join(homeRoot, name)

	if _, err := os.Stat(root); err == nil {
		if !overwrite {
			return nil, collerr.New(collerr.AlreadyExists, "collection.create", fmt.Sprintf("collection %q already exists", name))
		}
		if err := os.RemoveAll(root); err != nil {
			return nil, collerr.Wrap(collerr.IOError, "collection.create", "remove existing collection", err)
		}
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, collerr.Wrap(collerr.IOError, "collection.create", "create collection directory", err)
	}

	cfg := defaultConfig(name, modelName, modelVariant)

	db, err := rowstore.NewDatabase(ctx, filepath.Join(root, cfg.DBPath))
	if err != nil {
		return nil, err
	}

	if err := writeManifest(root, cfg); err != nil {
		db.Close()
		return nil, err
	}

	return &Collection{
		root:    root,
		config:  cfg,
		db:      db,
		models:  models,
		indexes: make(map[string]*vectorindex.VectorIndex),
	}, nil
}

// Open reads <homeRoot>/<name>/config.json, opens the row store, and loads
// every per-column vector index named in index_columns before returning;
// no index load is deferred to first use.
func Open(ctx context.Context, homeRoot, name string, models *model.Manager) (*Collection, error) {
	root := filepath.Join(homeRoot, name)

	if _, err := os.Stat(root); err != nil {
		return nil, collerr.Wrap(collerr.NotFound, "collection.open", fmt.Sprintf("collection %q not found", name), err)
	}

	cfg, err := readManifest(root)
	if err != nil {
		return nil, err
	}

	db, err := rowstore.NewDatabase(ctx, filepath.Join(root, cfg.DBPath))
	if err != nil {
		return nil, err
	}

	c := &Collection{
		root:    root,
		config:  cfg,
		db:      db,
		models:  models,
		indexes: make(map[string]*vectorindex.VectorIndex),
	}

	for _, col := range cfg.IndexColumns {
		idx, err := vectorindex.Open(c.indexPath(col))
		if err != nil {
			db.Close()
			return nil, err
		}
		c.indexes[col] = idx
	}
	return c, nil
}

func (c *Collection) indexPath(column string) string {
	return filepath.Join(c.root, c.config.IndexDir, column)
}

// Close releases the row-store connection.
func (c *Collection) Close() error {
	return c.db.Close()
}

// Import loads sourcePath into the collection's row store table, assigning
// the synthetic _key column. Importing twice fails with InvalidOperation.
func (c *Collection) Import(ctx context.Context, sourcePath string, format rowstore.Format) error {
	return c.db.Import(ctx, c.config.Name, sourcePath, format)
}

// EmbedColumn runs the full embedding pipeline for column: allocate its
// VectorIndex on first use, stream (text,key) batches through modelID,
// insert vectors, and persist. When rebuild is true, any existing on-disk
// index for column is dropped and recreated first.
func (c *Collection) EmbedColumn(ctx context.Context, column string, batchSize int, modelID uint32, rebuild bool, sink ProgressSink) error {
	if sink == nil {
		sink = NoopProgressSink{}
	}

	idx, isNew, err := c.acquireIndex(column, modelID, rebuild)
	if err != nil {
		return err
	}

	total, err := c.db.RowCount(ctx, c.config.Name)
	if err != nil {
		return err
	}

	start := time.Now()
	var done int
	batches := 0
	if total > 0 {
		batches = int((total + int64(batchSize) - 1) / int64(batchSize))
	}

	for batch := 0; batch < batches; batch++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		offset := batch * batchSize
		rows, err := c.db.ColumnBatch(ctx, c.config.Name, column, offset, batchSize)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			break
		}

		texts := make([]string, len(rows))
		keys := make([]uint64, len(rows))
		for i, r := range rows {
			texts[i] = r.Text
			keys[i] = r.Key
		}

		emb, err := c.models.Predict(ctx, modelID, texts)
		if err != nil {
			return err
		}
		if err := idx.Add(keys, emb.Matrix()); err != nil {
			return err
		}

		done += len(rows)
		elapsed := time.Since(start)
		var eta time.Duration
		if done > 0 && int(total) > done {
			perRow := elapsed / time.Duration(done)
			eta = perRow * time.Duration(int(total)-done)
		}
		sink.Report(done, int(total), eta)
	}

	if err := idx.Save(); err != nil {
		return err
	}

	if isNew {
		c.mu.Lock()
		c.config.IndexColumns = append(c.config.IndexColumns, column)
		cfg := c.config
		c.mu.Unlock()
		if err := writeManifest(c.root, cfg); err != nil {
			return err
		}
	}
	return nil
}

// acquireIndex returns the VectorIndex for column, creating and configuring
// it on first use from modelID's declared output dim/dtype. isNew reports
// whether this call allocated the index.
func (c *Collection) acquireIndex(column string, modelID uint32, rebuild bool) (*vectorindex.VectorIndex, bool, error) {
	c.mu.RLock()
	idx, ok := c.indexes[column]
	c.mu.RUnlock()
	if ok && !rebuild {
		return idx, false, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if idx, ok := c.indexes[column]; ok && !rebuild {
		return idx, false, nil
	}

	dim, err := c.models.OutputDim(modelID)
	if err != nil {
		return nil, false, err
	}
	dtype, err := c.models.OutputDtype(modelID)
	if err != nil {
		return nil, false, err
	}
	kind, err := quantize.ParseKind(dtype.String())
	if err != nil {
		return nil, false, err
	}

	path := c.indexPath(column)
	created, err := vectorindex.Create(path, rebuild)
	if err != nil {
		return nil, false, err
	}
	if err := created.Configure(int(dim), kind, defaultIndexCapacity); err != nil {
		return nil, false, err
	}

	_, existed := c.indexes[column]
	c.indexes[column] = created
	return created, !existed, nil
}

// Search embeds queryText through modelID, runs the ANN search for column,
// and hydrates the matched keys' text content from the row store.
func (c *Collection) Search(ctx context.Context, column, queryText string, k int, modelID uint32) ([]SearchResult, error) {
	c.mu.RLock()
	idx, ok := c.indexes[column]
	c.mu.RUnlock()
	if !ok {
		return nil, collerr.New(collerr.NotFound, "collection.search", fmt.Sprintf("no index for column %q", column))
	}

	emb, err := c.models.Predict(ctx, modelID, []string{queryText})
	if err != nil {
		return nil, err
	}
	matrix := emb.Matrix()
	if len(matrix) == 0 {
		return nil, collerr.New(collerr.Internal, "collection.search", "embedding backend returned no vectors for query")
	}

	hits, err := idx.Search(matrix[0], k)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, nil
	}

	keys := make([]uint64, len(hits))
	for i, h := range hits {
		keys[i] = h.Key
	}
	contents, err := c.db.RowsByKeys(ctx, c.config.Name, column, keys)
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, len(hits))
	for i, h := range hits {
		results[i] = SearchResult{Content: contents[h.Key], Key: h.Key, Score: h.Score}
	}
	return results, nil
}

// RequestedModels returns the model descriptor this collection expects a
// host to preload at open time.
func (c *Collection) RequestedModels() []ModelRef {
	return []ModelRef{{Name: c.config.ModelName, Variant: c.config.ModelVariant}}
}

// Config returns the collection's current manifest.
func (c *Collection) Config() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.config
}

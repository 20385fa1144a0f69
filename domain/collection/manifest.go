package collection

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/collexdb/collex/domain/collerr"
)

const manifestFileName = "config.json"

// Config is the collection manifest persisted to config.json.
type Config struct {
	Name         string   `json:"name"`
	DBPath       string   `json:"db_path"`
	IndexDir     string   `json:"index_dir"`
	IndexColumns []string `json:"index_columns"`
	ModelName    string   `json:"model_name"`
	ModelVariant string   `json:"model_variant"`
}

// defaultConfig fills in the conventional relative paths for a freshly
// created collection, name aside.
func defaultConfig(name, modelName, modelVariant string) Config {
	return Config{
		Name:         name,
		DBPath:       "rows.duckdb",
		IndexDir:     "indexes",
		IndexColumns: nil,
		ModelName:    modelName,
		ModelVariant: modelVariant,
	}
}

func writeManifest(root string, cfg Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return collerr.Wrap(collerr.Internal, "collection.writeManifest", "marshal config", err)
	}

	tmp := filepath.Join(root, manifestFileName+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return collerr.Wrap(collerr.IOError, "collection.writeManifest", "write config.json.tmp", err)
	}
	if err := os.Rename(tmp, filepath.Join(root, manifestFileName)); err != nil {
		return collerr.Wrap(collerr.IOError, "collection.writeManifest", "finalize config.json", err)
	}
	return nil
}

func readManifest(root string) (Config, error) {
	data, err := os.ReadFile(filepath.Join(root, manifestFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, collerr.Wrap(collerr.NotFound, "collection.readManifest", "config.json missing", err)
		}
		return Config{}, collerr.Wrap(collerr.IOError, "collection.readManifest", "read config.json", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, collerr.Wrap(collerr.CorruptState, "collection.readManifest", "parse config.json", err)
	}
	return cfg, nil
}

// Package modelfetch resolves hf:// model references against a remote
// HuggingFace-style repository, downloading weights and required files into
// the local model cache described by the collection manifest contract.
package modelfetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/collexdb/collex/domain/collerr"
)

const schemeHF = "hf://"

const supportedManifestVersion = 1

// Manifest is the metadata.json contract a model repository must publish.
type Manifest struct {
	LetsearchVersion int       `json:"letsearch_version"`
	Variants         []Variant `json:"variants"`
	RequiredFiles    []string  `json:"required_files"`
}

// Variant names one selectable weights file within a model repository.
type Variant struct {
	Variant string `json:"variant"`
	Path    string `json:"path"`
}

// Fetcher downloads hf:// model references into a local cache directory.
type Fetcher struct {
	cacheRoot  string
	httpClient *http.Client
	baseURL    string // override for tests; defaults to huggingface.co
}

// New creates a Fetcher that caches models under cacheRoot
// (<home>/models/<owner>/<repo>/).
func New(cacheRoot string) *Fetcher {
	return &Fetcher{
		cacheRoot:  cacheRoot,
		httpClient: http.DefaultClient,
		baseURL:    "https://huggingface.co",
	}
}

// Resolved is the local result of fetching a model reference.
type Resolved struct {
	Dir         string
	WeightsFile string
}

// Resolve fetches an "hf://owner/repo" modelRef and variant, returning
// the local directory and weights filename. If modelRef does not use the
// hf:// scheme, it is interpreted directly as a local (dir, weightsFile)
// pair and no network access occurs.
func (f *Fetcher) Resolve(ctx context.Context, modelRef, variant, authToken string) (Resolved, error) {
	if !strings.HasPrefix(modelRef, schemeHF) {
		return Resolved{Dir: modelRef, WeightsFile: variant}, nil
	}

	ownerRepo := strings.TrimPrefix(modelRef, schemeHF)
	parts := strings.SplitN(ownerRepo, "/", 2)
	if len(parts) != 2 {
		return Resolved{}, collerr.New(collerr.InvalidOperation, "modelfetch.resolve", fmt.Sprintf("malformed model reference %q, want hf://owner/repo", modelRef))
	}
	owner, repo := parts[0], parts[1]

	dir := filepath.Join(f.cacheRoot, owner, repo)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Resolved{}, collerr.Wrap(collerr.IOError, "modelfetch.resolve", "create model cache directory", err)
	}

	manifest, err := f.fetchManifest(ctx, owner, repo, authToken, dir)
	if err != nil {
		return Resolved{}, err
	}
	if manifest.LetsearchVersion != supportedManifestVersion {
		return Resolved{}, collerr.New(collerr.IncompatibleModel, "modelfetch.resolve",
			fmt.Sprintf("manifest version %d unsupported, want %d", manifest.LetsearchVersion, supportedManifestVersion))
	}

	var weightsFile string
	for _, v := range manifest.Variants {
		if v.Variant == variant {
			weightsFile = v.Path
			break
		}
	}
	if weightsFile == "" {
		return Resolved{}, collerr.New(collerr.IncompatibleModel, "modelfetch.resolve",
			fmt.Sprintf("variant %q not found in manifest for %s/%s", variant, owner, repo))
	}

	if err := f.downloadIfMissing(ctx, owner, repo, weightsFile, dir, authToken); err != nil {
		return Resolved{}, err
	}
	for _, req := range manifest.RequiredFiles {
		if err := f.downloadIfMissing(ctx, owner, repo, req, dir, authToken); err != nil {
			return Resolved{}, err
		}
	}

	return Resolved{Dir: dir, WeightsFile: weightsFile}, nil
}

func (f *Fetcher) fetchManifest(ctx context.Context, owner, repo, authToken, dir string) (Manifest, error) {
	localPath := filepath.Join(dir, "metadata.json")
	if data, err := os.ReadFile(localPath); err == nil {
		var m Manifest
		if err := json.Unmarshal(data, &m); err != nil {
			return Manifest{}, collerr.Wrap(collerr.CorruptState, "modelfetch.fetchManifest", "parse cached metadata.json", err)
		}
		return m, nil
	}

	body, err := f.get(ctx, owner, repo, "metadata.json", authToken)
	if err != nil {
		return Manifest{}, err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return Manifest{}, collerr.Wrap(collerr.IOError, "modelfetch.fetchManifest", "read metadata.json", err)
	}
	if err := os.WriteFile(localPath, data, 0o644); err != nil {
		return Manifest{}, collerr.Wrap(collerr.IOError, "modelfetch.fetchManifest", "cache metadata.json", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, collerr.Wrap(collerr.CorruptState, "modelfetch.fetchManifest", "parse metadata.json", err)
	}
	return m, nil
}

func (f *Fetcher) downloadIfMissing(ctx context.Context, owner, repo, file, dir, authToken string) error {
	dest := filepath.Join(dir, file)
	if _, err := os.Stat(dest); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return collerr.Wrap(collerr.IOError, "modelfetch.download", "create file directory", err)
	}

	body, err := f.get(ctx, owner, repo, file, authToken)
	if err != nil {
		return err
	}
	defer body.Close()

	out, err := os.Create(dest)
	if err != nil {
		return collerr.Wrap(collerr.IOError, "modelfetch.download", "create local file", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, body); err != nil {
		return collerr.Wrap(collerr.IOError, "modelfetch.download", fmt.Sprintf("download %s", file), err)
	}
	return nil
}

func (f *Fetcher) get(ctx context.Context, owner, repo, file, authToken string) (io.ReadCloser, error) {
	url := fmt.Sprintf("%s/%s/%s/resolve/main/%s", f.baseURL, owner, repo, file)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, collerr.Wrap(collerr.IOError, "modelfetch.get", "build request", err)
	}
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, collerr.Wrap(collerr.IOError, "modelfetch.get", fmt.Sprintf("fetch %s", file), err)
	}
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, collerr.New(collerr.NotFound, "modelfetch.get", fmt.Sprintf("%s not found at %s", file, url))
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, collerr.New(collerr.IOError, "modelfetch.get", fmt.Sprintf("unexpected status %d fetching %s", resp.StatusCode, url))
	}
	return resp.Body, nil
}

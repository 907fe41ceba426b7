package collaborators

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/catalystcommunity/app-utils-go/logging"
	"github.com/catalystcommunity/enginectl/internal/environment"
	"github.com/catalystcommunity/enginectl/internal/supervisor"
)

// Downloader acquires model assets, grounded on original_source's
// core/model_downloader.py contract (named, not bodied, in
// api/routes/models.py) and the HuggingFace public search API.
type Downloader struct {
	env    environment.Environment
	client *http.Client
}

// NewDownloader builds a Downloader that scans env.ModelsDir and
// env.ExtraModelDirs for local assets and searches HuggingFace for remote
// ones.
func NewDownloader(env environment.Environment) *Downloader {
	return &Downloader{env: env, client: &http.Client{Timeout: 30 * time.Second}}
}

// Status reports "downloaded" or "missing" for a model id, identified by
// its relative path under ModelsDir.
func (d *Downloader) Status(asset string) string {
	if d.Exists(asset) {
		return "downloaded"
	}
	return "missing"
}

// Exists reports whether the given relative asset path is present under
// ModelsDir.
func (d *Downloader) Exists(asset string) bool {
	_, err := os.Stat(filepath.Join(d.env.ModelsDir, asset))
	return err == nil
}

// DownloadMultiple downloads each asset, reporting per-asset success.
// Individual failures do not abort the batch; they are swallowed into the
// per-id false result, matching the aggregate-result contract (spec §4.3).
func (d *Downloader) DownloadMultiple(assets []string, progress supervisor.ProgressFunc) map[string]bool {
	results := make(map[string]bool, len(assets))
	for i, asset := range assets {
		progress(i, len(assets), fmt.Sprintf("downloading %s...", asset))
		if err := d.downloadOne(asset); err != nil {
			logging.Log.WithError(err).WithField("asset", asset).Warn("model download failed")
			results[asset] = false
			continue
		}
		results[asset] = true
	}
	progress(len(assets), len(assets), "download batch complete")
	return results
}

// huggingFaceResolveURL builds the direct-download URL for a "repo/filename"
// asset reference, mirroring HuggingFace's resolve-by-path convention.
func huggingFaceResolveURL(asset string) string {
	parts := strings.SplitN(asset, "/", 3)
	if len(parts) < 3 {
		return fmt.Sprintf("https://huggingface.co/%s/resolve/main", asset)
	}
	return fmt.Sprintf("https://huggingface.co/%s/%s/resolve/main/%s", parts[0], parts[1], parts[2])
}

// downloadOne streams asset (a "repo/category/filename" reference) from
// HuggingFace into ModelsDir, writing to a .part sibling first so a
// half-finished transfer never shows up as Exists.
func (d *Downloader) downloadOne(asset string) error {
	dest := filepath.Join(d.env.ModelsDir, asset)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}

	resp, err := d.client.Get(huggingFaceResolveURL(asset))
	if err != nil {
		return fmt.Errorf("download request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download returned status %d", resp.StatusCode)
	}

	partPath := dest + ".part"
	out, err := os.Create(partPath)
	if err != nil {
		return fmt.Errorf("creating destination file: %w", err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(partPath)
		return fmt.Errorf("writing download: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(partPath)
		return err
	}
	return os.Rename(partPath, dest)
}

// ScanLocal walks ModelsDir and every ExtraModelDirs entry, grouping files
// by their immediate parent directory name (the "category"/"folder").
func (d *Downloader) ScanLocal() map[string][]string {
	out := make(map[string][]string)
	dirs := append([]string{d.env.ModelsDir}, d.env.ExtraModelDirs...)
	for _, root := range dirs {
		entries, err := os.ReadDir(root)
		if err != nil {
			continue
		}
		for _, categoryEntry := range entries {
			if !categoryEntry.IsDir() {
				continue
			}
			category := categoryEntry.Name()
			files, err := os.ReadDir(filepath.Join(root, category))
			if err != nil {
				continue
			}
			for _, f := range files {
				if !f.IsDir() {
					out[category] = append(out[category], f.Name())
				}
			}
		}
	}
	return out
}

// huggingFaceSearchURL is the public model-search endpoint.
const huggingFaceSearchURL = "https://huggingface.co/api/models"

// Search queries the HuggingFace model search API for query, returning up
// to limit results.
func (d *Downloader) Search(query string, limit int) ([]map[string]interface{}, error) {
	if limit <= 0 {
		limit = 20
	}
	u := fmt.Sprintf("%s?search=%s&limit=%d", huggingFaceSearchURL, url.QueryEscape(query), limit)
	resp, err := d.client.Get(u)
	if err != nil {
		return nil, fmt.Errorf("huggingface search failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("huggingface search returned status %d", resp.StatusCode)
	}

	var results []map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("decoding huggingface response: %w", err)
	}
	return results, nil
}

// Package store is the flat-file persistence layer: one JSON document per
// asset plus a single folders document.
//
//	<root>/
//	  assets/
//	    <asset id>.json
//	  folders.json
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"caprev/internal/model"
	"caprev/internal/review"
)

var validID = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

// AssetDirectory stores each asset as <root>/assets/<id>.json.
// Writes to the same asset are serialized through a per-id lock and land via
// temp file + rename.
type AssetDirectory struct {
	dir   string
	locks *keyedMutex
}

// NewAssetDirectory creates the assets directory under root if needed.
func NewAssetDirectory(root string) (*AssetDirectory, error) {
	dir := filepath.Join(root, "assets")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create assets directory: %w", err)
	}
	return &AssetDirectory{dir: dir, locks: newKeyedMutex()}, nil
}

func (d *AssetDirectory) path(id string) (string, error) {
	if !validID.MatchString(id) {
		return "", &review.NotFoundError{Kind: "asset", ID: id}
	}
	return filepath.Join(d.dir, id+".json"), nil
}

func (d *AssetDirectory) read(id string) (*model.Asset, error) {
	p, err := d.path(id)
	if err != nil {
		return nil, err
	}
	var asset model.Asset
	found, err := readJSON(p, &asset)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, &review.NotFoundError{Kind: "asset", ID: id}
	}
	return &asset, nil
}

// Get returns the asset with id.
func (d *AssetDirectory) Get(ctx context.Context, id string) (*model.Asset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return d.read(id)
}

// List returns every asset sorted by id.
func (d *AssetDirectory) List(ctx context.Context) ([]*model.Asset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, fmt.Errorf("reading assets directory: %w", err)
	}

	var assets []*model.Asset
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".json") {
			continue
		}
		asset, err := d.read(strings.TrimSuffix(name, ".json"))
		if review.IsNotFound(err) {
			// Deleted between ReadDir and read.
			continue
		}
		if err != nil {
			return nil, err
		}
		assets = append(assets, asset)
	}
	sort.Slice(assets, func(i, j int) bool { return assets[i].ID < assets[j].ID })
	return assets, nil
}

// FindByBaseName returns the first asset (by id) in folder scope with the given
// base name, or nil.
func (d *AssetDirectory) FindByBaseName(ctx context.Context, folderID *string, baseName string) (*model.Asset, error) {
	assets, err := d.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, a := range assets {
		if a.BaseName == baseName && a.InFolder(folderID) {
			return a, nil
		}
	}
	return nil, nil
}

// Create stores a new asset.
func (d *AssetDirectory) Create(ctx context.Context, asset *model.Asset) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := d.path(asset.ID)
	if err != nil {
		return fmt.Errorf("invalid asset id %q", asset.ID)
	}

	unlock := d.locks.Lock(asset.ID)
	defer unlock()

	if _, err := os.Stat(p); err == nil {
		return fmt.Errorf("asset already exists: %s", asset.ID)
	}
	return writeJSON(p, asset)
}

// Update applies fn to the stored asset under the asset's lock.
func (d *AssetDirectory) Update(ctx context.Context, id string, fn func(*model.Asset) error) (*model.Asset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := d.path(id)
	if err != nil {
		return nil, err
	}

	unlock := d.locks.Lock(id)
	defer unlock()

	asset, err := d.read(id)
	if err != nil {
		return nil, err
	}
	if err := fn(asset); err != nil {
		return nil, err
	}
	asset.ID = id
	if err := writeJSON(p, asset); err != nil {
		return nil, err
	}
	return asset, nil
}

// Delete removes the asset and returns its last state.
func (d *AssetDirectory) Delete(ctx context.Context, id string) (*model.Asset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := d.path(id)
	if err != nil {
		return nil, err
	}

	unlock := d.locks.Lock(id)
	defer unlock()

	asset, err := d.read(id)
	if err != nil {
		return nil, err
	}
	if err := os.Remove(p); err != nil {
		return nil, fmt.Errorf("removing asset %s: %w", id, err)
	}
	return asset, nil
}

// Compile-time check that AssetDirectory implements review.AssetDirectory.
var _ review.AssetDirectory = (*AssetDirectory)(nil)

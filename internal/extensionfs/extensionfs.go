// Package extensionfs builds a read-only driver over an extension bundle
// directory, per spec.md §6's extension-location mount kind: a bundle
// directory made read-only, whose contents are enumerated from a sidecar
// JSON manifest rather than native directory listing, so a guest can be
// handed the bundle without any network round-trip once the manifest and
// listed files are loaded.
//
// Grounded on spec.md §6's "persisted state" note directly. There is no
// pack library for reading a small sidecar JSON array, nor for reading
// files off the host's native disk — both are genuinely one-shot stdlib
// jobs (encoding/json, os), not a gap a third-party dependency would
// narrow; see DESIGN.md.
package extensionfs

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/tetratelabs/wasi-editor-runtime/internal/device"
	"github.com/tetratelabs/wasi-editor-runtime/internal/memfs"
	"github.com/tetratelabs/wasi-editor-runtime/internal/wasiabi"
)

// manifestSuffix is appended to the bundle directory's path, adjacent to
// it rather than inside it, per spec.md §6.
const manifestSuffix = ".dir.json"

// ManifestPath returns the sidecar manifest path for a bundle directory.
func ManifestPath(bundleDir string) string {
	clean := filepath.Clean(bundleDir)
	return clean + manifestSuffix
}

// Load reads bundleDir's sidecar manifest and builds a read-only memfs
// driver seeded with every file the manifest lists, read once from native
// disk. The manifest is a flat JSON array of paths relative to bundleDir.
func Load(dev *device.Device, bundleDir string) (*memfs.FS, error) {
	manifestBytes, err := os.ReadFile(ManifestPath(bundleDir))
	if err != nil {
		return nil, err
	}
	var paths []string
	if err := json.Unmarshal(manifestBytes, &paths); err != nil {
		return nil, err
	}

	fs := memfs.New(dev, true)
	for _, rel := range paths {
		content, err := os.ReadFile(filepath.Join(bundleDir, rel))
		if err != nil {
			return nil, err
		}
		if errno := fs.WriteFile(rel, content); errno != wasiabi.ErrnoSuccess {
			return nil, &os.PathError{Op: "extensionfs seed", Path: rel, Err: os.ErrInvalid}
		}
	}
	return fs, nil
}

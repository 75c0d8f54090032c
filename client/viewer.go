package client

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/mostafa-ds/pixeldos/rights"
	"github.com/mostafa-ds/pixeldos/stego"
)

// ViewFunc hands the decoded image to the external viewer (spec §1: image
// viewing is deliberately out of scope for this module).
type ViewFunc func(img image.Image) error

// ViewAndDecrement implements spec §4.7's decrement-on-view: extract the
// access-rights counter, hand the image to view, then decrement and persist
// atomically.
func ViewAndDecrement(path string, view ViewFunc) (uint32, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("client: opening %s: %w", path, err)
	}
	img, err := stego.DecodePNG(f)
	f.Close()
	if err != nil {
		return 0, fmt.Errorf("client: decoding %s: %w", path, err)
	}

	if _, err := rights.Extract(img); err != nil {
		return 0, fmt.Errorf("client: %s carries no access-rights token: %w", path, err)
	}

	if view != nil {
		if err := view(img); err != nil {
			return 0, fmt.Errorf("client: viewer failed: %w", err)
		}
	}

	remaining, err := rights.Decrement(img)
	if err != nil {
		return 0, fmt.Errorf("client: decrementing view counter: %w", err)
	}

	encoded, err := stego.EncodePNG(img)
	if err != nil {
		return 0, fmt.Errorf("client: re-encoding %s: %w", path, err)
	}

	if err := atomicWrite(path, encoded); err != nil {
		return 0, err
	}
	return remaining, nil
}

func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("client: creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("client: writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("client: closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("client: renaming temp file into place: %w", err)
	}
	return nil
}

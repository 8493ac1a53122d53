// Package dataset turns image sources into request batches.
package dataset

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"image-check/api/internal/imagecheck"
	"image-check/api/internal/util"
)

type entry struct {
	URL string `json:"url"`
}

// LoadURLs reads a JSON array of {"url": "..."} objects. Each url becomes a
// URL descriptor named after itself; blank urls are skipped.
func LoadURLs(path string) ([]imagecheck.ImageDescriptor, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	var items []entry
	if err := json.Unmarshal(b, &items); err != nil {
		return nil, fmt.Errorf("bad dataset %s: %w", path, err)
	}
	out := make([]imagecheck.ImageDescriptor, 0, len(items))
	for _, it := range items {
		u := strings.TrimSpace(it.URL)
		if u == "" {
			continue
		}
		out = append(out, imagecheck.ImageDescriptor{Name: u, Type: imagecheck.ImageURL, Data: u})
	}
	return out, nil
}

// LoadFiles reads local images and embeds them as base64 descriptors.
func LoadFiles(paths []string) ([]imagecheck.ImageDescriptor, error) {
	out := make([]imagecheck.ImageDescriptor, 0, len(paths))
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read image: %w", err)
		}
		if util.SniffImage(b) == "" {
			return nil, fmt.Errorf("%s: not an image", p)
		}
		out = append(out, imagecheck.ImageDescriptor{
			Name: p,
			Type: imagecheck.ImageBase64,
			Data: base64.StdEncoding.EncodeToString(b),
		})
	}
	return out, nil
}

// Split packs images, in order, into batches that each satisfy the per-call
// limits. A single base64 image larger than the payload limit is an error.
func Split(images []imagecheck.ImageDescriptor) ([][]imagecheck.ImageDescriptor, error) {
	var (
		batches [][]imagecheck.ImageDescriptor
		cur     []imagecheck.ImageDescriptor
		urls    int
		payload int
	)
	flush := func() {
		if len(cur) > 0 {
			batches = append(batches, cur)
		}
		cur, urls, payload = nil, 0, 0
	}
	for _, img := range images {
		switch img.Type {
		case imagecheck.ImageURL:
			if urls+1 > imagecheck.MaxURLImages {
				flush()
			}
			urls++
		case imagecheck.ImageBase64:
			n := len(img.Data)
			if n > imagecheck.MaxBase64Bytes {
				return nil, fmt.Errorf("%s: base64 payload %d bytes exceeds %d", img.Name, n, imagecheck.MaxBase64Bytes)
			}
			if payload+n > imagecheck.MaxBase64Bytes {
				flush()
			}
			payload += n
		default:
			return nil, fmt.Errorf("%s: unknown image type %d", img.Name, img.Type)
		}
		cur = append(cur, img)
	}
	flush()
	return batches, nil
}

package manifest

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/zeebo/blake3"

	"github.com/panbanda/symreach/internal/fileproc"
	"github.com/panbanda/symreach/pkg/symbol"
)

// Loaded is one manifest file after decoding.
type Loaded struct {
	Path  string
	Hash  string
	Files []symbol.File
}

// LoadFile reads, validates and converts a manifest from disk.
func LoadFile(path string) (*Loaded, error) {
	format, err := FormatFor(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	doc, err := Decode(data, format)
	if err != nil {
		return nil, err
	}
	files, err := doc.SymbolFiles()
	if err != nil {
		return nil, err
	}
	return &Loaded{Path: path, Hash: HashBytes(data), Files: files}, nil
}

// LoadOptions tunes LoadFiles.
type LoadOptions struct {
	MaxWorkers int
	OnProgress func()
}

// LoadFiles loads manifests concurrently. Successful manifests are returned in
// input order; failures are reported together as *fileproc.ProcessingErrors
// alongside the manifests that did load.
func LoadFiles(ctx context.Context, paths []string, opts LoadOptions) ([]*Loaded, error) {
	return fileproc.MapFilesCollect(ctx, paths, func(_ context.Context, path string) (*Loaded, error) {
		return LoadFile(path)
	}, opts.MaxWorkers, opts.OnProgress)
}

// Files flattens loaded manifests into graph input records. A later manifest
// describing the same source path replaces the earlier one.
func Files(loaded []*Loaded) []symbol.File {
	index := make(map[string]int)
	var out []symbol.File
	for _, l := range loaded {
		for _, f := range l.Files {
			if i, ok := index[f.Path]; ok {
				out[i] = f
				continue
			}
			index[f.Path] = len(out)
			out = append(out, f)
		}
	}
	return out
}

// Hash returns the hex BLAKE3 digest of a file's contents.
func Hash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := blake3.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashBytes returns the hex BLAKE3 digest of data.
func HashBytes(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

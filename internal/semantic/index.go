package semantic

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/panbanda/symreach/pkg/symbol"
	"github.com/panbanda/symreach/pkg/symgraph"
)

// IndexEntry maps one reference location to the declaration it names.
type IndexEntry struct {
	File          string      `json:"file" yaml:"file"`
	Line          int         `json:"line" yaml:"line"`
	Column        int         `json:"column" yaml:"column"`
	Name          string      `json:"name,omitempty" yaml:"name,omitempty"`
	QualifiedName string      `json:"qualified_name" yaml:"qualified_name"`
	Module        string      `json:"module,omitempty" yaml:"module,omitempty"`
	Kind          symbol.Kind `json:"kind,omitempty" yaml:"kind,omitempty"`
	Internal      bool        `json:"internal,omitempty" yaml:"internal,omitempty"`
}

type indexDocument struct {
	Entries []IndexEntry `json:"entries" yaml:"entries"`
}

type locKey struct {
	file         string
	line, column int
}

// IndexResolver answers queries from a precomputed location index, such as
// one exported from an IDE's index store.
type IndexResolver struct {
	entries map[locKey][]IndexEntry
}

// NewIndexResolver builds a resolver over entries.
func NewIndexResolver(entries []IndexEntry) *IndexResolver {
	r := &IndexResolver{entries: make(map[locKey][]IndexEntry, len(entries))}
	for _, e := range entries {
		k := locKey{e.File, e.Line, e.Column}
		r.entries[k] = append(r.entries[k], e)
	}
	return r
}

// LoadIndex reads a JSON or YAML index file.
func LoadIndex(path string) (*IndexResolver, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read semantic index: %w", err)
	}
	var doc indexDocument
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &doc)
	default:
		err = json.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, fmt.Errorf("decode semantic index %s: %w", path, err)
	}
	return NewIndexResolver(doc.Entries), nil
}

// Len returns the number of indexed locations.
func (r *IndexResolver) Len() int {
	return len(r.entries)
}

// ResolveBatch implements symgraph.SemanticResolver. When several entries
// share a location the one whose name matches the query is used.
func (r *IndexResolver) ResolveBatch(ctx context.Context, file string, queries []symgraph.Query) (map[symgraph.Query]symgraph.Resolution, error) {
	out := make(map[symgraph.Query]symgraph.Resolution)
	for _, q := range queries {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		entries := r.entries[locKey{q.File, q.Line, q.Column}]
		for _, e := range entries {
			if e.Name != "" && q.Name != "" && e.Name != q.Name {
				continue
			}
			out[q] = symgraph.Resolution{
				QualifiedName: e.QualifiedName,
				Module:        e.Module,
				Kind:          e.Kind,
				Internal:      e.Internal,
			}
			break
		}
	}
	return out, nil
}

var _ symgraph.SemanticResolver = (*IndexResolver)(nil)

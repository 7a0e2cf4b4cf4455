// Package manifest decodes the symbol manifests emitted by language front
// ends into symbol.File records for the reference graph.
package manifest

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"

	"github.com/panbanda/symreach/pkg/symbol"
)

// CurrentVersion is the manifest format version written by Encode.
const CurrentVersion = 1

var (
	// ErrUnsupportedFormat is returned for files that are not JSON or YAML.
	ErrUnsupportedFormat = errors.New("unsupported manifest format")
	// ErrInvalidManifest is returned when a document fails schema validation
	// or carries values that cannot be converted.
	ErrInvalidManifest = errors.New("invalid manifest")
)

// Document is the top-level manifest object.
type Document struct {
	Version int         `json:"version,omitempty" yaml:"version,omitempty"`
	Files   []FileEntry `json:"files" yaml:"files"`
}

// FileEntry describes one source file.
type FileEntry struct {
	Path       string           `json:"path" yaml:"path"`
	Module     string           `json:"module,omitempty" yaml:"module,omitempty"`
	Imports    []string         `json:"imports,omitempty" yaml:"imports,omitempty"`
	Symbols    []SymbolEntry    `json:"symbols,omitempty" yaml:"symbols,omitempty"`
	References []ReferenceEntry `json:"references,omitempty" yaml:"references,omitempty"`
}

// SymbolEntry is a declaration. ID may be omitted; Parent names the enclosing
// declaration by qualified name when ParentID is not known to the producer.
type SymbolEntry struct {
	ID            string   `json:"id,omitempty" yaml:"id,omitempty"`
	Name          string   `json:"name" yaml:"name"`
	QualifiedName string   `json:"qualified_name,omitempty" yaml:"qualified_name,omitempty"`
	Kind          string   `json:"kind" yaml:"kind"`
	Accessibility string   `json:"accessibility,omitempty" yaml:"accessibility,omitempty"`
	Line          int      `json:"line" yaml:"line"`
	Column        int      `json:"column,omitempty" yaml:"column,omitempty"`
	Parent        string   `json:"parent,omitempty" yaml:"parent,omitempty"`
	ParentID      string   `json:"parent_id,omitempty" yaml:"parent_id,omitempty"`
	Attributes    []string `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

// ReferenceEntry is a use site.
type ReferenceEntry struct {
	Name     string `json:"name" yaml:"name"`
	Kind     string `json:"kind,omitempty" yaml:"kind,omitempty"`
	Line     int    `json:"line" yaml:"line"`
	Column   int    `json:"column,omitempty" yaml:"column,omitempty"`
	Scope    string `json:"scope,omitempty" yaml:"scope,omitempty"`
	BaseType string `json:"base_type,omitempty" yaml:"base_type,omitempty"`
}

//go:embed schema.json
var schemaJSON []byte

const schemaURL = "https://symreach.dev/schema/manifest.json"

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("parse manifest schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaURL, doc); err != nil {
		return nil, fmt.Errorf("add manifest schema: %w", err)
	}
	return c.Compile(schemaURL)
})

// Schema returns the JSON Schema that manifests are validated against.
func Schema() []byte {
	return bytes.Clone(schemaJSON)
}

// Format is a manifest encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFor infers the encoding from a file name.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
}

// Decode validates and decodes a manifest.
func Decode(data []byte, format Format) (*Document, error) {
	// YAML is normalised to JSON so both encodings go through the same schema.
	if format == FormatYAML {
		var raw any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
		}
		js, err := json.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
		}
		data = js
	} else if format != FormatJSON {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	if err := Validate(data); err != nil {
		return nil, err
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	return &doc, nil
}

// Validate checks a JSON document against the embedded manifest schema.
func Validate(data []byte) error {
	sch, err := compiledSchema()
	if err != nil {
		return err
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	if err := sch.Validate(inst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	return nil
}

// Encode writes a document in the given format.
func Encode(doc *Document, format Format) ([]byte, error) {
	if doc.Version == 0 {
		doc.Version = CurrentVersion
	}
	switch format {
	case FormatJSON:
		return json.MarshalIndent(doc, "", "  ")
	case FormatYAML:
		return yaml.Marshal(doc)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
}

// SymbolFiles converts every file entry.
func (d *Document) SymbolFiles() ([]symbol.File, error) {
	files := make([]symbol.File, 0, len(d.Files))
	for i := range d.Files {
		f, err := d.Files[i].SymbolFile()
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}

// SymbolFile converts the entry into the graph's input record. Missing ids
// are derived from module, qualified name, kind and location.
func (e *FileEntry) SymbolFile() (symbol.File, error) {
	f := symbol.File{
		Path:       e.Path,
		Module:     e.Module,
		Imports:    append([]string(nil), e.Imports...),
		Symbols:    make([]symbol.Symbol, 0, len(e.Symbols)),
		References: make([]symbol.Reference, 0, len(e.References)),
	}

	byQName := make(map[string]symbol.ID, len(e.Symbols))
	for i, se := range e.Symbols {
		kind, err := symbol.ParseKind(se.Kind)
		if err != nil {
			return symbol.File{}, fmt.Errorf("%w: %s: symbol %d: %v", ErrInvalidManifest, e.Path, i, err)
		}
		access, err := symbol.ParseAccessibility(se.Accessibility)
		if err != nil {
			return symbol.File{}, fmt.Errorf("%w: %s: symbol %d: %v", ErrInvalidManifest, e.Path, i, err)
		}
		qname := se.QualifiedName
		if qname == "" {
			qname = se.Name
		}
		loc := symbol.Location{File: e.Path, Line: se.Line, Column: se.Column}
		id := symbol.ID(se.ID)
		if id == "" {
			id = symbol.NewID(e.Module, qname, kind, loc)
		}
		// First declaration wins for parent lookups by qualified name.
		if _, ok := byQName[qname]; !ok {
			byQName[qname] = id
		}
		f.Symbols = append(f.Symbols, symbol.Symbol{
			ID:            id,
			Name:          se.Name,
			QualifiedName: qname,
			Kind:          kind,
			Accessibility: access,
			Location:      loc,
			ParentID:      symbol.ID(se.ParentID),
			Module:        e.Module,
			Attributes:    append([]string(nil), se.Attributes...),
		})
	}

	for i, se := range e.Symbols {
		if se.ParentID != "" || se.Parent == "" {
			continue
		}
		pid, ok := byQName[se.Parent]
		if !ok {
			return symbol.File{}, fmt.Errorf("%w: %s: symbol %q: unknown parent %q", ErrInvalidManifest, e.Path, se.Name, se.Parent)
		}
		f.Symbols[i].ParentID = pid
	}

	for i, re := range e.References {
		kind, err := symbol.ParseRefKind(re.Kind)
		if err != nil {
			return symbol.File{}, fmt.Errorf("%w: %s: reference %d: %v", ErrInvalidManifest, e.Path, i, err)
		}
		f.References = append(f.References, symbol.Reference{
			Name:             re.Name,
			Kind:             kind,
			Location:         symbol.Location{File: e.Path, Line: re.Line, Column: re.Column},
			ScopeContext:     re.Scope,
			InferredBaseType: re.BaseType,
		})
	}
	return f, nil
}

// FromSymbolFile builds a manifest entry from a graph input record, the
// inverse of SymbolFile. Parents are written by id.
func FromSymbolFile(f *symbol.File) FileEntry {
	e := FileEntry{
		Path:    f.Path,
		Module:  f.Module,
		Imports: append([]string(nil), f.Imports...),
	}
	for _, s := range f.Symbols {
		e.Symbols = append(e.Symbols, SymbolEntry{
			ID:            string(s.ID),
			Name:          s.Name,
			QualifiedName: s.QualifiedName,
			Kind:          string(s.Kind),
			Accessibility: s.Accessibility.String(),
			Line:          s.Location.Line,
			Column:        s.Location.Column,
			ParentID:      string(s.ParentID),
			Attributes:    append([]string(nil), s.Attributes...),
		})
	}
	for _, r := range f.References {
		e.References = append(e.References, ReferenceEntry{
			Name:     r.Name,
			Kind:     string(r.Kind),
			Line:     r.Location.Line,
			Column:   r.Location.Column,
			Scope:    r.ScopeContext,
			BaseType: r.InferredBaseType,
		})
	}
	return e
}

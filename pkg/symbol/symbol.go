// Package symbol defines the value types shared by the reference graph and
// the reachability engine: declarations, references between them and the
// per-file records delivered by a language front end.
package symbol

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// ID uniquely identifies a declaration within one analysis session.
type ID string

// NewID derives a stable identifier from a declaration's module, qualified
// name, kind and location. Overloads sharing a qualified name differ by location.
func NewID(module, qualifiedName string, kind Kind, loc Location) ID {
	h := xxhash.New()
	_, _ = h.WriteString(loc.File)
	_, _ = h.WriteString(":")
	_, _ = h.WriteString(strconv.Itoa(loc.Line))
	_, _ = h.WriteString(":")
	_, _ = h.WriteString(strconv.Itoa(loc.Column))
	if module == "" {
		module = "_"
	}
	return ID(fmt.Sprintf("%s:%s#%s@%016x", module, qualifiedName, kind, h.Sum64()))
}

// Kind is the category of a declaration.
type Kind string

const (
	KindClass          Kind = "class"
	KindStruct         Kind = "struct"
	KindEnum           Kind = "enum"
	KindProtocol       Kind = "protocol"
	KindActor          Kind = "actor"
	KindTypeAlias      Kind = "typealias"
	KindAssociatedType Kind = "associatedtype"
	KindExtension      Kind = "extension"
	KindFunction       Kind = "function"
	KindVariable       Kind = "variable"
	KindEnumCase       Kind = "case"
	KindInitializer    Kind = "initializer"
	KindDeinitializer  Kind = "deinitializer"
)

// AllKinds lists every declaration kind in declaration order.
var AllKinds = []Kind{
	KindClass, KindStruct, KindEnum, KindProtocol, KindActor,
	KindTypeAlias, KindAssociatedType, KindExtension, KindFunction,
	KindVariable, KindEnumCase, KindInitializer, KindDeinitializer,
}

var kindAliases = map[string]Kind{
	"func":     KindFunction,
	"method":   KindFunction,
	"var":      KindVariable,
	"let":      KindVariable,
	"property": KindVariable,
	"enumcase": KindEnumCase,
	"init":     KindInitializer,
	"deinit":   KindDeinitializer,
	"alias":    KindTypeAlias,
}

// ParseKind converts a front-end kind name into a Kind.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if slices.Contains(AllKinds, Kind(s)) {
		return Kind(s), nil
	}
	if k, ok := kindAliases[s]; ok {
		return k, nil
	}
	return "", fmt.Errorf("unknown symbol kind %q", s)
}

// IsType reports whether declarations of this kind introduce a nominal type.
func (k Kind) IsType() bool {
	switch k {
	case KindClass, KindStruct, KindEnum, KindProtocol, KindActor:
		return true
	}
	return false
}

// IsMember reports whether the kind can satisfy a protocol requirement.
func (k Kind) IsMember() bool {
	switch k {
	case KindFunction, KindVariable, KindInitializer, KindEnumCase:
		return true
	}
	return false
}

// Accessibility is the declared visibility of a symbol, ordered from most to
// least restrictive.
type Accessibility int

const (
	Private Accessibility = iota
	FilePrivate
	Internal
	Package
	Public
	Open
)

var accessibilityNames = [...]string{"private", "fileprivate", "internal", "package", "public", "open"}

// String implements fmt.Stringer.
func (a Accessibility) String() string {
	if a < Private || a > Open {
		return "unknown"
	}
	return accessibilityNames[a]
}

// ParseAccessibility converts an access-level keyword. An empty string yields
// Internal, the language default.
func ParseAccessibility(s string) (Accessibility, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Internal, nil
	}
	for i, name := range accessibilityNames {
		if name == s {
			return Accessibility(i), nil
		}
	}
	return Internal, fmt.Errorf("unknown accessibility %q", s)
}

// MarshalText encodes the access level as its keyword.
func (a Accessibility) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText decodes an access-level keyword.
func (a *Accessibility) UnmarshalText(b []byte) error {
	v, err := ParseAccessibility(string(b))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// Location is a 1-based position in a source file.
type Location struct {
	File   string `json:"file" toon:"file"`
	Line   int    `json:"line" toon:"line"`
	Column int    `json:"column" toon:"column"`
}

// String formats the location as file:line:column.
func (l Location) String() string {
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// Before orders locations by file, then line, then column.
func (l Location) Before(o Location) bool {
	if l.File != o.File {
		return l.File < o.File
	}
	if l.Line != o.Line {
		return l.Line < o.Line
	}
	return l.Column < o.Column
}

// Symbol is a declaration known to the graph.
type Symbol struct {
	ID            ID            `json:"id" toon:"id"`
	Name          string        `json:"name" toon:"name"`
	QualifiedName string        `json:"qualified_name" toon:"qualified_name"`
	Kind          Kind          `json:"kind" toon:"kind"`
	Accessibility Accessibility `json:"accessibility" toon:"accessibility"`
	Location      Location      `json:"location" toon:"location"`
	ParentID      ID            `json:"parent_id,omitempty" toon:"parent_id,omitempty"`
	Module        string        `json:"module,omitempty" toon:"module,omitempty"`
	Attributes    []string      `json:"attributes,omitempty" toon:"attributes,omitempty"`
}

// HasAttribute reports whether the symbol carries the attribute. A leading
// "@" is ignored on both sides.
func (s *Symbol) HasAttribute(name string) bool {
	name = strings.TrimPrefix(name, "@")
	for _, a := range s.Attributes {
		if strings.TrimPrefix(a, "@") == name {
			return true
		}
	}
	return false
}

// Scope returns the qualified name of the enclosing declaration, or "" for a
// top-level symbol.
func (s *Symbol) Scope() string {
	if i := strings.LastIndexByte(s.QualifiedName, '.'); i >= 0 {
		return s.QualifiedName[:i]
	}
	return ""
}

// Edge is a directed "source uses target" relation.
type Edge struct {
	Source ID `json:"source" toon:"source"`
	Target ID `json:"target" toon:"target"`
}

// File is one parsed source file as produced by the front end.
type File struct {
	Path       string      `json:"path"`
	Module     string      `json:"module,omitempty"`
	Imports    []string    `json:"imports,omitempty"`
	Symbols    []Symbol    `json:"symbols"`
	References []Reference `json:"references"`
}

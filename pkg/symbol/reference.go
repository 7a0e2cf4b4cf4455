package symbol

import (
	"fmt"
	"strings"
)

// RefKind describes how a symbol is used at a reference site.
type RefKind string

const (
	RefFunctionCall    RefKind = "call"
	RefInitializer     RefKind = "initializer"
	RefPropertyAccess  RefKind = "property"
	RefTypeReference   RefKind = "type"
	RefInheritance     RefKind = "inheritance"
	RefConformance     RefKind = "conformance"
	RefExtensionTarget RefKind = "extension"
	RefGenericArgument RefKind = "generic"
	RefEnumCase        RefKind = "case"
	RefIdentifier      RefKind = "identifier"
)

var refKindAliases = map[string]RefKind{
	"call":             RefFunctionCall,
	"function_call":    RefFunctionCall,
	"function-call":    RefFunctionCall,
	"initializer":      RefInitializer,
	"init":             RefInitializer,
	"property":         RefPropertyAccess,
	"property_access":  RefPropertyAccess,
	"property-access":  RefPropertyAccess,
	"type":             RefTypeReference,
	"type_reference":   RefTypeReference,
	"type-reference":   RefTypeReference,
	"inheritance":      RefInheritance,
	"conformance":      RefConformance,
	"extension":        RefExtensionTarget,
	"extension_target": RefExtensionTarget,
	"extension-target": RefExtensionTarget,
	"generic":          RefGenericArgument,
	"generic_argument": RefGenericArgument,
	"generic-argument": RefGenericArgument,
	"case":             RefEnumCase,
	"enum_case":        RefEnumCase,
	"enum-case":        RefEnumCase,
	"identifier":       RefIdentifier,
	"":                 RefIdentifier,
}

// ParseRefKind converts a front-end reference kind name.
func ParseRefKind(s string) (RefKind, error) {
	if k, ok := refKindAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return k, nil
	}
	return "", fmt.Errorf("unknown reference kind %q", s)
}

// Compatible reports whether a reference of this kind may bind to a symbol of
// the given kind. Identifier references are compatible with everything.
func (k RefKind) Compatible(target Kind) bool {
	switch k {
	case RefFunctionCall:
		return target == KindFunction || target == KindInitializer
	case RefInitializer:
		return target == KindInitializer || target == KindTypeAlias || (target.IsType() && target != KindProtocol)
	case RefPropertyAccess:
		return target == KindVariable || target == KindEnumCase || target == KindFunction
	case RefTypeReference, RefGenericArgument, RefExtensionTarget:
		return target.IsType() || target == KindTypeAlias
	case RefInheritance:
		return target == KindClass || target == KindProtocol
	case RefConformance:
		return target == KindProtocol
	case RefEnumCase:
		return target == KindEnumCase
	default:
		return true
	}
}

// Reference is a use of a name at a location, as seen by the front end.
type Reference struct {
	Name             string   `json:"name" toon:"name"`
	Kind             RefKind  `json:"kind" toon:"kind"`
	Location         Location `json:"location" toon:"location"`
	ScopeContext     string   `json:"scope,omitempty" toon:"scope,omitempty"`
	InferredBaseType string   `json:"base_type,omitempty" toon:"base_type,omitempty"`
}

package deadcode

import "slices"

// Policy configures entry-point detection and ignore rules.
type Policy struct {
	Mode               Mode
	TreatPublicAsEntry bool
	TreatOpenAsEntry   bool

	// EntryAttributes mark a declaration as an entry point ("main", "objc").
	EntryAttributes []string
	// EntryFilePatterns are globs; every symbol of a matching file is an
	// entry point. Patterns are matched against the path and its base name.
	EntryFilePatterns []string

	// IgnorePatterns are globs over qualified names.
	IgnorePatterns []string
	// IgnorePrefixes exclude symbols whose name starts with a prefix.
	IgnorePrefixes []string
	// IgnoredMethodNames exclude functions by name and treat them as live,
	// for callbacks invoked by frameworks.
	IgnoredMethodNames []string

	// SynthesizingProtocols are protocols whose conformance makes the
	// compiler synthesize or call members implicitly.
	SynthesizingProtocols []string
	// SynthesizedMembers adds protocol to member-name rules on top of the
	// built-in ones.
	SynthesizedMembers map[string][]string
}

// DefaultEntryAttributes are attributes that expose a declaration to the
// runtime or mark program entry.
var DefaultEntryAttributes = []string{
	"main",
	"UIApplicationMain",
	"NSApplicationMain",
	"objc",
	"IBAction",
	"IBOutlet",
	"IBSegueAction",
	"NSManaged",
}

// DefaultIgnoredMethodNames are framework callbacks that are never called
// from user code.
var DefaultIgnoredMethodNames = []string{
	"viewDidLoad",
	"viewWillAppear",
	"viewDidAppear",
	"viewWillDisappear",
	"viewDidDisappear",
	"awakeFromNib",
	"prepareForReuse",
	"layoutSubviews",
	"applicationDidFinishLaunching",
	"setUp",
	"tearDown",
	"body",
	"previews",
}

// DefaultSynthesizingProtocols lists protocols with built-in member rules.
var DefaultSynthesizingProtocols = []string{
	"Codable",
	"Encodable",
	"Decodable",
	"Equatable",
	"Hashable",
	"CaseIterable",
	"RawRepresentable",
}

// PolicyForMode returns the default policy for a mode.
func PolicyForMode(mode Mode) Policy {
	p := Policy{
		Mode:                  mode,
		EntryAttributes:       slices.Clone(DefaultEntryAttributes),
		EntryFilePatterns:     []string{"main.swift"},
		IgnoredMethodNames:    slices.Clone(DefaultIgnoredMethodNames),
		SynthesizingProtocols: slices.Clone(DefaultSynthesizingProtocols),
	}
	if mode != ModeExecutable {
		p.TreatPublicAsEntry = true
		p.TreatOpenAsEntry = true
	}
	return p
}

// DefaultPolicy returns the hybrid-mode policy.
func DefaultPolicy() Policy {
	return PolicyForMode(ModeHybrid)
}

// synthRule lists members a conformance keeps alive.
type synthRule struct {
	members []string
	stored  bool
	cases   bool
	nested  []string
}

func (r synthRule) merge(o synthRule) synthRule {
	return synthRule{
		members: append(slices.Clone(r.members), o.members...),
		stored:  r.stored || o.stored,
		cases:   r.cases || o.cases,
		nested:  append(slices.Clone(r.nested), o.nested...),
	}
}

var codingRule = synthRule{
	members: []string{"encode", "init"},
	stored:  true,
	nested:  []string{"CodingKeys"},
}

var builtinSynthRules = map[string]synthRule{
	"Codable":          codingRule,
	"Encodable":        codingRule,
	"Decodable":        codingRule,
	"Equatable":        {members: []string{"=="}},
	"Hashable":         {members: []string{"hash", "hashValue", "=="}},
	"CaseIterable":     {members: []string{"allCases"}, cases: true},
	"RawRepresentable": {members: []string{"rawValue", "init"}},
}

// synthRules returns the active rules keyed by protocol name.
func (p Policy) synthRules() map[string]synthRule {
	rules := make(map[string]synthRule)
	for _, name := range p.SynthesizingProtocols {
		rules[name] = builtinSynthRules[name]
	}
	for name, members := range p.SynthesizedMembers {
		rules[name] = rules[name].merge(synthRule{members: members})
	}
	return rules
}

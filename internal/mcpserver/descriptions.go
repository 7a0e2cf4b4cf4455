package mcpserver

// Tool descriptions carry interpretation guidance for the calling model.

func describeFindDeadCode() string {
	return `Finds declarations that no entry point can reach, using symbol manifests produced by a front end.

USE WHEN:
- Cleaning up a module before a refactor or release
- Checking whether a type or member is still used anywhere
- Finding unused protocol conformances and orphaned helpers

INTERPRETING RESULTS:
- Confidence follows visibility: High (private, fileprivate), Medium (internal, package), Low (public, open)
- High confidence symbols cannot be used from outside their file and are safe to investigate for removal
- Low confidence symbols may be used by clients outside the analyzed manifests
- Mode "library" treats public API as entry points; "executable" only honors explicit markers and main files
- dead_cycles lists groups of dead symbols that only reference each other

METRICS RETURNED:
- dead: symbols with location, kind, accessibility and confidence
- summary: totals for symbols, entry points, live, dead and ignored
- semantic: how many references the semantic resolver answered
- failed: manifests that could not be loaded

Note: Reflection, string-based selectors and dynamic member lookup can cause false positives.`
}

func describeExplainSymbol() string {
	return `Explains why one symbol is live, dead or ignored, listing who references it and what it references.

USE WHEN:
- Verifying a dead code finding before deleting a declaration
- Tracing which entry point keeps a symbol alive
- Understanding protocol conformance and extension links

INTERPRETING RESULTS:
- status is one of entry, live, dead or ignored
- referenced_by lists incoming edges; an empty list on a dead symbol means nothing uses it
- references lists outgoing edges with each neighbor's status
- The query may be a symbol id, a qualified name (Type.member) or a simple name; every match is explained

METRICS RETURNED:
- symbol: kind, accessibility, location and attributes
- referenced_by, references, children: neighbor symbols with status
- conforms_to: protocols the type conforms to`
}

func describeUnresolvedReferences() string {
	return `Lists references that could not be bound to any declaration after name resolution and semantic enhancement.

USE WHEN:
- Checking how complete the analyzed manifests are
- Diagnosing surprising dead code results
- Deciding whether to enable a semantic resolver

INTERPRETING RESULTS:
- References to external frameworks are expected to stay unresolved
- Many unresolved references to in-project names suggest missing manifests
- semantic.mode shows whether the resolver ran (off, hybrid or full)

METRICS RETURNED:
- unresolved: name, kind, location and scope of each reference
- graph: symbol, edge, file and reference counts`
}

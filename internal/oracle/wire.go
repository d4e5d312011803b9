package oracle

import "mira/internal/storage"

const maxSymbolsPerConcept = 5
const maxCochangeSuggestions = 5

// Wire constructs an Oracle with every source in allSources registered
// against the given pools (spec §4.4).
func Wire(mainPool, codePool *storage.Pool) *Oracle {
	o := New()
	o.Register("guidelines", guidelines(mainPool))
	o.Register("code_context", codeContext(codePool))
	o.Register("semantic_concepts", semanticConcepts(codePool, maxSymbolsPerConcept))
	o.Register("call_graph", callGraph(codePool))
	o.Register("cochange_suggestions", cochangeSuggestions(codePool, maxCochangeSuggestions))
	o.Register("historical_fixes", historicalFixes(mainPool))
	o.Register("design_patterns", designPatterns(mainPool))
	o.Register("reasoning_patterns", reasoningPatterns(mainPool))
	o.Register("build_errors", buildErrors(mainPool))
	o.Register("error_resolutions", errorResolutions(mainPool))
	o.Register("expertise", expertise(mainPool))
	return o
}

// Package oracle implements the Context Oracle (spec §4.4): a fan-out
// aggregator over ~11 independent sub-gatherers, assembled into one bounded
// GatheredContext. Grounded on the teacher's internal/agent.Engine concurrent
// dispatch shape, generalized from tool-call dispatch to source gathering and
// using golang.org/x/sync/errgroup instead of a raw WaitGroup. Gather has no
// error result: a failing or canceled sub-gatherer only yields an empty source.
package oracle

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"mira/internal/llm"
	"mira/internal/obslog"
)

// Preset names the three enumerated ContextConfig presets (spec §4.4).
type Preset string

const (
	PresetMinimal  Preset = "minimal"
	PresetFull     Preset = "full"
	PresetForError Preset = "for_error"
)

// Config controls which sources run and the token budget (spec §4.4's table).
type Config struct {
	Sources     map[string]bool
	TokenBudget int
}

var allSources = []string{
	"guidelines", "code_context", "semantic_concepts", "call_graph",
	"cochange_suggestions", "historical_fixes", "design_patterns",
	"reasoning_patterns", "build_errors", "error_resolutions", "expertise",
}

// ConfigFor resolves a preset into a concrete Config, matching the exact
// source sets and budgets from spec §4.4's table.
func ConfigFor(preset Preset) Config {
	switch preset {
	case PresetFull:
		c := Config{Sources: map[string]bool{}, TokenBudget: 16000}
		for _, s := range allSources {
			c.Sources[s] = true
		}
		return c
	case PresetForError:
		return Config{
			Sources: map[string]bool{
				"code_context": true, "historical_fixes": true,
				"build_errors": true, "error_resolutions": true,
			},
			TokenBudget: 4000,
		}
	default: // minimal
		return Config{Sources: map[string]bool{"code_context": true}, TokenBudget: 4000}
	}
}

// Request is the Gather() argument bundle (spec §4.4).
type Request struct {
	Query        string
	SessionID    string
	ProjectID    string
	CurrentFile  string
	ErrorMessage string
	ErrorCode    string
	Config       Config
}

// SourceResult is one sub-gatherer's contribution.
type SourceResult struct {
	Name    string
	Content string // pre-formatted text block for format_for_prompt
	Data    any    // structured payload, source-specific
}

// GatheredContext is the Oracle's output (spec §4.4).
type GatheredContext struct {
	Sources         []SourceResult
	SourcesUsed     []string
	EstimatedTokens int
	DurationMs      int64
}

// FormatForPrompt concatenates every source's content block, the basis for
// the estimated_tokens = len(...)/4 computation.
func (g GatheredContext) FormatForPrompt() string {
	var out string
	for _, s := range g.Sources {
		if s.Content == "" {
			continue
		}
		out += s.Content + "\n\n"
	}
	return out
}

// namedGatherer is a plain function value closed over the store it needs
// (spec §9's "optional service holders" note, generalized away from dynamic
// reflection): a missing store is checked inside the function itself and
// short-circuits to an empty SourceResult rather than the Oracle inspecting
// attached capabilities.
type namedGatherer struct {
	name string
	run  func(ctx context.Context, req Request) (SourceResult, error)
}

// Oracle holds the registered sub-gatherers and fans a Gather request out
// across whichever ones the request's Config enables.
type Oracle struct {
	gatherers []namedGatherer
}

func New() *Oracle {
	return &Oracle{}
}

// Register attaches a sub-gatherer under name; call sites wire one per
// source in allSources, closing over whatever store/pool it needs.
func (o *Oracle) Register(name string, run func(ctx context.Context, req Request) (SourceResult, error)) {
	o.gatherers = append(o.gatherers, namedGatherer{name: name, run: run})
}

// Gather fans out concurrently over every enabled, registered source. A
// sub-gatherer's own error is captured and logged, never propagated — every
// group goroutine returns nil, so the errgroup never reports an error.
func (o *Oracle) Gather(ctx context.Context, req Request) GatheredContext {
	start := time.Now()
	ctx, span := obslog.StartSpan(ctx, "oracle.gather")
	defer span()

	g, gctx := errgroup.WithContext(ctx)
	results := make([]SourceResult, len(o.gatherers))
	enabled := make([]bool, len(o.gatherers))

	for i, ng := range o.gatherers {
		if !req.Config.Sources[ng.name] {
			continue
		}
		enabled[i] = true
		i, ng := i, ng
		g.Go(func() error {
			res, err := ng.run(gctx, req)
			if err != nil {
				obslog.FromContext(gctx).Warn().Err(err).Str("source", ng.name).Msg("oracle_source_failed")
				results[i] = SourceResult{Name: ng.name}
				return nil
			}
			res.Name = ng.name
			results[i] = res
			return nil
		})
	}
	_ = g.Wait() // always nil: every goroutine above returns nil

	out := GatheredContext{}
	for i, ok := range enabled {
		if !ok {
			continue
		}
		out.Sources = append(out.Sources, results[i])
		if results[i].Content != "" {
			out.SourcesUsed = append(out.SourcesUsed, results[i].Name)
		}
	}
	out.EstimatedTokens = llm.EstimateTokens(out.FormatForPrompt())
	out.DurationMs = time.Since(start).Milliseconds()
	return out
}

// Package carousel implements the context-category ring (spec §4.7): a
// state machine rotating through categories of context to surface, with a
// starvation rescue, semantic/keyword triggers, anchor items, and a
// decision log. Grounded on the teacher's internal/agent.Engine turn-driven
// state shape, generalized from a single linear loop to a ring with modes.
package carousel

import "strings"

// Category names the ring's fixed set (spec §4.7).
type Category string

const (
	CategoryGoals     Category = "goals"
	CategoryDecisions Category = "decisions"
	CategoryMemories  Category = "memories"
	CategoryGit       Category = "git"
	CategoryCode      Category = "code"
	CategorySystem    Category = "system"
	CategoryErrors    Category = "errors"
	CategoryPatterns  Category = "patterns"
)

var ring = []Category{
	CategoryGoals, CategoryDecisions, CategoryMemories, CategoryGit,
	CategoryCode, CategorySystem, CategoryErrors, CategoryPatterns,
}

const defaultRotationInterval = 4
const defaultStarvationBudget = 3 * defaultRotationInterval // 12
const tightStarvationBudget = 2 * defaultRotationInterval   // 8

// Config holds the carousel's rotation and starvation parameters. The
// starvation-rescue thresholds are an explicitly resolved Open Question
// (spec §9): treated as configuration rather than hard-coded law, defaulting
// to 3x the rotation interval except for errors/system, which carry
// time-sensitive information and get 2x.
type Config struct {
	RotationInterval int
	StarvationBudget map[Category]int
	DefaultStarvation int
}

func DefaultConfig() Config {
	return Config{
		RotationInterval: defaultRotationInterval,
		StarvationBudget: map[Category]int{
			CategoryErrors: tightStarvationBudget,
			CategorySystem: tightStarvationBudget,
		},
		DefaultStarvation: defaultStarvationBudget,
	}
}

func (cfg Config) budgetFor(cat Category) int {
	if b, ok := cfg.StarvationBudget[cat]; ok {
		return b
	}
	if cfg.DefaultStarvation > 0 {
		return cfg.DefaultStarvation
	}
	return defaultStarvationBudget
}

// Mode is the carousel's state machine mode.
type Mode int

const (
	ModeCruising Mode = iota
	ModeFocus
	ModePanic
)

var panicSet = []Category{CategoryErrors, CategoryCode}

// Trigger is one semantic or keyword interrupt observed this tick.
type Trigger struct {
	Kind   string // "file_edit" | "build_failure" | "error_resolved" | "semantic_match" | "keyword"
	Detail string
	Category Category
	Confidence float64
}

// Anchor is an ad-hoc pinned string with a turn-counted TTL.
type Anchor struct {
	Text string
	TTL  int
}

// Decision is one rotation outcome, recorded for observability (spec §4.7).
type Decision struct {
	Mode             Mode
	Category         Category
	Reason           string
	Triggers         []string
	StarvationRescue bool
}

const decisionLogCap = 50

// Carousel holds the ring's live state.
type Carousel struct {
	cfg         Config
	mode        Mode
	focusCat    Category
	current     int // index into ring
	sinceRotate int
	lastSeen    map[Category]int // ticks since each category was last shown
	anchors     []Anchor
	log         []Decision
	tick        int
}

func New(cfg Config) *Carousel {
	c := &Carousel{cfg: cfg, lastSeen: make(map[Category]int, len(ring))}
	for _, cat := range ring {
		c.lastSeen[cat] = 0
	}
	return c
}

// PinAnchor adds an ad-hoc pinned string surfaced alongside the active
// category for ttl turns.
func (c *Carousel) PinAnchor(text string, ttl int) {
	c.anchors = append(c.anchors, Anchor{Text: text, TTL: ttl})
}

// Unpin removes the first live anchor matching text, if any.
func (c *Carousel) Unpin(text string) bool {
	for i, a := range c.anchors {
		if a.Text == text {
			c.anchors = append(c.anchors[:i], c.anchors[i+1:]...)
			return true
		}
	}
	return false
}

// TickWithContext advances the ring one tool call, applying triggers in the
// documented order (external before keyword), then returns the resulting
// decision and the categories to render this turn (spec §4.7).
func (c *Carousel) TickWithContext(triggers []Trigger, query string) (Decision, []Category) {
	c.tick++
	c.decrementAnchors()
	for cat := range c.lastSeen {
		c.lastSeen[cat]++
	}

	decision := c.applyExternalTriggers(triggers)
	if decision == nil {
		decision = c.applyKeywordTriggers(query)
	}
	if decision == nil {
		decision = c.rotate()
	}

	c.lastSeen[decision.Category] = 0
	c.record(*decision)
	return *decision, c.render(decision.Category)
}

func (c *Carousel) applyExternalTriggers(triggers []Trigger) *Decision {
	for _, t := range triggers {
		switch t.Kind {
		case "build_failure":
			c.mode = ModePanic
			return &Decision{Mode: ModePanic, Category: CategoryErrors, Reason: "build_failure", Triggers: []string{t.Kind}}
		case "error_resolved":
			if c.mode == ModePanic {
				c.mode = ModeCruising
			}
		case "file_edit":
			c.mode = ModeFocus
			c.focusCat = CategoryCode
			return &Decision{Mode: ModeFocus, Category: CategoryCode, Reason: "file_edit", Triggers: []string{t.Kind}}
		case "semantic_match":
			if t.Confidence > 0 && t.Category != "" {
				c.mode = ModeFocus
				c.focusCat = t.Category
				return &Decision{Mode: ModeFocus, Category: t.Category, Reason: "semantic_match", Triggers: []string{t.Kind}}
			}
		}
	}
	return nil
}

var keywordCategories = []struct {
	words []string
	cat   Category
}{
	{[]string{"error", "fail", "bug"}, CategoryErrors},
	{[]string{"goal", "milestone"}, CategoryGoals},
	{[]string{"decide", "decision"}, CategoryDecisions},
	{[]string{"remember", "recall"}, CategoryMemories},
	{[]string{"commit", "branch", "merge"}, CategoryGit},
}

func (c *Carousel) applyKeywordTriggers(query string) *Decision {
	if query == "" {
		return nil
	}
	q := strings.ToLower(query)
	for _, kc := range keywordCategories {
		for _, w := range kc.words {
			if strings.Contains(q, w) {
				return &Decision{Mode: c.mode, Category: kc.cat, Reason: "keyword:" + w, Triggers: []string{"keyword"}}
			}
		}
	}
	return nil
}

// rotate applies the normal ring advance-or-starvation-rescue rule. Focus
// mode suppresses rotation entirely; Panic mode cycles only panicSet.
func (c *Carousel) rotate() *Decision {
	if c.mode == ModeFocus {
		return &Decision{Mode: ModeFocus, Category: c.focusCat, Reason: "pinned"}
	}
	if c.mode == ModePanic {
		cat := panicSet[c.tick%len(panicSet)]
		return &Decision{Mode: ModePanic, Category: cat, Reason: "panic_cycle"}
	}

	if rescue, ok := c.starvedCategory(); ok {
		return &Decision{Mode: ModeCruising, Category: rescue, Reason: "starvation_rescue", StarvationRescue: true}
	}

	interval := c.cfg.RotationInterval
	if interval <= 0 {
		interval = defaultRotationInterval
	}
	c.sinceRotate++
	if c.sinceRotate < interval {
		return &Decision{Mode: ModeCruising, Category: ring[c.current], Reason: "holding"}
	}
	c.sinceRotate = 0
	c.current = (c.current + 1) % len(ring)
	return &Decision{Mode: ModeCruising, Category: ring[c.current], Reason: "rotation_interval"}
}

func (c *Carousel) starvedCategory() (Category, bool) {
	for _, cat := range ring {
		if c.lastSeen[cat] >= c.cfg.budgetFor(cat) {
			return cat, true
		}
	}
	return "", false
}

func (c *Carousel) decrementAnchors() {
	var live []Anchor
	for _, a := range c.anchors {
		a.TTL--
		if a.TTL > 0 {
			live = append(live, a)
		}
	}
	c.anchors = live
}

// render returns the categories to show this tick. Anchors are surfaced
// separately via Anchors() since they're free-text, not ring categories.
func (c *Carousel) render(active Category) []Category {
	return []Category{active}
}

func (c *Carousel) record(d Decision) {
	c.log = append(c.log, d)
	if len(c.log) > decisionLogCap {
		c.log = c.log[len(c.log)-decisionLogCap:]
	}
}

// DecisionLog returns the ring buffer of the last decisions, most recent last.
func (c *Carousel) DecisionLog() []Decision { return c.log }

// Anchors returns the currently live anchor texts.
func (c *Carousel) Anchors() []string {
	out := make([]string, len(c.anchors))
	for i, a := range c.anchors {
		out[i] = a.Text
	}
	return out
}

func (c *Carousel) Mode() Mode { return c.mode }

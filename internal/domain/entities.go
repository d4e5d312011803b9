// Package domain holds the persistent entity types shared across storage,
// memory, recall, insights, and session packages (spec §3).
package domain

import "time"

// Scope discriminates who can see a MemoryFact.
type Scope string

const (
	ScopeProject  Scope = "project"
	ScopePersonal Scope = "personal"
	ScopeTeam     Scope = "team"
)

// FactStatus is the candidate→confirmed→archived lifecycle (spec §3.1).
type FactStatus string

const (
	StatusCandidate FactStatus = "candidate"
	StatusConfirmed FactStatus = "confirmed"
	StatusArchived  FactStatus = "archived"
)

// System-only fact types excluded from user-visible listings (spec §3.1).
var SystemFactTypes = map[string]bool{
	"system_context": true,
	"observation":    true,
}

// MemoryFact is a persisted piece of domain knowledge (spec §3.1).
type MemoryFact struct {
	ID             int64
	Content        string
	Key            string
	FactType       string
	Category       string
	Confidence     float64
	Status         FactStatus
	Suspicious     bool
	Scope          Scope
	ProjectID      string
	UserID         string
	TeamID         string
	SessionCount   int
	FirstSessionID string
	LastSessionID  string
	Branch         string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Identity is the caller's scoping context used by every visibility check.
type Identity struct {
	ProjectID string
	UserID    string
	TeamID    string
	Branch    string
}

// Visible implements the scope-visibility invariant from spec §4.2.
func (f MemoryFact) Visible(caller Identity) bool {
	projectOK := f.ProjectID == caller.ProjectID || f.ProjectID == ""
	if !projectOK {
		return false
	}
	switch f.Scope {
	case ScopePersonal:
		return f.UserID != "" && f.UserID == caller.UserID
	case ScopeTeam:
		return f.TeamID != "" && f.TeamID == caller.TeamID
	default: // "" and ScopeProject both degrade to project-visible
		return true
	}
}

// MemoryEntity is a canonicalized code/concept name extracted from fact
// content, used to boost recall (spec §3.1, §4.3).
type MemoryEntity struct {
	ID   int64
	Name string
}

// SessionPhase tracks tool-call-driven progression through a turn (spec §3.1).
type SessionPhase string

const (
	PhaseEarly SessionPhase = "early"
	PhaseMid   SessionPhase = "mid"
	PhaseLate  SessionPhase = "late"
)

// Session is a single conversational run against a project (spec §3.1).
type Session struct {
	ID            string
	ProjectID     string
	StartedAt     time.Time
	LastActivity  time.Time
	Status        string
	Summary       string
	Source        string
	ResumedFrom   string
	Branch        string
	ToolCallCount int
	DistinctTools map[string]bool
	Phase         SessionPhase
}

// Project is a tracked source tree (spec §3.1).
type Project struct {
	ID          string
	Path        string
	Name        string
	ProjectType string
}

// Task is a hierarchical work item (spec §3.1).
type Task struct {
	ID       int64
	Title    string
	Status   string
	Priority string
	Progress float64
	ParentID int64
	GoalID   int64
}

// Milestone belongs to a Goal.
type Milestone struct {
	ID        int64
	Title     string
	Completed bool
}

// Goal groups Tasks and Milestones (spec §3.1).
type Goal struct {
	ID         int64
	Title      string
	Status     string
	Priority   string
	Progress   float64
	Milestones []Milestone
}

// Proposal is an extracted-from-text candidate goal/task/decision (spec §3.1).
type Proposal struct {
	ID         int64
	Kind       string // "goal" | "task" | "decision"
	Content    string
	Status     string // pending | confirmed | rejected
	Confidence float64
}

// BuildError is a hashed compiler/test failure (spec §3.1).
type BuildError struct {
	ID           int64
	Hash         string
	Category     string
	Severity     string
	File         string
	Line         int
	Message      string
	Occurrences  int
	ResolvedBy   string
	FirstSeen    time.Time
	LastSeen     time.Time
}

// BuildRun records a single build/test invocation outcome.
type BuildRun struct {
	ID        int64
	ProjectID string
	Success   bool
	Timestamp time.Time
}

// Correction is a what-was-wrong/what-is-right pair (spec §3.1).
type Correction struct {
	ID             int64
	WhatWasWrong   string
	WhatIsRight    string
	Scope          Scope
	CreatedAt      time.Time
}

// Team groups users for ScopeTeam visibility.
type Team struct {
	ID      string
	Name    string
	Members []string
}

package tools

import (
	"mira/internal/build"
	"mira/internal/carousel"
	"mira/internal/correction"
	"mira/internal/document"
	"mira/internal/goal"
	"mira/internal/insights"
	"mira/internal/memory"
	"mira/internal/project"
	"mira/internal/recall"
	"mira/internal/session"
	"mira/internal/storage"
	"mira/internal/task"
	"mira/internal/team"
)

// Deps bundles every store the tool surface dispatches against. Built once
// at startup and handed to Wire; cmd/mira owns construction order since
// several stores (correction, document) take an optional llm.Embedder that
// is itself chosen from config.
type Deps struct {
	MainPool *storage.Pool
	CodePool *storage.Pool

	Memory     *memory.Store
	Recall     *recall.Engine
	Session    *session.Store
	Registry   *session.Registry
	Insights   *insights.Store
	Project    *project.Store
	Task       *task.Store
	Goal       *goal.Store
	Build      *build.Store
	Correction *correction.Store
	Document   *document.Store
	Team       *team.Store
	Carousel   *carousel.Carousel
}

// Wire constructs a Registry with all 11 tool surface rows registered
// against d (spec §6), mirroring the oracle package's Wire entry point.
func Wire(d Deps) *Registry {
	r := NewRegistry()
	r.Register(&MemoryTool{Store: d.Memory, Recall: d.Recall})
	r.Register(&CodeTool{CodePool: d.CodePool, MainPool: d.MainPool})
	r.Register(&SessionTool{Store: d.Session, Registry: d.Registry, Insights: d.Insights})
	r.Register(&ProjectTool{Store: d.Project, Registry: d.Registry, MainPool: d.MainPool})
	r.Register(&TaskTool{Store: d.Task})
	r.Register(&GoalTool{Store: d.Goal})
	r.Register(&BuildTool{Store: d.Build})
	r.Register(&CorrectionTool{Store: d.Correction})
	r.Register(&DocumentTool{Store: d.Document})
	r.Register(&TeamTool{Store: d.Team})
	r.Register(&CarouselTool{Ring: d.Carousel})
	return r
}

// Command mira boots Mira's two storage pools, wires every domain store and
// the tool registry, and drives the session lifecycle from stdin/stdout.
// The transport itself (web/chat/MCP handlers) is out of core's scope; this
// is a minimal line-oriented REPL harness that exercises session_start and
// tool dispatch end-to-end, grounded on the teacher's cmd/manifold bootstrap
// sequence (load config, open pools, run migrations, wire dependents).
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"mira/internal/build"
	"mira/internal/carousel"
	"mira/internal/config"
	"mira/internal/correction"
	"mira/internal/document"
	"mira/internal/goal"
	"mira/internal/insights"
	"mira/internal/llm"
	"mira/internal/llm/anthropic"
	"mira/internal/llm/openai"
	"mira/internal/memory"
	"mira/internal/obslog"
	"mira/internal/orchestrator"
	"mira/internal/project"
	"mira/internal/prompt"
	"mira/internal/recall"
	"mira/internal/session"
	"mira/internal/storage"
	"mira/internal/task"
	"mira/internal/team"
	"mira/internal/tools"
)

// request is one REPL input line. "tool" dispatches through the registry;
// the special tool name "turn" drives one orchestrator loop over free text.
type request struct {
	Tool      string          `json:"tool"`
	Args      json.RawMessage `json:"args"`
	Message   string          `json:"message"`
	SessionID string          `json:"session_id"`
}

type response struct {
	OK     bool   `json:"ok"`
	Result any    `json:"result,omitempty"`
	Diff   string `json:"diff,omitempty"`
	Error  string `json:"error,omitempty"`
}

func main() {
	configPath := flag.String("config", "mira.yaml", "path to YAML config file")
	projectPath := flag.String("project", ".", "project root path to bootstrap")
	projectName := flag.String("name", "", "project display name")
	sessionID := flag.String("session", "", "resume an existing session id")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	obslog.Init(cfg.LogPath, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mainPool, err := storage.Open(ctx, "main", cfg.MainDBPath, 5*time.Minute)
	if err != nil {
		fatal("open main db", err)
	}
	defer mainPool.Close()
	if err := storage.Migrate(mainPool, "main"); err != nil {
		fatal("migrate main db", err)
	}

	codePool, err := storage.Open(ctx, "code", cfg.CodeDBPath, 5*time.Minute)
	if err != nil {
		fatal("open code db", err)
	}
	defer codePool.Close()
	if err := storage.Migrate(codePool, "code"); err != nil {
		fatal("migrate code db", err)
	}

	var embedder llm.Embedder
	var provider llm.Provider
	switch {
	case cfg.ApiKeys.Anthropic != "":
		provider = anthropic.New(cfg.ApiKeys.Anthropic, "claude-sonnet-4-5", 4096)
	case cfg.ApiKeys.OpenAI != "":
		oa := openai.New(cfg.ApiKeys.OpenAI, "gpt-5")
		provider = oa
		embedder = oa
	}

	memStore := memory.NewStore(mainPool, embedder)
	recallEngine := recall.NewEngine(mainPool, embedder, memStore)
	insightsStore := insights.NewStore(mainPool)
	projectStore := project.NewStore(mainPool)
	taskStore := task.NewStore(mainPool)
	goalStore := goal.NewStore(mainPool)
	buildStore := build.NewStore(mainPool)
	correctionStore := correction.NewStore(mainPool, embedder)
	documentStore := document.NewStore(mainPool, embedder)
	teamStore := team.NewStore(mainPool)
	ring := carousel.New(carousel.DefaultConfig())

	sessionRegistry := session.NewRegistry()
	sessionStore := session.NewStore(mainPool, codePool, execGitLog{}, embedder != nil)

	registry := tools.Wire(tools.Deps{
		MainPool:   mainPool,
		CodePool:   codePool,
		Memory:     memStore,
		Recall:     recallEngine,
		Session:    sessionStore,
		Registry:   sessionRegistry,
		Insights:   insightsStore,
		Project:    projectStore,
		Task:       taskStore,
		Goal:       goalStore,
		Build:      buildStore,
		Correction: correctionStore,
		Document:   documentStore,
		Team:       teamStore,
		Carousel:   ring,
	})

	path := strings.TrimSpace(*projectPath)
	if path == "" {
		path = cfg.MiraProjectPath
	}
	proj, err := projectStore.GetOrCreate(ctx, path, *projectName, "general")
	if err != nil {
		fatal("bootstrap project", err)
	}
	projectStore.SetActive(proj)

	start, err := sessionStore.Start(ctx, proj.ID, *sessionID, "cli")
	if err != nil {
		fatal("session_start", err)
	}
	sessionRegistry.SetSession(proj.ID, start.Session.ID)

	fmt.Fprintf(os.Stderr, "mira: project=%s session=%s mode=%s stale_index=%v first=%v\n",
		proj.Path, start.Session.ID, start.Mode, start.StaleIndex, start.FirstSession)
	if start.Briefing != "" {
		fmt.Fprintln(os.Stderr, start.Briefing)
	}

	engine := &orchestrator.Engine{
		Provider:      provider,
		Tools:         registry,
		MaxIterations: cfg.Orchestrator.ToolMaxIterations,
	}

	runREPL(ctx, registry, engine, start.Session.ID)
}

func runREPL(ctx context.Context, registry *tools.Registry, engine *orchestrator.Engine, sessionID string) {
	enc := json.NewEncoder(os.Stdout)
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var req request
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			enc.Encode(response{Error: "invalid request: " + err.Error()})
			continue
		}

		if req.Tool == "turn" {
			handleTurn(ctx, engine, req, enc)
			continue
		}

		out, diff, err := registry.Dispatch(ctx, req.Tool, req.Args)
		if err != nil {
			enc.Encode(response{Error: err.Error()})
			continue
		}
		var result any
		_ = json.Unmarshal(out, &result)
		enc.Encode(response{OK: true, Result: result, Diff: diff})
	}
}

func handleTurn(ctx context.Context, engine *orchestrator.Engine, req request, enc *json.Encoder) {
	if engine.Provider == nil {
		enc.Encode(response{Error: "no provider configured: set ANTHROPIC_API_KEY or OPENAI_API_KEY"})
		return
	}

	schemas := engine.Tools.Schemas()
	toolInfos := make([]prompt.ToolInfo, 0, len(schemas))
	for _, s := range schemas {
		toolInfos = append(toolInfos, prompt.ToolInfo{Name: s.Name, Description: s.Description})
	}
	system := prompt.BuildSystemPrompt(prompt.Input{
		Persona: "Mira, a context-intelligence assistant embedded in the developer's editor.",
		Env:     prompt.Env{Now: time.Now().UTC(), Timezone: "UTC"},
		Tools:   toolInfos,
	})

	messages := []llm.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: req.Message},
	}

	var cancel atomic.Bool
	go func() {
		<-ctx.Done()
		cancel.Store(true)
	}()

	text, usage, err := engine.Run(ctx, orchestrator.TurnRequest{
		Messages: messages,
		Cancel:   &cancel,
	}, func(ev llm.Event) {
		if ev.Kind == llm.EventTextDelta && ev.Delta != "" {
			fmt.Fprint(os.Stderr, ev.Delta)
		}
	})
	if err != nil {
		enc.Encode(response{Error: err.Error()})
		return
	}
	enc.Encode(response{OK: true, Result: map[string]any{"text": text, "usage": usage}})
}

func fatal(step string, err error) {
	fmt.Fprintf(os.Stderr, "mira: %s: %v\n", step, err)
	os.Exit(1)
}

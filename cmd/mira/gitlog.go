package main

import (
	"bytes"
	"context"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// execGitLog implements session.GitLogReader by shelling out to `git log`,
// the way the teacher's cmd entrypoints shell out to real tooling rather
// than linking a git library for a single timestamp read.
type execGitLog struct{}

func (execGitLog) LatestCommitTime(ctx context.Context, repoPath string) (time.Time, bool, error) {
	cmd := exec.CommandContext(ctx, "git", "-C", repoPath, "log", "-1", "--format=%ct")
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		// No commits, not a git repo, or git missing from PATH: treat as
		// "unknown", not an error — stale-index detection just skips.
		return time.Time{}, false, nil
	}
	raw := strings.TrimSpace(out.String())
	if raw == "" {
		return time.Time{}, false, nil
	}
	sec, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false, nil
	}
	return time.Unix(sec, 0).UTC(), true, nil
}

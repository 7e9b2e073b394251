// Package toolcheck detects the external programs chore tasks shell out to.
package toolcheck

import (
	"context"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"
)

// versionTimeout bounds each `<tool> --version` call.
const versionTimeout = 5 * time.Second

// Tool is an external program used by one or more tasks.
type Tool struct {
	Program     string
	VersionFlag string
	UsedBy      []string
	Hint        string
}

// Status is the detection result for one tool.
type Status struct {
	Tool
	Found   bool
	Path    string
	Version string
}

// Detector scans PATH for tools.
type Detector struct {
	lookPath func(string) (string, error)
	version  func(ctx context.Context, path, flag string) string
}

// NewDetector creates a detector using the process PATH.
func NewDetector() *Detector {
	return &Detector{
		lookPath: exec.LookPath,
		version:  getCommandVersion,
	}
}

// Merge combines tools with the same program, joining their users.
func Merge(tools []Tool) []Tool {
	grouped := lo.GroupBy(tools, func(t Tool) string { return t.Program })
	merged := make([]Tool, 0, len(grouped))
	for program, group := range grouped {
		if program == "" {
			continue
		}
		t := group[0]
		t.UsedBy = lo.Uniq(lo.FlatMap(group, func(g Tool, _ int) []string { return g.UsedBy }))
		sort.Strings(t.UsedBy)
		for _, g := range group {
			if t.Hint == "" {
				t.Hint = g.Hint
			}
			if t.VersionFlag == "" {
				t.VersionFlag = g.VersionFlag
			}
		}
		merged = append(merged, t)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Program < merged[j].Program })
	return merged
}

// Scan detects each tool and reads its version line.
func (d *Detector) Scan(ctx context.Context, tools []Tool) []Status {
	statuses := make([]Status, 0, len(tools))
	for _, t := range Merge(tools) {
		s := Status{Tool: t}
		if path, err := d.lookPath(t.Program); err == nil {
			s.Found = true
			s.Path = path
			flag := t.VersionFlag
			if flag == "" {
				flag = "--version"
			}
			s.Version = d.version(ctx, path, flag)
		}
		statuses = append(statuses, s)
	}
	return statuses
}

// Missing returns the statuses of tools that were not found.
func Missing(statuses []Status) []Status {
	return lo.Filter(statuses, func(s Status, _ int) bool { return !s.Found })
}

func getCommandVersion(ctx context.Context, cmd string, flag string) string {
	ctx, cancel := context.WithTimeout(ctx, versionTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, cmd, flag).CombinedOutput()
	if err != nil && len(out) == 0 {
		return ""
	}
	version := strings.TrimSpace(string(out))
	// Take first line only
	if idx := strings.Index(version, "\n"); idx > 0 {
		version = version[:idx]
	}
	// Limit length
	if len(version) > 60 {
		version = version[:60]
	}
	return strings.TrimSpace(version)
}

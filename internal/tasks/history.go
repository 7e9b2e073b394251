package tasks

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/samber/lo"

	"github.com/fentz26/chore/internal/models"
	"github.com/fentz26/chore/internal/registry"
	"github.com/fentz26/chore/internal/tui"
)

// ErrHistoryDisabled is returned by History when no history store is open.
var ErrHistoryDisabled = errors.New("run history is disabled (history.enabled: false)")

// HistoryOptions configures History.
type HistoryOptions struct {
	Limit int
	Task  string
	// Show is a task run id, or a unique prefix of one.
	Show string
}

// History lists recent task runs, or the commands of one run.
func History(_ context.Context, rt *registry.Runtime, opts HistoryOptions) error {
	if rt.History == nil {
		return ErrHistoryDisabled
	}
	if opts.Show != "" {
		return showRun(rt, opts.Show)
	}

	runs, err := rt.History.ListTaskRuns(opts.Task, opts.Limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		rt.Println("No task runs recorded.")
		return nil
	}

	w := tabwriter.NewWriter(rt.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTASK\tSTARTED\tDURATION\tSTATUS")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			truncateID(run.ID),
			run.Task,
			run.StartedAt.Local().Format(time.DateTime),
			formatDuration(&run),
			tui.Status(string(run.Status)),
		)
	}
	return w.Flush()
}

func showRun(rt *registry.Runtime, id string) error {
	run, err := findRun(rt, id)
	if err != nil {
		return err
	}

	rt.Printf("ID:       %s\n", run.ID)
	rt.Printf("Task:     %s\n", run.Task)
	rt.Printf("Status:   %s\n", tui.Status(string(run.Status)))
	rt.Printf("Started:  %s\n", run.StartedAt.Local().Format(time.DateTime))
	rt.Printf("Duration: %s\n", formatDuration(run))
	if len(run.Args) > 0 {
		rt.Printf("Args:     %s\n", formatArgs(run.Args))
	}
	if run.Error != "" {
		rt.Printf("Error:    %s\n", tui.Error(run.Error))
	}

	commands, err := rt.History.GetCommandRuns(run.ID)
	if err != nil {
		return err
	}
	if len(commands) == 0 {
		return nil
	}

	rt.Println()
	w := tabwriter.NewWriter(rt.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "EXIT\tDURATION\tCOMMAND")
	for _, c := range commands {
		d := "-"
		if c.EndedAt != nil {
			d = c.EndedAt.Sub(c.StartedAt).Round(time.Millisecond).String()
		}
		fmt.Fprintf(w, "%d\t%s\t%s\n", c.ExitCode, d, c.Command)
	}
	return w.Flush()
}

func findRun(rt *registry.Runtime, id string) (*models.TaskRun, error) {
	run, err := rt.History.GetTaskRun(id)
	if err != nil || run != nil {
		return run, err
	}

	all, err := rt.History.ListTaskRuns("", 0)
	if err != nil {
		return nil, err
	}
	matches := lo.Filter(all, func(r models.TaskRun, _ int) bool { return strings.HasPrefix(r.ID, id) })
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("task run not found: %s", id)
	case 1:
		return &matches[0], nil
	default:
		return nil, fmt.Errorf("task run id %s is ambiguous (%d matches)", id, len(matches))
	}
}

func formatDuration(run *models.TaskRun) string {
	if run.EndedAt == nil {
		return "-"
	}
	return run.Duration().Round(time.Millisecond).String()
}

func formatArgs(args map[string]any) string {
	keys := lo.Keys(args)
	sort.Strings(keys)
	return strings.Join(lo.Map(keys, func(k string, _ int) string {
		return fmt.Sprintf("%s=%v", k, args[k])
	}), " ")
}

func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

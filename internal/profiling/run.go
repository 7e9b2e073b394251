package profiling

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"runtime/pprof"
	"time"

	"github.com/fentz26/chore/internal/envscope"
	"go.starlark.net/starlark"
)

// DefaultLimit is the number of stats rows printed when Options.Limit is
// not positive.
const DefaultLimit = 25

// Options controls a profile run.
type Options struct {
	Out io.Writer
	// Filename receives the raw pprof profile when set.
	Filename string
	Limit    int
	// Env is set in the process environment while the target runs.
	Env map[string]string
}

// Run profiles target and prints its result, the elapsed time and the
// statistics to opts.Out.
func Run(ctx context.Context, target *Target, opts Options) (*Stats, error) {
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}

	var (
		raw     bytes.Buffer
		result  any
		elapsed time.Duration
	)
	err := envscope.With(opts.Env, func() error {
		start := time.Now()
		var err error
		result, err = profileCall(ctx, target, &raw)
		elapsed = time.Since(start)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("profiling %s: %w", target.Name(), err)
	}

	if s := display(result); s != "" {
		fmt.Fprintln(opts.Out, s)
	}
	fmt.Fprintf(opts.Out, "%s finished in %s\n\n", target.Name(), elapsed.Round(time.Microsecond))

	if opts.Filename != "" {
		if err := os.WriteFile(opts.Filename, raw.Bytes(), 0644); err != nil {
			return nil, fmt.Errorf("writing profile: %w", err)
		}
	}

	stats, err := Analyze(raw.Bytes())
	if err != nil {
		return nil, err
	}
	if err := stats.Write(opts.Out, opts.Limit); err != nil {
		return nil, err
	}
	if opts.Filename != "" {
		fmt.Fprintf(opts.Out, "\nprofile written to %s\n", opts.Filename)
	}
	return stats, nil
}

func profileCall(ctx context.Context, target *Target, w io.Writer) (any, error) {
	if target.Starlark() {
		return callStarlark(ctx, target, w)
	}

	if err := pprof.StartCPUProfile(w); err != nil {
		return nil, fmt.Errorf("starting cpu profile: %w", err)
	}
	defer pprof.StopCPUProfile()
	return target.fn(ctx)
}

func callStarlark(ctx context.Context, target *Target, w io.Writer) (res any, err error) {
	thread := newThread(target.Name(), target.out)
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			thread.Cancel(ctx.Err().Error())
		case <-done:
		}
	}()

	if err := starlark.StartProfile(w); err != nil {
		return nil, fmt.Errorf("starting starlark profile: %w", err)
	}
	defer func() {
		if stopErr := starlark.StopProfile(); stopErr != nil && err == nil {
			err = fmt.Errorf("finishing starlark profile: %w", stopErr)
		}
	}()

	v, err := starlark.Call(thread, target.star, nil, nil)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// display renders a target result; empty results print nothing.
func display(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case starlark.NoneType:
		return ""
	case starlark.String:
		return string(v)
	case starlark.Value:
		if !v.Truth() {
			return ""
		}
		return v.String()
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

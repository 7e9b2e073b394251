package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fentz26/chore/internal/registry"
	"github.com/fentz26/chore/internal/tasks"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	reg := registry.New()
	if err := tasks.Register(reg, version); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	d := &registry.Dispatcher{
		Registry: reg,
		Setup:    setup,
		Program:  "chore",
		Version:  version,
	}
	code := d.Dispatch(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}

package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"text/tabwriter"

	"github.com/fentz26/chore/internal/connectors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Globals are the flags accepted before the task name.
type Globals struct {
	ConfigPath string
	LogLevel   string
	Echo       bool
}

// Call is a parsed command line.
type Call struct {
	// Task is nil when nothing should run (help, list or version).
	Task    *Task
	Args    Args
	Globals Globals
	List    bool
	Version bool
}

// SetupFunc builds the runtime for a call. The returned cleanup runs after
// the task finishes.
type SetupFunc func(ctx context.Context, g Globals) (*Runtime, func(), error)

// Dispatcher resolves a command line to a task and runs it.
type Dispatcher struct {
	Registry *Registry
	Setup    SetupFunc
	Program  string
	Version  string
	Stdout   io.Writer
	Stderr   io.Writer
}

type globalFlag struct {
	long, short string
	takesValue  bool
}

var globalFlags = []globalFlag{
	{"config", "c", true},
	{"log-level", "", true},
	{"echo", "e", false},
	{"list", "l", false},
	{"version", "V", false},
	{"help", "h", false},
}

func (d *Dispatcher) program() string {
	if d.Program == "" {
		return "chore"
	}
	return d.Program
}

func (d *Dispatcher) stdout() io.Writer {
	if d.Stdout == nil {
		return os.Stdout
	}
	return d.Stdout
}

func (d *Dispatcher) stderr() io.Writer {
	if d.Stderr == nil {
		return os.Stderr
	}
	return d.Stderr
}

// Parse resolves the task named in argv and parses its arguments.
func (d *Dispatcher) Parse(argv []string) (*Call, error) {
	i, err := taskIndex(argv)
	if err != nil {
		return nil, err
	}
	if i >= 0 {
		name := argv[i]
		if name == "help" && i+1 < len(argv) && !strings.HasPrefix(argv[i+1], "-") {
			name = argv[i+1]
		}
		if name != "help" {
			if _, err := d.Registry.Lookup(name); err != nil {
				return nil, err
			}
		}
	}

	if argv == nil {
		argv = []string{}
	}
	call := &Call{}
	root := d.rootCommand(call)
	root.SetArgs(argv)
	if _, err := root.ExecuteC(); err != nil {
		return nil, err
	}
	return call, nil
}

// Dispatch parses argv, runs the task and returns the process exit code.
func (d *Dispatcher) Dispatch(ctx context.Context, argv []string) int {
	call, err := d.Parse(argv)
	if err != nil {
		fmt.Fprintf(d.stderr(), "Error: %v\n", err)
		if name, _ := taskName(argv); name != "" && !errors.Is(err, ErrUnknownTask) {
			fmt.Fprintf(d.stderr(), "Run '%s %s --help' for usage.\n", d.program(), name)
		} else {
			fmt.Fprintf(d.stderr(), "Run '%s --list' for available tasks.\n", d.program())
		}
		return 1
	}

	switch {
	case call.Version:
		d.PrintVersion()
		return 0
	case call.List:
		d.PrintTasks()
		return 0
	case call.Task == nil:
		return 0
	}

	rt, cleanup, err := d.Setup(ctx, call.Globals)
	if err != nil {
		fmt.Fprintf(d.stderr(), "Error: %v\n", err)
		return 1
	}
	if cleanup != nil {
		defer cleanup()
	}

	return d.exitCode(d.Run(ctx, rt, call))
}

// Run invokes the call's task, recording it in the runtime's journal.
func (d *Dispatcher) Run(ctx context.Context, rt *Runtime, call *Call) error {
	if rt.Journal == nil {
		return call.Task.Run(ctx, rt, call.Args)
	}
	id := rt.Journal.Begin(call.Task.Name, call.Args.Map())
	err := call.Task.Run(ctx, rt, call.Args)
	rt.Journal.Finish(id, err)
	return err
}

func (d *Dispatcher) exitCode(err error) int {
	if err == nil {
		return 0
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		if exitErr.Message != "" {
			fmt.Fprintln(d.stderr(), exitErr.Message)
		}
		return exitErr.Code
	}

	if errors.Is(err, connectors.ErrUserAbort) {
		fmt.Fprintln(d.stderr(), "Aborted.")
		return 130
	}

	fmt.Fprintf(d.stderr(), "Error: %v\n", err)
	var failed *connectors.FailedError
	if errors.As(err, &failed) && failed.ExitCode() > 0 {
		return failed.ExitCode()
	}
	return 1
}

// PrintTasks writes the task table.
func (d *Dispatcher) PrintTasks() {
	w := tabwriter.NewWriter(d.stdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "Available tasks:")
	fmt.Fprintln(w)
	for _, t := range d.Registry.Tasks() {
		name := t.Name
		if len(t.Aliases) > 0 {
			name += " (" + strings.Join(t.Aliases, ", ") + ")"
		}
		fmt.Fprintf(w, "  %s\t%s\n", name, firstLine(t.Help))
	}
	w.Flush()
}

// PrintVersion writes the program version.
func (d *Dispatcher) PrintVersion() {
	WriteVersion(d.stdout(), d.program(), d.Version)
}

// WriteVersion writes the version banner of program.
func WriteVersion(w io.Writer, program, version string) {
	fmt.Fprintf(w, "%s version %s\n", program, version)
	fmt.Fprintf(w, "  OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(w, "  Go version: %s\n", runtime.Version())
}

func (d *Dispatcher) rootCommand(call *Call) *cobra.Command {
	root := &cobra.Command{
		Use:           d.program() + " [flags] <task> [task flags]",
		Short:         "Project automation tasks",
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			call.Version, _ = cmd.Flags().GetBool("version")
			call.List = !call.Version
			return nil
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetOut(d.stdout())
	root.SetErr(d.stderr())

	pf := root.PersistentFlags()
	pf.StringVarP(&call.Globals.ConfigPath, "config", "c", "", "Config file (default: chore.yaml in the working directory)")
	pf.StringVar(&call.Globals.LogLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.BoolVarP(&call.Globals.Echo, "echo", "e", false, "Echo commands before running them")
	root.Flags().BoolP("list", "l", false, "List available tasks")
	root.Flags().BoolP("version", "V", false, "Print the version")

	for _, t := range d.Registry.Tasks() {
		root.AddCommand(taskCommand(t, call))
	}

	root.SetGlobalNormalizationFunc(func(f *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		if msg := err.Error(); strings.HasPrefix(msg, "unknown") {
			_, detail, _ := strings.Cut(msg, ": ")
			return fmt.Errorf("%w: %s", ErrUnknownFlag, detail)
		}
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	})
	return root
}

func taskCommand(t *Task, call *Call) *cobra.Command {
	var use strings.Builder
	use.WriteString(t.Name)
	for _, p := range t.positional() {
		fmt.Fprintf(&use, " <%s>", p.FlagName())
	}

	aliases := []string{}
	for _, n := range t.Names() {
		if n != t.Name {
			aliases = append(aliases, n)
		}
	}

	cmd := &cobra.Command{
		Use:     use.String(),
		Aliases: aliases,
		Short:   firstLine(t.Help),
		Long:    t.Help,
		RunE: func(cmd *cobra.Command, positional []string) error {
			args, err := bindArgs(t, cmd.Flags(), positional)
			if err != nil {
				return err
			}
			call.Task = t
			call.Args = args
			return nil
		},
	}

	fs := cmd.Flags()
	for _, p := range t.Params {
		help := p.Help
		switch def := p.Default.(type) {
		case bool:
			fs.BoolP(p.FlagName(), p.Short, def, help)
		case int:
			fs.IntP(p.FlagName(), p.Short, def, help)
		case float64:
			fs.Float64P(p.FlagName(), p.Short, def, help)
		case string:
			fs.StringP(p.FlagName(), p.Short, def, help)
		default:
			fs.StringP(p.FlagName(), p.Short, "", help)
		}
	}
	return cmd
}

// bindArgs reads flag values and fills required parameters not given as
// flags from positional tokens, in declaration order.
func bindArgs(t *Task, fs *pflag.FlagSet, positional []string) (Args, error) {
	args := newArgs(t.Params)
	for _, p := range t.Params {
		if !fs.Changed(p.FlagName()) {
			continue
		}
		var (
			v   any
			err error
		)
		switch p.Kind() {
		case KindBool:
			v, err = fs.GetBool(p.FlagName())
		case KindInt:
			v, err = fs.GetInt(p.FlagName())
		case KindFloat:
			v, err = fs.GetFloat64(p.FlagName())
		default:
			v, err = fs.GetString(p.FlagName())
		}
		if err != nil {
			return Args{}, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
		}
		args.put(p.Name, v)
	}

	for _, p := range t.positional() {
		if args.IsSet(p.Name) || len(positional) == 0 {
			continue
		}
		v, err := p.parse(positional[0])
		if err != nil {
			return Args{}, fmt.Errorf("%w: %s=%q", ErrInvalidArgument, p.Name, positional[0])
		}
		args.put(p.Name, v)
		positional = positional[1:]
	}
	if len(positional) > 0 {
		return Args{}, fmt.Errorf("%w: %s", ErrTooManyArgs, strings.Join(positional, " "))
	}

	for _, p := range t.positional() {
		if !args.IsSet(p.Name) {
			return Args{}, fmt.Errorf("%w: %s", ErrMissingArgument, p.FlagName())
		}
	}
	return args, nil
}

// taskName finds the first token that is not a global flag or its value.
func taskName(argv []string) (string, error) {
	i, err := taskIndex(argv)
	if err != nil || i < 0 {
		return "", err
	}
	return argv[i], nil
}

// taskIndex returns the position of the task name in argv, or -1 when there
// is none. Short flags may be grouped (-ec) and take attached values
// (-cchore.yaml) as pflag allows.
func taskIndex(argv []string) (int, error) {
	for i := 0; i < len(argv); i++ {
		arg := argv[i]
		if arg == "--" {
			if i+1 < len(argv) {
				return i + 1, nil
			}
			return -1, nil
		}
		if !strings.HasPrefix(arg, "-") || arg == "-" {
			return i, nil
		}

		if strings.HasPrefix(arg, "--") {
			name, _, hasValue := strings.Cut(arg[2:], "=")
			flag := lookupGlobal(func(g *globalFlag) bool { return g.long == strings.ReplaceAll(name, "_", "-") })
			if flag == nil {
				return -1, fmt.Errorf("%w: %s", ErrUnknownFlag, arg)
			}
			if flag.takesValue && !hasValue {
				i++
			}
			continue
		}

		shorts := arg[1:]
		for j := 0; j < len(shorts); j++ {
			c := shorts[j : j+1]
			flag := lookupGlobal(func(g *globalFlag) bool { return g.short != "" && g.short == c })
			if flag == nil {
				return -1, fmt.Errorf("%w: -%s in %s", ErrUnknownFlag, c, arg)
			}
			if flag.takesValue {
				if j == len(shorts)-1 {
					i++
				}
				break
			}
		}
	}
	return -1, nil
}

func lookupGlobal(match func(*globalFlag) bool) *globalFlag {
	for j := range globalFlags {
		if match(&globalFlags[j]) {
			return &globalFlags[j]
		}
	}
	return nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

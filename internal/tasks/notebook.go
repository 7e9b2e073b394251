package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fentz26/chore/internal/connectors"
	"github.com/fentz26/chore/internal/registry"
	"github.com/fentz26/chore/internal/tui"
)

// Notebook runs the notebook server attached to the terminal. Ctrl-C stops
// the server and is not an error.
func Notebook(ctx context.Context, rt *registry.Runtime) error {
	cfg := rt.Config.Notebook
	dir := rt.Path(cfg.Dir)

	err := func() error {
		if cfg.Setup != "" {
			if _, err := rt.Run(ctx, connectors.Invocation{Command: cfg.Setup, Dir: dir, Env: cfg.Env}); err != nil {
				return err
			}
		}
		_, err := rt.Run(ctx, connectors.Invocation{Command: cfg.Server, Dir: dir, Env: cfg.Env, PTY: true})
		return err
	}()
	if err != nil && !errors.Is(err, connectors.ErrUserAbort) {
		return err
	}

	rt.Println(tui.Muted("If the notebook does not open in your browser automatically, set BROWSER in your shell profile, e.g."))
	rt.Println(tui.Muted(`export BROWSER="/Applications/Google Chrome.app/Contents/MacOS/Google Chrome"`))
	return nil
}

// ShareNotebookOptions configures ShareNotebook.
type ShareNotebookOptions struct {
	Branch string
}

// ShareNotebook opens a binder link for the notebooks of the remote
// repository and returns it.
func ShareNotebook(ctx context.Context, rt *registry.Runtime, opts ShareNotebookOptions) (string, error) {
	cfg := rt.Config.Notebook
	rt.Println("sharing from the remote repository, NOT local")

	res, err := rt.Run(ctx, connectors.Invocation{
		Argv: []string{"git", "remote", "get-url", cfg.Remote},
		Hide: true,
	})
	if err != nil {
		return "", err
	}

	url, err := BinderURL(cfg.ShareURL, res.Stdout, opts.Branch)
	if err != nil {
		return "", err
	}
	rt.Printf("Notebook can be accessed from here %s\n", url)
	if err := rt.Browser.Open(url); err != nil {
		return url, err
	}
	return url, nil
}

// BinderURL fills template with the organisation and repository name of
// remote and branch. Remotes can be https URLs or scp-like ssh addresses.
func BinderURL(template, remote, branch string) (string, error) {
	repo := strings.TrimSpace(remote)
	if !strings.HasPrefix(repo, "http") {
		repo = repo[strings.LastIndex(repo, ":")+1:]
	}

	parts := strings.Split(strings.Trim(repo, "/"), "/")
	if len(parts) < 2 || parts[len(parts)-2] == "" || parts[len(parts)-1] == "" {
		return "", fmt.Errorf("cannot find organisation and repository in remote %q", remote)
	}
	org := parts[len(parts)-2]
	name := strings.TrimSuffix(parts[len(parts)-1], ".git")

	return strings.NewReplacer("{org}", org, "{name}", name, "{branch}", branch).Replace(template), nil
}

// Package browser opens URLs and local files in the user's web browser.
package browser

import (
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/kballard/go-shellquote"
)

// Opener launches the browser as a detached process.
type Opener struct {
	root   string
	goos   string
	getenv func(string) string
	start  func(argv []string) error
}

// New creates an Opener resolving relative paths against root.
func New(root string) *Opener {
	return &Opener{
		root:   root,
		goos:   runtime.GOOS,
		getenv: os.Getenv,
		start:  startDetached,
	}
}

// Open shows target, a URL or a file path, in a new browser tab.
func (o *Opener) Open(target string) error {
	u, err := o.URL(target)
	if err != nil {
		return err
	}
	argv, err := o.command(u)
	if err != nil {
		return err
	}
	if err := o.start(argv); err != nil {
		return fmt.Errorf("opening %s: %w", u, err)
	}
	return nil
}

// URL turns a local path into an absolute file:// URL and leaves URLs
// with a scheme untouched.
func (o *Opener) URL(target string) (string, error) {
	if target == "" {
		return "", fmt.Errorf("nothing to open")
	}
	if u, err := url.Parse(target); err == nil && len(u.Scheme) > 1 {
		return target, nil
	}

	path := target
	if !filepath.IsAbs(path) {
		path = filepath.Join(o.root, path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", target, err)
	}
	slashed := filepath.ToSlash(abs)
	if !strings.HasPrefix(slashed, "/") {
		slashed = "/" + slashed
	}
	return (&url.URL{Scheme: "file", Path: slashed}).String(), nil
}

func (o *Opener) command(u string) ([]string, error) {
	if browser := o.getenv("BROWSER"); browser != "" {
		first := strings.Split(browser, string(os.PathListSeparator))[0]
		words, err := shellquote.Split(first)
		if err != nil || len(words) == 0 {
			return nil, fmt.Errorf("invalid $BROWSER %q", browser)
		}
		substituted := false
		for i, w := range words {
			if strings.Contains(w, "%s") {
				words[i] = strings.ReplaceAll(w, "%s", u)
				substituted = true
			}
		}
		if !substituted {
			words = append(words, u)
		}
		return words, nil
	}

	switch o.goos {
	case "darwin":
		return []string{"open", u}, nil
	case "windows":
		return []string{"rundll32", "url.dll,FileProtocolHandler", u}, nil
	default:
		return []string{"xdg-open", u}, nil
	}
}

func startDetached(argv []string) error {
	cmd := exec.Command(argv[0], argv[1:]...)
	configureDetached(cmd)
	if err := cmd.Start(); err != nil {
		return err
	}
	return cmd.Process.Release()
}

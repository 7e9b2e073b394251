//go:build !windows

package localexec

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/creack/pty"
	"github.com/muesli/cancelreader"
	"golang.org/x/term"
)

// runPTY starts cmd on a pseudo-terminal so interactive programs see a tty
// and Ctrl-C reaches them. Output read from the pty goes to out.
func (l *LocalExec) runPTY(cmd *exec.Cmd, out io.Writer) error {
	ptmx, err := pty.Start(cmd)
	if err != nil {
		return fmt.Errorf("start pty: %w", err)
	}
	defer ptmx.Close()

	if f, ok := l.stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		resize := make(chan os.Signal, 1)
		signal.Notify(resize, syscall.SIGWINCH)
		go func() {
			for range resize {
				if err := pty.InheritSize(f, ptmx); err != nil {
					l.logger.Debug("resize pty", "error", err)
				}
			}
		}()
		resize <- syscall.SIGWINCH
		defer func() {
			signal.Stop(resize)
			close(resize)
		}()

		state, err := term.MakeRaw(int(f.Fd()))
		if err != nil {
			l.logger.Debug("raw terminal mode", "error", err)
		} else {
			defer term.Restore(int(f.Fd()), state)
		}
		defer l.forwardInput(ptmx, f)()
	} else if l.stdin != nil {
		defer l.forwardInput(ptmx, l.stdin)()
	}

	// Reading the pty fails with EIO once the child exits.
	_, _ = io.Copy(out, ptmx)
	return cmd.Wait()
}

// forwardInput copies src to the pty until the returned stop func is
// called. Stop cancels the pending read so no input is consumed after the
// child exits. Readers without a pollable descriptor can still lose the
// one read already in flight.
func (l *LocalExec) forwardInput(ptmx io.Writer, src io.Reader) (stop func()) {
	r, err := cancelreader.NewReader(src)
	if err != nil {
		l.logger.Debug("cancelable stdin", "error", err)
		r, _ = cancelreader.NewReader(struct{ io.Reader }{src})
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = io.Copy(ptmx, r)
	}()
	return func() {
		if r.Cancel() {
			<-done
		}
		_ = r.Close()
	}
}

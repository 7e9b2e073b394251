package connectors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInvocationString(t *testing.T) {
	assert.Equal(t, "flake8 .", Invocation{Command: "flake8 ."}.String())
	assert.Equal(t, `git tag -a v1 -m 'new production release v1'`,
		Invocation{Argv: []string{"git", "tag", "-a", "v1", "-m", "new production release v1"}}.String())
}

func TestInvocationProgram(t *testing.T) {
	tests := []struct {
		inv  Invocation
		want string
	}{
		{Invocation{Command: "flake8 ."}, "flake8"},
		{Invocation{Command: "  'sphinx-build' docs out"}, "sphinx-build"},
		{Invocation{Argv: []string{"git", "push"}}, "git"},
		{Invocation{Command: "echo 'unterminated"}, "echo 'unterminated"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.inv.Program())
		})
	}
}

func TestFailedErrorMatchesSentinel(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &FailedError{Result: &Result{Command: "pytest", ExitCode: 3, Stderr: "a\nlast\n\n"}})

	assert.ErrorIs(t, err, ErrCommandFailed)
	assert.NotErrorIs(t, err, ErrUserAbort)
	assert.Equal(t, `wrapped: command "pytest" exited with code 3: last`, err.Error())
}

func TestMissingDependencyError(t *testing.T) {
	err := &MissingDependencyError{Tool: "sphinx-autobuild", Hint: "pip install sphinx-autobuild"}

	assert.ErrorIs(t, err, ErrMissingDependency)
	assert.Equal(t, "sphinx-autobuild is not installed; pip install sphinx-autobuild", err.Error())
}

package tasks

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fentz26/chore/internal/config"
	"github.com/fentz26/chore/internal/connectors"
	"github.com/fentz26/chore/internal/models"
	"github.com/fentz26/chore/internal/profiling"
	"github.com/fentz26/chore/internal/registry"
	"github.com/fentz26/chore/internal/store"
	"github.com/fentz26/chore/internal/versionfile"
)

type response struct {
	exit   int
	stdout string
	err    error
}

// fakeConnector records invocations and answers them by program name,
// failing the way localexec does.
type fakeConnector struct {
	calls     []connectors.Invocation
	responses map[string]response
	missing   map[string]bool
}

func (f *fakeConnector) Name() string { return "fake" }

func (f *fakeConnector) Available(program string) bool { return !f.missing[program] }

func (f *fakeConnector) Run(_ context.Context, inv connectors.Invocation) (*connectors.Result, error) {
	f.calls = append(f.calls, inv)
	r := f.responses[inv.Program()]
	if r.err != nil {
		return nil, r.err
	}
	res := &connectors.Result{Command: inv.String(), ExitCode: r.exit, Stdout: r.stdout}
	if res.Failed() && !inv.Warn {
		return res, &connectors.FailedError{Result: res}
	}
	return res, nil
}

func (f *fakeConnector) commands() []string {
	out := make([]string, len(f.calls))
	for i, inv := range f.calls {
		out[i] = inv.String()
	}
	return out
}

type fakePrompter struct {
	answer  string
	err     error
	prompts []string
}

func (p *fakePrompter) Prompt(_ context.Context, msg string) (string, error) {
	p.prompts = append(p.prompts, msg)
	return p.answer, p.err
}

type fakeBrowser struct {
	opened []string
}

func (b *fakeBrowser) Open(target string) error {
	b.opened = append(b.opened, target)
	return nil
}

type env struct {
	rt       *registry.Runtime
	conn     *fakeConnector
	prompter *fakePrompter
	browser  *fakeBrowser
	out      *bytes.Buffer
}

func newEnv(t *testing.T) *env {
	t.Helper()
	cfg, err := config.Load(filepath.Join(t.TempDir(), "chore.yaml"))
	require.NoError(t, err)

	e := &env{
		conn:     &fakeConnector{responses: map[string]response{}, missing: map[string]bool{}},
		prompter: &fakePrompter{},
		browser:  &fakeBrowser{},
		out:      &bytes.Buffer{},
	}
	e.rt = &registry.Runtime{
		Config:   cfg,
		Runner:   e.conn,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Prompter: e.prompter,
		Browser:  e.browser,
		Stdout:   e.out,
		Stderr:   e.out,
	}
	return e
}

func (e *env) write(t *testing.T, rel, content string) string {
	t.Helper()
	path := e.rt.Path(rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func (e *env) versionFile(t *testing.T, content string) string {
	return e.write(t, e.rt.Config.Release.VersionFile, content)
}

func TestRegister(t *testing.T) {
	reg := registry.New()
	require.NoError(t, Register(reg, "1.0.0"))

	for name, want := range map[string]string{
		"notebooks":      "notebook",
		"share_notebook": "share-notebook",
		"tests":          "test",
		"lint":           "flake",
		"update_version": "update-version",
		"browse-cov":     "browse-cov",
		"profile":        "profile",
	} {
		task, err := reg.Lookup(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, task.Name)
	}

	assert.Error(t, Register(reg, "1.0.0"), "registering twice must fail")
}

func TestBinderURL(t *testing.T) {
	const tmpl = "https://mybinder.org/v2/gh/{org}/{name}/{branch}?filepath=notebooks"
	tests := []struct {
		remote  string
		want    string
		wantErr bool
	}{
		{"git@github.com:hms-dbmi/pystarter.git\n", "https://mybinder.org/v2/gh/hms-dbmi/pystarter/master?filepath=notebooks", false},
		{"https://github.com/hms-dbmi/pystarter", "https://mybinder.org/v2/gh/hms-dbmi/pystarter/master?filepath=notebooks", false},
		{"https://github.com/hms-dbmi/pystarter.git/", "https://mybinder.org/v2/gh/hms-dbmi/pystarter/master?filepath=notebooks", false},
		{"ssh://git@github.com/org/name", "https://mybinder.org/v2/gh/org/name/master?filepath=notebooks", false},
		{"pystarter", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.remote, func(t *testing.T) {
			got, err := BinderURL(tmpl, tt.remote, "master")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestShareNotebook(t *testing.T) {
	e := newEnv(t)
	e.conn.responses["git"] = response{stdout: "git@github.com:hms-dbmi/pystarter.git\n"}

	url, err := ShareNotebook(context.Background(), e.rt, ShareNotebookOptions{Branch: "dev"})
	require.NoError(t, err)

	assert.Equal(t, "https://mybinder.org/v2/gh/hms-dbmi/pystarter/dev?filepath=notebooks", url)
	assert.Equal(t, []string{url}, e.browser.opened)
	require.Len(t, e.conn.calls, 1)
	assert.Equal(t, []string{"git", "remote", "get-url", "origin"}, e.conn.calls[0].Argv)
	assert.True(t, e.conn.calls[0].Hide)
	assert.Contains(t, e.out.String(), "Notebook can be accessed from here "+url)
}

func TestShareNotebook_BadRemote(t *testing.T) {
	e := newEnv(t)
	e.conn.responses["git"] = response{stdout: "local-only\n"}

	_, err := ShareNotebook(context.Background(), e.rt, ShareNotebookOptions{Branch: "master"})
	assert.Error(t, err)
	assert.Empty(t, e.browser.opened)
}

func TestNotebook_UserAbortIsNormalExit(t *testing.T) {
	e := newEnv(t)
	e.conn.responses["jupyter"] = response{err: connectors.ErrUserAbort}

	require.NoError(t, Notebook(context.Background(), e.rt))

	// setup aborted, so the server never started
	require.Len(t, e.conn.calls, 1)
	inv := e.conn.calls[0]
	assert.Equal(t, e.rt.Path("notebooks"), inv.Dir)
	assert.Equal(t, e.rt.Config.Root+"/notebooks", inv.Env["JUPYTER_CONFIG_DIR"])
	assert.True(t, strings.HasPrefix(inv.Env["PYTHONPATH"], e.rt.Config.Root+"/"+e.rt.Config.Project+":"))
	assert.Contains(t, e.out.String(), "export BROWSER=")
}

func TestNotebook_ServerUsesPTY(t *testing.T) {
	e := newEnv(t)

	require.NoError(t, Notebook(context.Background(), e.rt))

	require.Len(t, e.conn.calls, 2)
	assert.False(t, e.conn.calls[0].PTY)
	assert.True(t, e.conn.calls[1].PTY)
	assert.Equal(t, "jupyter notebook --ip=*", e.conn.calls[1].Command)
}

func TestNotebook_FailurePropagates(t *testing.T) {
	e := newEnv(t)
	e.conn.responses["jupyter"] = response{exit: 1}

	err := Notebook(context.Background(), e.rt)
	assert.ErrorIs(t, err, connectors.ErrCommandFailed)
	assert.NotContains(t, e.out.String(), "export BROWSER=")
}

func TestTestOptionsArgs(t *testing.T) {
	assert.Empty(t, TestOptions{}.Args())
	assert.Equal(t, []string{"-k", "slow and db", "-f", "--lf"},
		TestOptions{K: "slow and db", Watch: true, LastFailing: true}.Args())
}

func TestTest(t *testing.T) {
	e := newEnv(t)

	require.NoError(t, Test(context.Background(), e.rt, TestOptions{K: "foo bar", LastFailing: true}))

	assert.Equal(t, []string{"flake8 .", "pytest -k 'foo bar' --lf"}, e.conn.commands())
	assert.True(t, e.conn.calls[0].Echo)
	assert.True(t, e.conn.calls[1].Warn)
	assert.Contains(t, e.out.String(), "flake8 passed!!!")
}

func TestTest_FailureExitsWithRunnerCode(t *testing.T) {
	e := newEnv(t)
	e.conn.responses["pytest"] = response{exit: 2}

	err := Test(context.Background(), e.rt, TestOptions{NoFlake: true})

	var exit *registry.ExitError
	require.ErrorAs(t, err, &exit)
	assert.Equal(t, 2, exit.Code)
	assert.Equal(t, []string{"pytest"}, e.conn.commands())
	assert.Contains(t, e.out.String(), "test failed exiting")
}

func TestTest_LintFailureStops(t *testing.T) {
	e := newEnv(t)
	e.conn.responses["flake8"] = response{exit: 1}

	err := Test(context.Background(), e.rt, TestOptions{})
	assert.ErrorIs(t, err, connectors.ErrCommandFailed)
	assert.Equal(t, []string{"flake8 ."}, e.conn.commands())
	assert.NotContains(t, e.out.String(), "passed")
}

func TestClean(t *testing.T) {
	e := newEnv(t)
	for _, rel := range []string{"build/lib/a.py", "dist/pkg.whl", "pkg.egg-info/PKG-INFO", "docs/_build/index.html", "docs/index.rst"} {
		e.write(t, rel, "x")
	}

	require.NoError(t, Clean(context.Background(), e.rt))

	for _, rel := range []string{"build", "dist", "pkg.egg-info", "docs/_build"} {
		assert.NoFileExists(t, e.rt.Path(rel))
		assert.NoDirExists(t, e.rt.Path(rel))
	}
	assert.FileExists(t, e.rt.Path("docs/index.rst"))
	assert.Contains(t, e.out.String(), "rm -rf docs/_build")
	assert.Contains(t, e.out.String(), "Cleaned up.")
	assert.Empty(t, e.conn.calls)
}

func TestClean_NothingToRemove(t *testing.T) {
	e := newEnv(t)
	assert.NoError(t, Clean(context.Background(), e.rt))
}

func TestUpdateVersion(t *testing.T) {
	e := newEnv(t)
	path := e.versionFile(t, "# generated\n__version__ = \"1.0.0\"\n")
	e.prompter.answer = " 1.2.0 \n"

	v, err := UpdateVersion(context.Background(), e.rt, UpdateVersionOptions{})
	require.NoError(t, err)
	assert.Equal(t, "1.2.0", v)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "# generated\n__version__ = \"1.2.0\"\n", string(data))

	assert.Len(t, e.prompter.prompts, 1)
	rel := e.rt.Config.Project + "/_version.py"
	assert.Equal(t, []string{"git add " + rel, "git commit -m 'version bump'"}, e.conn.commands())
	assert.Contains(t, e.out.String(), "Current version is 1.0.0")
	assert.Contains(t, e.out.String(), "version updated to 1.2.0")
}

func TestUpdateVersion_GivenVersionSkipsPrompt(t *testing.T) {
	e := newEnv(t)
	e.versionFile(t, "__version__ = '0.1'\n")

	v, err := UpdateVersion(context.Background(), e.rt, UpdateVersionOptions{Version: "0.2"})
	require.NoError(t, err)
	assert.Equal(t, "0.2", v)
	assert.Empty(t, e.prompter.prompts)
}

func TestUpdateVersion_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		answer  string
		prompt  error
		want    error
	}{
		{"empty file", "", "1.0.0", nil, versionfile.ErrEmptyFile},
		{"empty answer", "__version__ = \"1.0.0\"\n", "   ", nil, ErrEmptyVersion},
		{"aborted prompt", "__version__ = \"1.0.0\"\n", "", connectors.ErrUserAbort, connectors.ErrUserAbort},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			path := e.versionFile(t, tt.content)
			e.prompter.answer, e.prompter.err = tt.answer, tt.prompt

			_, err := UpdateVersion(context.Background(), e.rt, UpdateVersionOptions{})
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, e.conn.calls, "nothing may be committed")

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, tt.content, string(data))
		})
	}
}

func TestGitTag(t *testing.T) {
	e := newEnv(t)

	require.NoError(t, GitTag(context.Background(), e.rt, "v1.2.0", "new production release v1.2.0"))
	assert.Equal(t, []string{
		"git tag -a v1.2.0 -m 'new production release v1.2.0'",
		"git push --tags",
		"git push",
	}, e.conn.commands())
}

func TestDeploy(t *testing.T) {
	e := newEnv(t)
	e.versionFile(t, "__version__ = \"1.0.0\"\n")

	require.NoError(t, Deploy(context.Background(), e.rt, DeployOptions{Version: "1.1.0"}))

	rel := e.rt.Config.Project + "/_version.py"
	assert.Equal(t, []string{
		"flake8 .",
		"pytest",
		"git add " + rel,
		"git commit -m 'version bump'",
		"git tag -a 1.1.0 -m 'new production release 1.1.0'",
		"git push --tags",
		"git push",
	}, e.conn.commands())
	assert.Contains(t, e.out.String(), "production deployment of 1.1.0")
}

func TestDeploy_Local(t *testing.T) {
	e := newEnv(t)
	e.versionFile(t, "__version__ = \"1.0.0\"\n")

	require.NoError(t, Deploy(context.Background(), e.rt, DeployOptions{Version: "1.1.0", Local: true}))

	cmds := e.conn.commands()
	assert.Equal(t, []string{"python setup.py register sdist bdist_wheel", "twine upload dist/*"}, cmds[len(cmds)-2:])
}

func TestDeploy_FailingTestsStopRelease(t *testing.T) {
	e := newEnv(t)
	path := e.versionFile(t, "__version__ = \"1.0.0\"\n")
	e.conn.responses["pytest"] = response{exit: 1}

	err := Deploy(context.Background(), e.rt, DeployOptions{Version: "1.1.0"})

	var exit *registry.ExitError
	require.ErrorAs(t, err, &exit)
	assert.Equal(t, 1, exit.Code)
	assert.Equal(t, []string{"flake8 .", "pytest"}, e.conn.commands())

	v, err := versionfile.Read(path)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", v)
}

func TestPublish(t *testing.T) {
	tests := []struct {
		test bool
		want []string
	}{
		{false, []string{"python setup.py register sdist bdist_wheel", "twine upload dist/*"}},
		{true, []string{"python setup.py register -r test sdist bdist_wheel", "twine upload dist/* -r test"}},
	}
	for _, tt := range tests {
		e := newEnv(t)
		require.NoError(t, Publish(context.Background(), e.rt, PublishOptions{Test: tt.test}))
		assert.Equal(t, tt.want, e.conn.commands())
		for _, inv := range e.conn.calls {
			assert.True(t, inv.Echo)
		}
	}
}

func TestPublish_BuildFailureSkipsUpload(t *testing.T) {
	e := newEnv(t)
	e.conn.responses["python"] = response{exit: 1}

	assert.ErrorIs(t, Publish(context.Background(), e.rt, PublishOptions{}), connectors.ErrCommandFailed)
	assert.Len(t, e.conn.calls, 1)
}

func TestDocs(t *testing.T) {
	e := newEnv(t)
	e.write(t, "docs/_build/stale.html", "x")

	require.NoError(t, Docs(context.Background(), e.rt, DocsOptions{Clean: true, Browse: true}))

	assert.NoFileExists(t, e.rt.Path("docs/_build/stale.html"))
	assert.Equal(t, []string{"sphinx-build docs docs/_build"}, e.conn.commands())
	assert.True(t, e.conn.calls[0].Echo)
	assert.Equal(t, []string{filepath.Join(e.rt.Config.Root, "docs", "_build", "index.html")}, e.browser.opened)
}

func TestWatchDocs(t *testing.T) {
	e := newEnv(t)

	require.NoError(t, WatchDocs(context.Background(), e.rt))

	require.Len(t, e.conn.calls, 1)
	inv := e.conn.calls[0]
	assert.Equal(t, "sphinx-autobuild docs docs/_build --watch "+e.rt.Config.Project, inv.Command)
	assert.True(t, inv.PTY)
	assert.True(t, inv.Echo)
}

func TestWatchDocs_MissingWatcher(t *testing.T) {
	e := newEnv(t)
	e.conn.missing["sphinx-autobuild"] = true

	err := Docs(context.Background(), e.rt, DocsOptions{Watch: true})

	assert.ErrorIs(t, err, connectors.ErrMissingDependency)
	assert.Contains(t, err.Error(), "pip install sphinx-autobuild")
	assert.Equal(t, []string{"sphinx-build docs docs/_build"}, e.conn.commands())
}

func TestBrowseCov_SwallowsTestFailure(t *testing.T) {
	tests := []struct {
		name    string
		program string
	}{
		{"failing suite", "pytest"},
		{"failing lint", "flake8"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			e.conn.responses[tt.program] = response{exit: 1}

			require.NoError(t, BrowseCov(context.Background(), e.rt, BrowseCovOptions{}))
			assert.Equal(t, []string{filepath.Join(e.rt.Config.Root, "htmlcov", "index.html")}, e.browser.opened)
		})
	}
}

func TestBrowseCov_NoRun(t *testing.T) {
	e := newEnv(t)

	require.NoError(t, BrowseCov(context.Background(), e.rt, BrowseCovOptions{NoRun: true}))
	assert.Empty(t, e.conn.calls)
	assert.Len(t, e.browser.opened, 1)
}

func TestBrowseCov_AbortPropagates(t *testing.T) {
	e := newEnv(t)
	e.conn.responses["pytest"] = response{err: connectors.ErrUserAbort}

	err := BrowseCov(context.Background(), e.rt, BrowseCovOptions{})
	assert.ErrorIs(t, err, connectors.ErrUserAbort)
	assert.Empty(t, e.browser.opened)
}

func TestLoc(t *testing.T) {
	e := newEnv(t)
	e.write(t, "pkg/a.py", "a\nb\nc\n")
	e.write(t, "pkg/b.py", "a\n")
	e.write(t, "docs/conf.py", "a\nb\n")

	report, err := Loc(context.Background(), e.rt)
	require.NoError(t, err)

	assert.Equal(t, 4, report.Total)
	assert.Contains(t, e.out.String(), "./pkg/a.py")
	assert.NotContains(t, e.out.String(), "conf.py")
}

func TestProfile_BuiltinTarget(t *testing.T) {
	e := newEnv(t)
	e.versionFile(t, "__version__ = \"3.1.4\"\n")
	out := filepath.Join(t.TempDir(), "cpu.pprof")

	_, err := Profile(context.Background(), e.rt, ProfileOptions{Module: "version", Method: "read", Filename: out})
	require.NoError(t, err)

	assert.Contains(t, e.out.String(), "3.1.4")
	assert.Contains(t, e.out.String(), "version.read finished in")
	assert.FileExists(t, out)
}

func TestProfile_StarlarkModule(t *testing.T) {
	e := newEnv(t)
	e.write(t, "bench/work.star", "def answer():\n    return 6 * 7\n")
	e.rt.Config.Profile.Modules["bench"] = "bench/work.star"

	targets, err := ProfileTargets(e.rt)
	require.NoError(t, err)
	assert.Equal(t, []string{"bench.answer", "loc.count", "version.read"}, targets.Names())

	_, err = Profile(context.Background(), e.rt, ProfileOptions{Module: "bench", Method: "answer"})
	require.NoError(t, err)
	assert.Contains(t, e.out.String(), "42")
}

func TestProfile_UnknownTarget(t *testing.T) {
	e := newEnv(t)

	_, err := Profile(context.Background(), e.rt, ProfileOptions{Module: "nope", Method: "run"})
	assert.ErrorIs(t, err, profiling.ErrTargetNotFound)
	assert.Contains(t, err.Error(), "loc.count")
}

func newHistory(t *testing.T, e *env) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	e.rt.History = s
	return s
}

func TestHistory(t *testing.T) {
	e := newEnv(t)
	s := newHistory(t, e)

	run, err := s.CreateTaskRun("flake", map[string]any{"k": "fast"}, "")
	require.NoError(t, err)
	cmd, err := s.CreateCommandRun(run.ID, "flake8 .", "")
	require.NoError(t, err)
	require.NoError(t, s.FinishCommandRun(cmd.ID, 0, "", ""))
	require.NoError(t, s.FinishTaskRun(run.ID, models.RunStatusSucceeded, ""))

	require.NoError(t, History(context.Background(), e.rt, HistoryOptions{Limit: 20}))
	assert.Contains(t, e.out.String(), run.ID[:8])
	assert.Contains(t, e.out.String(), "flake")
	assert.Contains(t, e.out.String(), "succeeded")

	e.out.Reset()
	require.NoError(t, History(context.Background(), e.rt, HistoryOptions{Show: run.ID[:8]}))
	assert.Contains(t, e.out.String(), run.ID)
	assert.Contains(t, e.out.String(), "k=fast")
	assert.Contains(t, e.out.String(), "flake8 .")
}

func TestHistory_Empty(t *testing.T) {
	e := newEnv(t)
	newHistory(t, e)

	require.NoError(t, History(context.Background(), e.rt, HistoryOptions{}))
	assert.Contains(t, e.out.String(), "No task runs recorded.")

	assert.Error(t, History(context.Background(), e.rt, HistoryOptions{Show: "deadbeef"}))
}

func TestHistory_Disabled(t *testing.T) {
	e := newEnv(t)
	assert.ErrorIs(t, History(context.Background(), e.rt, HistoryOptions{}), ErrHistoryDisabled)
}

func TestTools(t *testing.T) {
	e := newEnv(t)

	programs := map[string]bool{}
	for _, tool := range Tools(e.rt) {
		programs[tool.Program] = true
	}
	for _, want := range []string{"git", "jupyter", "pytest", "flake8", "sphinx-build", "sphinx-autobuild", "python", "twine"} {
		assert.True(t, programs[want], want)
	}
}

func TestVersion(t *testing.T) {
	e := newEnv(t)

	require.NoError(t, Version(context.Background(), e.rt, "1.4.0"))
	assert.True(t, strings.HasPrefix(e.out.String(), "chore version 1.4.0\n"))
}

package reporganizer

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/himanishpuri/RepOrganizer/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testLog = "Alice,Ragna-C,2,Bob,Vsion-M,1,1700000100\n" +
	"Alice,Akiha-F,0,Carol,Neco-H,2,1700000500\n" +
	"Alice,Ragna-C,2,Bob,Vsion-M,1,1700001000\n"

type fixture struct {
	t       *testing.T
	gameDir string
	logBuf  *bytes.Buffer
}

func newFixture(t *testing.T, resultsLog string) *fixture {
	t.Helper()
	dir := t.TempDir()
	for _, name := range DefaultMarkerFiles {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	require.NoError(t, os.MkdirAll(filepath.Join(dir, DefaultReplayDir), 0o755))
	if resultsLog != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultResultsFile), []byte(resultsLog), 0o644))
	}
	return &fixture{t: t, gameDir: dir, logBuf: &bytes.Buffer{}}
}

// replayName renders a replay file name for a unix timestamp in UTC.
func replayName(prefix string, ts int64) string {
	return prefix + "_" + time.Unix(ts, 0).UTC().Format("060102150405") + ".rep"
}

func (f *fixture) addReplay(name string) string {
	f.t.Helper()
	p := filepath.Join(f.gameDir, DefaultReplayDir, name)
	require.NoError(f.t, os.WriteFile(p, []byte(name), 0o644))
	return p
}

func (f *fixture) service(opts ...Option) Service {
	f.t.Helper()
	cfg := logger.DefaultConfig()
	cfg.Colorize = false
	cfg.Level = logger.DEBUG
	cfg.Output = f.logBuf

	base := []Option{
		WithGameDir(f.gameDir),
		WithLocation(time.UTC),
		WithLogger(logger.New(cfg)),
	}
	svc, err := NewService(append(base, opts...)...)
	require.NoError(f.t, err)
	f.t.Cleanup(func() { svc.Close() })
	return svc
}

func (f *fixture) organized(parts ...string) string {
	return filepath.Join(append([]string{f.gameDir, DefaultReplayDir, DefaultOutputDir}, parts...)...)
}

func TestOrganize(t *testing.T) {
	f := newFixture(t, testLog)
	f.addReplay(replayName("a", 1700000105))
	f.addReplay(replayName("b", 1700000520))
	f.addReplay("nodate.rep")
	f.addReplay(replayName("c", 1700003000))
	f.addReplay("notes.txt")

	svc := f.service()
	summary, err := svc.Organize(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, summary.Scanned)
	assert.Equal(t, 2, summary.Moved)
	assert.Equal(t, 1, summary.Unparsable)
	assert.Equal(t, 1, summary.Unmatched)
	assert.Equal(t, 2, summary.Skipped())
	assert.NotEmpty(t, summary.RunID)

	assert.FileExists(t, f.organized("Bob", "2023-11-14-22-15-00,Alice,Ragna-C,2,Bob,Vsion-M,1.rep"))
	assert.FileExists(t, f.organized("Carol", "2023-11-14-22-21-40,Alice,Akiha-F,0,Carol,Neco-H,2.rep"))

	// Skipped files stay where they were.
	assert.FileExists(t, filepath.Join(f.gameDir, DefaultReplayDir, "nodate.rep"))
	assert.FileExists(t, filepath.Join(f.gameDir, DefaultReplayDir, replayName("c", 1700003000)))
	assert.NoFileExists(t, filepath.Join(f.gameDir, DefaultReplayDir, replayName("a", 1700000105)))

	logs := f.logBuf.String()
	assert.Contains(t, logs, "Couldn't get a valid date from file nodate.rep")
	assert.Contains(t, logs, "Couldn't find an entry in results.csv corresponding to "+replayName("c", 1700003000))

	moves, err := svc.History(0)
	require.NoError(t, err)
	require.Len(t, moves, 2)
	for _, m := range moves {
		assert.Equal(t, summary.RunID, m.RunID)
		assert.False(t, m.Undone)
	}
}

func TestOrganizeTwiceIsIdempotent(t *testing.T) {
	f := newFixture(t, testLog)
	f.addReplay(replayName("a", 1700000105))
	svc := f.service()

	first, err := svc.Organize(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, first.Moved)

	before := listTree(t, f.organized())

	second, err := svc.Organize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, second.Moved)
	assert.Equal(t, 0, second.Scanned)
	assert.Equal(t, before, listTree(t, f.organized()))
	assert.Contains(t, f.logBuf.String(), "No replay files were found")
}

func listTree(t *testing.T, root string) []string {
	t.Helper()
	var out []string
	err := filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(root, p)
		out = append(out, rel)
		return nil
	})
	require.NoError(t, err)
	return out
}

func TestOrganizeMalformedLogMovesNothing(t *testing.T) {
	f := newFixture(t, "Alice,Ragna-C,2,Bob,Vsion-M,1,1700000100\n"+
		"Alice,Ragna-C,2,Bob,Vsion-M,1700000200\n"+
		"Alice,Ragna-C,9,Bob,Vsion-M,1,1700000300\n")
	src := f.addReplay(replayName("a", 1700000105))

	summary, err := f.service().Organize(context.Background())
	require.Error(t, err)
	assert.Nil(t, summary)

	var malformed MalformedLogErrors
	require.True(t, errors.As(err, &malformed))
	require.Len(t, malformed, 2)
	assert.Equal(t, 2, malformed[0].Line)
	assert.Equal(t, 3, malformed[1].Line)

	assert.FileExists(t, src)
	assert.NoDirExists(t, f.organized())
}

func TestOrganizeCollectsAllPreconditionFailures(t *testing.T) {
	f := newFixture(t, "")
	require.NoError(t, os.Remove(filepath.Join(f.gameDir, "MBAA.exe")))
	require.NoError(t, os.Remove(filepath.Join(f.gameDir, DefaultReplayDir)))

	_, err := f.service(WithoutHistory()).Organize(context.Background())
	require.Error(t, err)

	leaves := Flatten(err)
	require.Len(t, leaves, 3)

	var env *EnvironmentPreconditionError
	require.True(t, errors.As(leaves[0], &env))
	assert.Equal(t, filepath.Join(f.gameDir, "MBAA.exe"), env.Path)
	require.True(t, errors.As(leaves[1], &env))
	assert.Equal(t, filepath.Join(f.gameDir, DefaultReplayDir), env.Path)
	assert.ErrorIs(t, leaves[2], ErrLogNotFound)
}

func TestOrganizeEmptyLog(t *testing.T) {
	f := newFixture(t, "")
	require.NoError(t, os.WriteFile(filepath.Join(f.gameDir, DefaultResultsFile), nil, 0o644))
	f.addReplay(replayName("a", 1700000105))

	_, err := f.service().Organize(context.Background())
	assert.ErrorIs(t, err, ErrEmptyLog)
}

func TestOrganizeDryRun(t *testing.T) {
	f := newFixture(t, testLog)
	src := f.addReplay(replayName("a", 1700000105))
	f.addReplay(replayName("b", 1700000110))

	summary, err := f.service(WithDryRun(true)).Organize(context.Background())
	require.NoError(t, err)

	assert.True(t, summary.DryRun)
	assert.Equal(t, 2, summary.Moved)
	require.Len(t, summary.Moves, 2)
	assert.Equal(t, f.organized("Bob", "2023-11-14-22-15-00,Alice,Ragna-C,2,Bob,Vsion-M,1.rep"), summary.Moves[0].Destination)
	assert.Equal(t, f.organized("Bob", "2023-11-14-22-15-00,Alice,Ragna-C,2,Bob,Vsion-M,1 (2).rep"), summary.Moves[1].Destination)

	assert.FileExists(t, src)
	assert.NoDirExists(t, f.organized())
	assert.NoFileExists(t, filepath.Join(f.gameDir, DefaultDBFile))
	assert.Contains(t, f.logBuf.String(), "Would move")
}

func TestOrganizeDryRunReadsExistingHistory(t *testing.T) {
	f := newFixture(t, testLog)
	f.addReplay(replayName("a", 1700000105))
	svc := f.service()
	_, err := svc.Organize(context.Background())
	require.NoError(t, err)
	require.NoError(t, svc.Close())

	dbFile := filepath.Join(f.gameDir, DefaultDBFile)
	before, err := os.ReadFile(dbFile)
	require.NoError(t, err)

	b := f.addReplay(replayName("b", 1700000120))
	summary, err := f.service(WithDryRun(true)).Organize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Duplicates)
	assert.FileExists(t, b)

	after, err := os.ReadFile(dbFile)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestOrganizeDuplicateCorrelation(t *testing.T) {
	f := newFixture(t, testLog)
	f.addReplay(replayName("a", 1700000105))
	f.addReplay(replayName("b", 1700000110))

	summary, err := f.service().Organize(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Moved)
	assert.Equal(t, 1, summary.Duplicates)
	assert.FileExists(t, f.organized("Bob", "2023-11-14-22-15-00,Alice,Ragna-C,2,Bob,Vsion-M,1.rep"))
	assert.FileExists(t, f.organized("Bob", "2023-11-14-22-15-00,Alice,Ragna-C,2,Bob,Vsion-M,1 (2).rep"))
	assert.Contains(t, f.logBuf.String(), "already used")
}

func TestOrganizeDuplicateAcrossRuns(t *testing.T) {
	f := newFixture(t, testLog)
	f.addReplay(replayName("a", 1700000105))
	svc := f.service()

	_, err := svc.Organize(context.Background())
	require.NoError(t, err)

	f.addReplay(replayName("b", 1700000120))
	summary, err := svc.Organize(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Moved)
	assert.Equal(t, 1, summary.Duplicates)
}

func TestOrganizeCanceled(t *testing.T) {
	f := newFixture(t, testLog)
	src := f.addReplay(replayName("a", 1700000105))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := f.service().Organize(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, summary)
	assert.Equal(t, 0, summary.Moved)
	assert.FileExists(t, src)
}

func TestOrganizeCustomTolerance(t *testing.T) {
	f := newFixture(t, testLog)
	f.addReplay(replayName("a", 1700000160))

	summary, err := f.service(WithTolerance(90 * time.Second)).Organize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Moved)
}

func TestMatch(t *testing.T) {
	f := newFixture(t, testLog)
	name := replayName("a", 1700000105)
	f.addReplay(name)
	svc := f.service()

	corr, err := svc.Match(context.Background(), name)
	require.NoError(t, err)
	assert.Equal(t, "Bob", corr.Record.P2Name)
	assert.Equal(t, int64(5), corr.SkewSeconds)
	assert.Equal(t, 1, corr.Record.Line)
	assert.Equal(t, f.organized("Bob", "2023-11-14-22-15-00,Alice,Ragna-C,2,Bob,Vsion-M,1.rep"), corr.Destination)

	// Match never moves anything.
	assert.FileExists(t, filepath.Join(f.gameDir, DefaultReplayDir, name))

	_, err = svc.Match(context.Background(), replayName("z", 1700000050))
	assert.ErrorIs(t, err, ErrNoCorrelation)

	_, err = svc.Match(context.Background(), "garbage.rep")
	var unparsable *UnparsableFilenameError
	assert.True(t, errors.As(err, &unparsable))
}

func TestUndo(t *testing.T) {
	f := newFixture(t, testLog)
	a := f.addReplay(replayName("a", 1700000105))
	b := f.addReplay(replayName("b", 1700000520))
	svc := f.service()

	_, err := svc.Organize(context.Background())
	require.NoError(t, err)
	assert.NoFileExists(t, a)

	restored, err := svc.Undo(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 2, restored)

	assert.FileExists(t, a)
	assert.FileExists(t, b)
	assert.NoDirExists(t, f.organized("Bob"))
	assert.NoDirExists(t, f.organized("Carol"))

	moves, err := svc.History(0)
	require.NoError(t, err)
	for _, m := range moves {
		assert.True(t, m.Undone)
	}

	_, err = svc.Undo(context.Background(), "")
	assert.ErrorIs(t, err, ErrNoRuns)
}

func TestUndoUnknownRun(t *testing.T) {
	f := newFixture(t, testLog)
	_, err := f.service().Undo(context.Background(), "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, ErrNoRuns)
}

func TestHistoryDisabled(t *testing.T) {
	f := newFixture(t, testLog)
	f.addReplay(replayName("a", 1700000105))
	svc := f.service(WithoutHistory())

	summary, err := svc.Organize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Moved)

	_, err = svc.History(10)
	assert.ErrorIs(t, err, ErrHistoryDisabled)
	_, err = svc.Undo(context.Background(), "")
	assert.ErrorIs(t, err, ErrHistoryDisabled)

	assert.NoFileExists(t, filepath.Join(f.gameDir, DefaultDBFile))
}

func TestFatalAbortLeavesGameDirUntouched(t *testing.T) {
	dir := t.TempDir()
	f := &fixture{t: t, gameDir: dir, logBuf: &bytes.Buffer{}}
	svc := f.service()

	_, err := svc.Organize(context.Background())
	require.Error(t, err)

	moves, err := svc.History(0)
	require.NoError(t, err)
	assert.Empty(t, moves)

	_, err = svc.Undo(context.Background(), "")
	assert.ErrorIs(t, err, ErrNoRuns)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUndoFromAnotherWorkingDirectory(t *testing.T) {
	f := newFixture(t, testLog)
	a := f.addReplay(replayName("a", 1700000105))

	chdir(t, f.gameDir)
	svc := f.service(WithGameDir("."))
	summary, err := svc.Organize(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, summary.Moved)
	assert.True(t, filepath.IsAbs(summary.Moves[0].Source))
	assert.True(t, filepath.IsAbs(summary.Moves[0].Destination))
	require.NoError(t, svc.Close())

	chdir(t, filepath.Dir(f.gameDir))
	restored, err := f.service(WithGameDir(filepath.Base(f.gameDir))).Undo(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 1, restored)
	assert.FileExists(t, a)
}

func TestNewServiceMissingGameDir(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope")
	_, err := NewService(WithGameDir(missing))

	var env *EnvironmentPreconditionError
	require.True(t, errors.As(err, &env))
	assert.NoDirExists(t, missing)
}

func TestFlatten(t *testing.T) {
	a, b, c := errors.New("a"), errors.New("b"), errors.New("c")
	joined := errors.Join(a, errors.Join(b, c))

	got := Flatten(joined)
	require.Len(t, got, 3)
	var msgs []string
	for _, e := range got {
		msgs = append(msgs, e.Error())
	}
	assert.Equal(t, "a b c", strings.Join(msgs, " "))
	assert.Nil(t, Flatten(nil))
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}

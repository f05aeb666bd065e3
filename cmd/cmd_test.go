package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felipestanzani/beyondsight/internal/config"
	bserrors "github.com/felipestanzani/beyondsight/internal/errors"
	"github.com/felipestanzani/beyondsight/internal/impact"
	"github.com/felipestanzani/beyondsight/internal/indexer"
	"github.com/felipestanzani/beyondsight/internal/logging"
	"github.com/felipestanzani/beyondsight/internal/storage"
)

const bankSource = `package bank

type Account struct {
	Balance int
}

func (a *Account) Deposit(n int) {
	a.Balance += n
}

func (a *Account) Get() int {
	return a.Balance
}

func Open() *Account {
	a := &Account{}
	a.Deposit(10)
	return a
}
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func setupProject(t *testing.T) (project, db string) {
	t.Helper()
	work := t.TempDir()
	t.Chdir(work)

	project = filepath.Join(work, "bank")
	require.NoError(t, os.MkdirAll(project, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(project, "go.mod"), []byte("module example.com/bank\n\ngo 1.22\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(project, "bank.go"), []byte(bankSource), 0o644))
	return project, filepath.Join(work, "graph.db")
}

func TestAnalyzeThenQuery(t *testing.T) {
	project, db := setupProject(t)

	out, err := execute(t, "analyze", project, "--db", db, "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "COMPLETED")
	assert.Contains(t, out, "Saved to: "+db)
	assert.NotContains(t, out, "(0 nodes")

	out, err = execute(t, "writers", "Balance", "--db", db, "--format", "json", "--log-level", "error")
	require.NoError(t, err)

	var list impact.MethodList
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	var sigs []string
	for _, m := range list.Methods {
		sigs = append(sigs, m.Signature)
	}
	assert.Equal(t, []string{"Deposit(int)"}, sigs)

	out, err = execute(t, "readers", "Balance", "--db", db, "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "Deposit(int)")
	assert.Contains(t, out, "Get()")

	out, err = execute(t, "upstream", "Deposit", "--db", db, "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "Open()")
}

func TestAnalyzeFailsWhenGraphIsNotSaved(t *testing.T) {
	project, db := setupProject(t)
	cfg = config.DefaultConfig()
	cfg.Database.Path = db
	logger = logging.Discard()

	a, err := openApp(t.Context())
	require.NoError(t, err)
	require.NoError(t, a.db.Close())

	status, err := a.indexer.Run(t.Context(), project)
	require.Error(t, err)
	assert.True(t, bserrors.HasCode(err, bserrors.Internal))
	assert.Equal(t, indexer.StateCompleted, status.State)
	assert.NotEmpty(t, status.PersistError)

	stored, err := storage.Open(db)
	require.NoError(t, err)
	defer stored.Close()
	g, err := stored.Load(t.Context())
	require.NoError(t, err)
	assert.Zero(t, g.NodeCount())
}

func TestQueryUnknownField(t *testing.T) {
	project, db := setupProject(t)

	_, err := execute(t, "analyze", project, "--db", db, "--log-level", "error")
	require.NoError(t, err)

	_, err = execute(t, "field", "Account", "missing", "--db", db, "--log-level", "error")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NOT_FOUND")
}

func TestUnknownFormat(t *testing.T) {
	_, db := setupProject(t)

	_, err := execute(t, "readers", "Balance", "--db", db, "--format", "yaml", "--log-level", "error")
	require.Error(t, err)
}

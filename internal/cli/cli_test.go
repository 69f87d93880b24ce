package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/rpattn/enghistory/pkg/history"
)

const jsonSnapshots = `[
	{"staticId": "r-1", "updatedAt": "2024-03-01T08:00:00Z", "status": "open", "syncedAt": "a"},
	{"staticId": "r-1", "updatedAt": "2024-03-01T10:00:00Z", "status": "financed", "syncedAt": "b"}
]`

const yamlSnapshots = `
- staticId: r-1
  updatedAt: "2024-03-01T08:00:00Z"
  amount: 100
  buyer:
    name: Acme
- staticId: r-1
  updatedAt: "2024-03-01T10:00:00Z"
  amount: 250
  buyer:
    name: Acme
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand("1.2.3")
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestDiffJSON(t *testing.T) {
	path := writeFile(t, "snapshots.json", jsonSnapshots)

	out, err := execute(t, "", "diff", path, "--ignore", "syncedAt")
	require.NoError(t, err)

	var record history.Record
	require.NoError(t, json.Unmarshal([]byte(out), &record))
	assert.Equal(t, "r-1", record.ID)
	assert.NotContains(t, record.HistoryEntry, "syncedAt")
	require.Len(t, record.HistoryEntry["status"].Changes, 2)
	assert.Equal(t, "financed", record.HistoryEntry["status"].Changes[0].Value)
	assert.Equal(t, "2024-03-01T10:00:00Z", record.HistoryEntry["status"].Changes[0].UpdatedAt)
}

func TestDiffYAMLTable(t *testing.T) {
	path := writeFile(t, "snapshots.yaml", yamlSnapshots)

	out, err := execute(t, "", "diff", path, "--format", "table")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "PATH"))
	assert.Contains(t, lines[1], "amount")
	assert.Contains(t, lines[1], "250")
	assert.Contains(t, lines[2], "100")
	assert.NotContains(t, out, "buyer")
}

func TestDiffFromStdin(t *testing.T) {
	out, err := execute(t, jsonSnapshots, "diff", "-", "-f", "table")
	require.NoError(t, err)
	assert.Contains(t, out, "status")
	assert.Contains(t, out, "syncedAt")
}

func TestDiffWithoutChanges(t *testing.T) {
	path := writeFile(t, "same.json", `[{"v": 1}, {"v": 1}]`)

	out, err := execute(t, "", "diff", path)
	require.NoError(t, err)
	assert.Equal(t, "null\n", out)

	out, err = execute(t, "", "diff", path, "--format", "table")
	require.NoError(t, err)
	assert.Equal(t, "no changes\n", out)
}

func TestDiffXLSXRequiresOut(t *testing.T) {
	path := writeFile(t, "snapshots.json", jsonSnapshots)

	_, err := execute(t, "", "diff", path, "--format", "xlsx")
	require.Error(t, err)

	target := filepath.Join(t.TempDir(), "history.xlsx")
	_, err = execute(t, "", "diff", path, "--format", "xlsx", "--out", target)
	require.NoError(t, err)

	f, err := excelize.OpenFile(target)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	rows, err := f.GetRows("History")
	require.NoError(t, err)
	assert.Len(t, rows, 5)
}

func TestDiffRejectsBadInput(t *testing.T) {
	path := writeFile(t, "broken.json", `{"not": "a list"}`)
	_, err := execute(t, "", "diff", path)
	assert.ErrorContains(t, err, "invalid json snapshots")

	_, err = execute(t, "", "diff", filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorContains(t, err, "failed to read snapshots")

	_, err = execute(t, "", "diff", writeFile(t, "ok.json", jsonSnapshots), "--format", "csv")
	assert.ErrorContains(t, err, "unsupported format")
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "historyctl 1.2.3\n", out)
}

package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeEchoConfig writes a config that points every reviewer at /bin/echo
// with a canned verdict and uses a throwaway bank database.
func writeEchoConfig(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	verdict := `{"vote": "PASS", "score": 90, "reasoning": "ok", "issues": [], "suggestions": []}`
	content := fmt.Sprintf(`
[executors.codex]
command = "echo"
args = ['%[1]s']

[executors.gemini]
command = "echo"
args = ['%[1]s']

[executors.qwen]
command = "echo"
args = ['%[1]s']

[reasoning]
db_path = "%s"
`, verdict, filepath.Join(dir, "bank.db"))

	path := filepath.Join(dir, "tetrad.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestRootCommandSubcommands(t *testing.T) {
	root := NewRootCommand()

	var names []string
	for _, sub := range root.Commands() {
		names = append(names, sub.Name())
	}
	assert.Contains(t, names, "serve")
	assert.Contains(t, names, "evaluate")
	assert.Contains(t, names, "status")
	assert.Contains(t, names, "knowledge")
}

func TestEvaluateCommand(t *testing.T) {
	cfgPath := writeEchoConfig(t)

	source := filepath.Join(t.TempDir(), "main.rs")
	require.NoError(t, os.WriteFile(source, []byte("fn main() {}\n"), 0644))

	out, err := runCommand(t, "evaluate", source, "--config", cfgPath, "--language", "rust")
	require.NoError(t, err)
	assert.Contains(t, out, `"decision": "PASS"`)
	assert.Contains(t, out, `"consensus_achieved": true`)
}

func TestEvaluateCommandRejectsBadKind(t *testing.T) {
	cfgPath := writeEchoConfig(t)
	source := filepath.Join(t.TempDir(), "main.go")
	require.NoError(t, os.WriteFile(source, []byte("func main() {}\n"), 0644))

	_, err := runCommand(t, "evaluate", source, "--config", cfgPath, "--kind", "poetry")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid kind")
}

func TestStatusCommandJSON(t *testing.T) {
	cfgPath := writeEchoConfig(t)

	out, err := runCommand(t, "status", "--config", cfgPath, "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"reviewers"`)
	assert.Contains(t, out, `"echo"`)
}

func TestKnowledgeExportImport(t *testing.T) {
	cfgPath := writeEchoConfig(t)
	snapshot := filepath.Join(t.TempDir(), "knowledge.json")

	// Learn one pattern first so the snapshot is non-trivial.
	source := filepath.Join(t.TempDir(), "main.rs")
	require.NoError(t, os.WriteFile(source, []byte("fn main() {}\n"), 0644))
	_, err := runCommand(t, "evaluate", source, "--config", cfgPath, "--language", "rust")
	require.NoError(t, err)

	out, err := runCommand(t, "knowledge", "export", snapshot, "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Exported")

	out, err = runCommand(t, "knowledge", "import", snapshot, "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "skipped 1")

	out, err = runCommand(t, "knowledge", "show", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "patterns: 1")
}

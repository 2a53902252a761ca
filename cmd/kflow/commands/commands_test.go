package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alecthomas/assert/v2"
)

const averageProgram = `{
	"title": "average",
	"operators": [
		{"id": "in", "type": "Input"},
		{"id": "avg", "type": "MovingAverage", "window_size": 2}
	],
	"connections": [{"from": "in", "to": "avg"}],
	"entryOperator": "in",
	"output": {"avg": ["o1"]}
}`

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand("test")
	cmd.SetArgs(append(args, "--log-level", "error"))
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	assert.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestValidateCommand(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		out, err := execute(t, "", "validate", writeFile(t, "p.json", averageProgram))
		assert.NoError(t, err)
		assert.Equal(t, "ok\n", out)
	})

	t.Run("reports findings", func(t *testing.T) {
		bad := strings.Replace(averageProgram, `"to": "avg"`, `"to": "ghost"`, 1)
		out, err := execute(t, "", "validate", writeFile(t, "p.json", bad))
		assert.IsError(t, err, errInvalid)
		assert.Contains(t, out, "connections[0].to")
	})

	t.Run("operator", func(t *testing.T) {
		out, err := execute(t, "", "validate", "--operator", writeFile(t, "op.json", `{"id": "x", "type": "Scale", "value": 2}`))
		assert.NoError(t, err)
		assert.Equal(t, "ok\n", out)
	})
}

func TestTypesCommand(t *testing.T) {
	out, err := execute(t, "", "types")
	assert.NoError(t, err)
	assert.Contains(t, out, "MovingAverage\n")
	assert.Contains(t, out, "Input\n")
}

func TestRunCommand(t *testing.T) {
	program := writeFile(t, "p.json", averageProgram)

	t.Run("prints filtered outputs", func(t *testing.T) {
		out, err := execute(t, "# time,port,value\n1,,2\n2,,4\n3,i1,8\n", "run", program)
		assert.NoError(t, err)
		assert.Equal(t,
			`{"operator":"avg","port":"o1","message":{"time":2,"data":3}}`+"\n"+
				`{"operator":"avg","port":"o1","message":{"time":3,"data":6}}`+"\n",
			out)
	})

	t.Run("bad row", func(t *testing.T) {
		_, err := execute(t, "1,,2\n2,,x\n", "run", program)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "line 2")
	})

	t.Run("unknown port", func(t *testing.T) {
		_, err := execute(t, "1,i7,2\n", "run", program)
		assert.Error(t, err)
	})

	t.Run("state survives save and restore", func(t *testing.T) {
		state := filepath.Join(t.TempDir(), "state.snap")

		out, err := execute(t, "1,,2\n", "run", program, "--save", state, "--restore", state)
		assert.NoError(t, err)
		assert.Equal(t, "", out)

		out, err = execute(t, "2,,4\n", "run", program, "--save", state, "--restore", state)
		assert.NoError(t, err)
		assert.Equal(t, `{"operator":"avg","port":"o1","message":{"time":2,"data":3}}`+"\n", out)
	})
}

func TestSnapshotCommand(t *testing.T) {
	program := writeFile(t, "p.json", averageProgram)
	state := filepath.Join(t.TempDir(), "state.snap")
	_, err := execute(t, "1,,2\n", "run", program, "--save", state)
	assert.NoError(t, err)

	for _, kind := range []string{"file", "pebble", "sqlite"} {
		t.Run(kind, func(t *testing.T) {
			store := kind + ":" + filepath.Join(t.TempDir(), "store")

			_, err := execute(t, "", "snapshot", "--store", store, "import", "p1", state)
			assert.NoError(t, err)

			out, err := execute(t, "", "snapshot", "--store", store, "list")
			assert.NoError(t, err)
			assert.Equal(t, "p1\n", out)

			out, err = execute(t, "", "snapshot", "--store", store, "inspect", "p1")
			assert.NoError(t, err)
			assert.Contains(t, out, "title:     average")
			assert.Contains(t, out, "operator:  avg (MovingAverage)")

			exported := filepath.Join(t.TempDir(), "exported.snap")
			_, err = execute(t, "", "snapshot", "--store", store, "export", "p1", exported)
			assert.NoError(t, err)
			out, err = execute(t, "2,,4\n", "run", program, "--restore", exported)
			assert.NoError(t, err)
			assert.Equal(t, `{"operator":"avg","port":"o1","message":{"time":2,"data":3}}`+"\n", out)

			_, err = execute(t, "", "snapshot", "--store", store, "delete", "p1")
			assert.NoError(t, err)
			out, err = execute(t, "", "snapshot", "--store", store, "list")
			assert.NoError(t, err)
			assert.Equal(t, "", out)
		})
	}

	t.Run("unknown store kind", func(t *testing.T) {
		_, err := execute(t, "", "snapshot", "--store", "s3:bucket", "list")
		assert.Error(t, err)
	})
}

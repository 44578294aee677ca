package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) string {
	t.Setenv("SIFQL_LOG_LEVEL", "ERROR")
	out := new(bytes.Buffer)
	rootCmd.SetOut(out)
	rootCmd.SetArgs(args)
	require.Nil(t, rootCmd.Execute())
	return out.String()
}

func writeCrew(t *testing.T) string {
	path := filepath.Join(t.TempDir(), "crew.json")
	data := `{"name":"Arthur","id":4,"details":{"age":38}}` + "\n" +
		`{"id":5,"name":"Trillian","details":{"age":33}}` + "\n"
	require.Nil(t, os.WriteFile(path, []byte(data), 0644))
	return path
}

func TestCollectCommand(t *testing.T) {
	out := execute(t, "collect", "-c", "name", "-c", "details.age:integer", "file://"+writeCrew(t))
	require.Contains(t, out, "details.age")
	require.Contains(t, out, "Arthur")
	require.Contains(t, out, "Trillian")
	require.Contains(t, out, "(2 rows in")
}

func TestCollectCountCommand(t *testing.T) {
	out := execute(t, "collect", "--count", writeCrew(t))
	require.Contains(t, out, "count(*)")
	require.Contains(t, out, "(1 row in")
}

func TestNodeCommand(t *testing.T) {
	out := execute(t, "node", "-c", "id,process.pid", "--node-id", "cli-node")
	require.Contains(t, out, "cli-node")
}

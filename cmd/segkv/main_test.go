package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scenario = `PUT 10 AAA
PUT 5 BBB
PUT 20 CCC
GET 5
GET 7
SCAN 5 20
`

// runApp runs the CLI against a local store in dir and returns stdout.
func runApp(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()

	var stdout bytes.Buffer
	app := newApp()
	app.Writer = &stdout
	app.ErrWriter = io.Discard

	argv := append([]string{"segkv", "--dir", dir, "--filter-bits", "65536", "--log-level", "warn"}, args...)
	err := app.Run(argv)
	return stdout.String(), err
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func expectedScenario() string {
	lines := []string{"BBB", "EMPTY", "BBB"}
	for k := 6; k <= 19; k++ {
		if k == 10 {
			lines = append(lines, "AAA")
			continue
		}
		lines = append(lines, "EMPTY")
	}
	lines = append(lines, "CCC")
	return strings.Join(lines, "\n") + "\n"
}

func TestOutputPath(t *testing.T) {
	p, err := outputPath("/data/cmds/test1.input", "")
	require.NoError(t, err)
	assert.Equal(t, "test1.output", p)

	p, err = outputPath("test1.input", "/tmp/x.out")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x.out", p)

	_, err = outputPath("test1.txt", "")
	assert.Error(t, err)
}

func TestRun_Scenario(t *testing.T) {
	tmp := t.TempDir()
	storage := filepath.Join(tmp, "storage")
	input := filepath.Join(tmp, "test.input")
	output := filepath.Join(tmp, "test.output")
	metrics := filepath.Join(tmp, "segkv.prom")
	writeFile(t, input, scenario)

	_, err := runApp(t, storage, "--metrics-file", metrics, "run", "--output", output, input)
	require.NoError(t, err)

	got, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, expectedScenario(), string(got))

	prom, err := os.ReadFile(metrics)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `segkv_operations_total{op="put",result="ok"} 3`)
	assert.Contains(t, string(prom), `segkv_scan_entries_total{kind="found"} 3`)

	// A second run sees the persisted data.
	input2 := filepath.Join(tmp, "again.input")
	output2 := filepath.Join(tmp, "again.output")
	writeFile(t, input2, "GET 20\nGET 21\n")
	_, err = runApp(t, storage, "run", "--output", output2, input2)
	require.NoError(t, err)

	got, err = os.ReadFile(output2)
	require.NoError(t, err)
	assert.Equal(t, "CCC\nEMPTY\n", string(got))
}

func TestRun_NoQueriesNoOutput(t *testing.T) {
	tmp := t.TempDir()
	input := filepath.Join(tmp, "puts.input")
	output := filepath.Join(tmp, "puts.output")
	writeFile(t, input, "PUT 1 a\nPUT 2 b\nnot a command\n")

	_, err := runApp(t, filepath.Join(tmp, "storage"), "run", "--output", output, input)
	require.NoError(t, err)

	_, err = os.Stat(output)
	assert.True(t, os.IsNotExist(err))
}

func TestRun_Errors(t *testing.T) {
	tmp := t.TempDir()
	storage := filepath.Join(tmp, "storage")

	_, err := runApp(t, storage, "run")
	assert.Error(t, err)

	bad := filepath.Join(tmp, "cmds.txt")
	writeFile(t, bad, scenario)
	_, err = runApp(t, storage, "run", bad)
	assert.ErrorContains(t, err, ".input")

	_, err = runApp(t, storage, "--backend", "ftp", "inspect")
	assert.ErrorContains(t, err, "unknown backend")

	_, err = runApp(t, storage, "--backend", "s3", "inspect")
	assert.ErrorContains(t, err, "--bucket")
}

func TestGen(t *testing.T) {
	tmp := t.TempDir()
	a := filepath.Join(tmp, "a.input")
	b := filepath.Join(tmp, "b.input")

	_, err := runApp(t, tmp, "--value-size", "8", "gen", "--put", "20", "--get", "5", "--scan", "2", "--seed", "7", "--output", a)
	require.NoError(t, err)
	_, err = runApp(t, tmp, "--value-size", "8", "gen", "--put", "20", "--get", "5", "--scan", "2", "--seed", "7", "--output", b)
	require.NoError(t, err)

	da, err := os.ReadFile(a)
	require.NoError(t, err)
	db, err := os.ReadFile(b)
	require.NoError(t, err)
	assert.Equal(t, da, db)
	assert.Len(t, strings.Split(strings.TrimSpace(string(da)), "\n"), 27)

	_, err = runApp(t, tmp, "gen", "--output", filepath.Join(tmp, "x.txt"))
	assert.Error(t, err)
}

func TestInspectBackupRestore(t *testing.T) {
	tmp := t.TempDir()
	storage := filepath.Join(tmp, "storage")
	input := filepath.Join(tmp, "seed.input")
	writeFile(t, input, scenario)

	_, err := runApp(t, storage, "--buffer-size", "1", "run", "--output", filepath.Join(tmp, "seed.output"), input)
	require.NoError(t, err)

	out, err := runApp(t, storage, "inspect", "--check")
	require.NoError(t, err)
	assert.Contains(t, out, "SEGMENT")
	assert.Contains(t, out, "check segment 0: ok")

	out, err = runApp(t, storage, "inspect", "--check", "--json")
	require.NoError(t, err)
	var rep inspectReport
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.Equal(t, 128, rep.ValueSize)
	require.NotEmpty(t, rep.Segments)
	for _, seg := range rep.Segments {
		assert.Equal(t, "ok", seg.Check)
		assert.LessOrEqual(t, seg.Start, seg.End)
	}

	for _, codec := range []string{"zstd", "lz4"} {
		t.Run(codec, func(t *testing.T) {
			archivePath := filepath.Join(tmp, "backup."+codec)
			_, err := runApp(t, storage, "backup", "--to", archivePath, "--codec", codec)
			require.NoError(t, err)

			restored := filepath.Join(tmp, "restored-"+codec)
			_, err = runApp(t, restored, "restore", "--from", archivePath)
			require.NoError(t, err)

			// Restoring twice needs --overwrite.
			_, err = runApp(t, restored, "restore", "--from", archivePath)
			assert.Error(t, err)
			_, err = runApp(t, restored, "restore", "--from", archivePath, "--overwrite")
			require.NoError(t, err)

			q := filepath.Join(tmp, "q-"+codec+".input")
			o := filepath.Join(tmp, "q-"+codec+".output")
			writeFile(t, q, "SCAN 5 20\n")
			_, err = runApp(t, restored, "run", "--output", o, q)
			require.NoError(t, err)

			got, err := os.ReadFile(o)
			require.NoError(t, err)
			assert.Equal(t, expectedScenario()[len("BBB\nEMPTY\n"):], string(got))
		})
	}

	_, err = runApp(t, storage, "backup", "--to", filepath.Join(tmp, "x"), "--codec", "brotli")
	assert.Error(t, err)
}

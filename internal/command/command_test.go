package command

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hupe1980/segkv/blobstore"
	"github.com/hupe1980/segkv/internal/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		line string
		want Command
	}{
		{"PUT 10 AAA", Command{Op: OpPut, Key: 10, Value: []byte("AAA")}},
		{"PUT 10 AAA\r\n", Command{Op: OpPut, Key: 10, Value: []byte("AAA")}},
		{"GET 18446744073709551615", Command{Op: OpGet, Key: 18446744073709551615}},
		{"SCAN 5 20\n", Command{Op: OpScan, Key: 5, End: 20}},
		{"  GET   7  ", Command{Op: OpGet, Key: 7}},
	}
	for _, tt := range tests {
		got, err := Parse(tt.line)
		require.NoError(t, err, tt.line)
		assert.Equal(t, tt.want, got, tt.line)
	}

	for _, line := range []string{
		"",
		"PUT 1",
		"PUT 1 a b",
		"GET",
		"GET -1",
		"GET 18446744073709551616",
		"get 1",
		"SCAN 1",
		"SCAN 1 x",
		"DELETE 1",
	} {
		_, err := Parse(line)
		assert.ErrorIs(t, err, ErrMalformed, "%q", line)
	}
}

func TestCommandString(t *testing.T) {
	for _, line := range []string{"PUT 1 abc", "GET 2", "SCAN 3 4"} {
		cmd, err := Parse(line)
		require.NoError(t, err)
		assert.Equal(t, line, cmd.String())
	}
}

func openEngine(t *testing.T, opts ...engine.Option) *engine.Engine {
	t.Helper()
	opts = append([]engine.Option{engine.WithFilterBits(1 << 16)}, opts...)
	e, err := engine.Open(context.Background(), blobstore.NewMemoryStore(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close(context.Background()) })
	return e
}

func TestRunner_EndToEnd(t *testing.T) {
	in := strings.NewReader("PUT 10 AAA\nPUT 5 BBB\nPUT 20 CCC\nGET 5\nGET 7\nSCAN 5 20\n")
	var out bytes.Buffer

	res, err := NewRunner(openEngine(t)).Run(context.Background(), in, &out)
	require.NoError(t, err)

	want := []string{"BBB", "EMPTY"}
	for k := 5; k <= 20; k++ {
		switch k {
		case 5:
			want = append(want, "BBB")
		case 10:
			want = append(want, "AAA")
		case 20:
			want = append(want, "CCC")
		default:
			want = append(want, "EMPTY")
		}
	}
	assert.Equal(t, strings.Join(want, "\n")+"\n", out.String())
	assert.Equal(t, Result{Lines: 6, Puts: 3, Gets: 2, Scans: 1, Outputs: 18}, res)
}

func TestRunner_SkipsMalformedAndRejected(t *testing.T) {
	in := strings.NewReader("PUT 1 toolong\nBOGUS\nPUT 2 ok\n\nGET 2\nGET 1\n")
	var out bytes.Buffer

	r := NewRunner(openEngine(t, engine.WithValueSize(4)), WithRejectFunc(func(err error) bool {
		var tl *engine.ValueTooLongError
		return errors.As(err, &tl)
	}))
	res, err := r.Run(context.Background(), in, &out)
	require.NoError(t, err)

	assert.Equal(t, "ok\nEMPTY\n", out.String())
	assert.Equal(t, 2, res.Malformed)
	assert.Equal(t, 1, res.Rejected)
	assert.Equal(t, 1, res.Puts)
}

func TestRunner_StoreErrorStops(t *testing.T) {
	e := openEngine(t)
	require.NoError(t, e.Close(context.Background()))

	_, err := NewRunner(e).Run(context.Background(), strings.NewReader("GET 1\n"), &bytes.Buffer{})
	require.ErrorIs(t, err, engine.ErrClosed)
	assert.Contains(t, err.Error(), "line 1")
}

func TestLazyFile(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "puts.output")
	lf := NewLazyFile(path)
	_, err := NewRunner(openEngine(t)).Run(context.Background(), strings.NewReader("PUT 1 a\n"), lf)
	require.NoError(t, err)
	require.NoError(t, lf.Close())
	assert.False(t, lf.Created())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	path = filepath.Join(dir, "gets.output")
	lf = NewLazyFile(path)
	_, err = NewRunner(openEngine(t)).Run(context.Background(), strings.NewReader("PUT 1 a\nGET 1\n"), lf)
	require.NoError(t, err)
	assert.True(t, lf.Created())
	require.NoError(t, lf.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a\n", string(data))

	_, err = lf.Write([]byte("x"))
	assert.ErrorIs(t, err, os.ErrClosed)
}

func TestGenerate(t *testing.T) {
	cfg := GenerateConfig{Puts: 50, Gets: 20, Scans: 10, ValueSize: 16, Seed: 42, MaxScanSpan: 100}

	var a, b bytes.Buffer
	require.NoError(t, Generate(&a, cfg))
	require.NoError(t, Generate(&b, cfg))
	assert.Equal(t, a.String(), b.String(), "same seed must produce the same file")

	cfg.Seed = 43
	var c bytes.Buffer
	require.NoError(t, Generate(&c, cfg))
	assert.NotEqual(t, a.String(), c.String())

	lines := strings.Split(strings.TrimSuffix(a.String(), "\n"), "\n")
	require.Len(t, lines, 80)
	for i, line := range lines {
		cmd, err := Parse(line)
		require.NoError(t, err, line)
		assert.Less(t, cmd.Key, uint64(1)<<63)
		switch {
		case i < 50:
			require.Equal(t, OpPut, cmd.Op)
			assert.Len(t, cmd.Value, 16)
		case i < 70:
			require.Equal(t, OpGet, cmd.Op)
		default:
			require.Equal(t, OpScan, cmd.Op)
			assert.LessOrEqual(t, cmd.Key, cmd.End)
			assert.LessOrEqual(t, cmd.End-cmd.Key, uint64(100))
		}
	}
}

func TestGenerate_UnboundedScansAreOrdered(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Generate(&buf, GenerateConfig{Scans: 100, Seed: 1}))
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		cmd, err := Parse(line)
		require.NoError(t, err)
		assert.LessOrEqual(t, cmd.Key, cmd.End)
		assert.Less(t, cmd.End, uint64(1)<<63)
	}
}

func TestGenerate_InvalidConfig(t *testing.T) {
	assert.Error(t, Generate(&bytes.Buffer{}, GenerateConfig{Puts: -1}))
	assert.Error(t, Generate(&bytes.Buffer{}, GenerateConfig{Puts: 1}))
}

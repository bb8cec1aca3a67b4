package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/goccy/go-json"
	"github.com/hupe1980/segkv"
	"github.com/hupe1980/segkv/internal/archive"
	"github.com/hupe1980/segkv/internal/command"
	"github.com/urfave/cli/v2"
)

const inputExt = ".input"

var cmdRun = &cli.Command{
	Name:      "run",
	Usage:     "execute a command file against the store",
	ArgsUsage: "<file.input>",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "output",
			Usage: "output path (default: <basename>.output in the working directory)",
		},
	},
	Action: runRun,
}

// outputPath returns where results of input go: <basename>.output in the
// working directory unless override is set.
func outputPath(input, override string) (string, error) {
	if filepath.Ext(input) != inputExt {
		return "", fmt.Errorf("input file %q must have the %s extension", input, inputExt)
	}
	if override != "" {
		return override, nil
	}
	return strings.TrimSuffix(filepath.Base(input), inputExt) + ".output", nil
}

func isValueTooLong(err error) bool {
	var tooLong *segkv.ErrValueTooLong
	return errors.As(err, &tooLong)
}

func runRun(cctx *cli.Context) (err error) {
	input, err := requireArg(cctx, "path to command file")
	if err != nil {
		return err
	}
	output, err := outputPath(input, cctx.String("output"))
	if err != nil {
		return err
	}

	in, err := os.Open(input)
	if err != nil {
		return err
	}
	defer in.Close()

	s, err := newSession(cctx)
	if err != nil {
		return err
	}
	db, err := s.openDB(cctx)
	if err != nil {
		return err
	}

	out := command.NewLazyFile(output)
	defer func() {
		err = errors.Join(err, out.Close(), db.Close(cctx.Context), s.finish(cctx))
	}()

	runner := command.NewRunner(db,
		command.WithLogger(s.logger),
		command.WithRejectFunc(isValueTooLong),
	)
	res, err := runner.Run(cctx.Context, in, out)
	if err != nil {
		return err
	}

	s.logger.Info("run completed",
		"lines", res.Lines,
		"puts", res.Puts,
		"gets", res.Gets,
		"scans", res.Scans,
		"outputs", res.Outputs,
		"malformed", res.Malformed,
		"rejected", res.Rejected,
	)
	if out.Created() {
		s.logger.Info("output written", "path", out.Path())
	}
	return nil
}

var cmdGen = &cli.Command{
	Name:  "gen",
	Usage: "generate a random command file",
	Flags: []cli.Flag{
		&cli.IntFlag{Name: "put", Usage: "number of PUT commands", Value: 1000},
		&cli.IntFlag{Name: "get", Usage: "number of GET commands", Value: 100},
		&cli.IntFlag{Name: "scan", Usage: "number of SCAN commands", Value: 10},
		&cli.Uint64Flag{Name: "seed", Usage: "random seed", Value: 1},
		&cli.Uint64Flag{Name: "max-span", Usage: "maximum SCAN width (0 = unbounded)"},
		&cli.StringFlag{Name: "output", Usage: "file to write", Required: true},
	},
	Action: runGen,
}

func runGen(cctx *cli.Context) error {
	logger := configLogger(cctx, cctx.App.ErrWriter)

	path := cctx.String("output")
	if filepath.Ext(path) != inputExt {
		return fmt.Errorf("output file %q must have the %s extension", path, inputExt)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}

	cfg := command.GenerateConfig{
		Puts:        cctx.Int("put"),
		Gets:        cctx.Int("get"),
		Scans:       cctx.Int("scan"),
		ValueSize:   cctx.Int("value-size"),
		Seed:        cctx.Uint64("seed"),
		MaxScanSpan: cctx.Uint64("max-span"),
	}
	if err := command.Generate(f, cfg); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	logger.Info("command file generated", "path", path, "puts", cfg.Puts, "gets", cfg.Gets, "scans", cfg.Scans)
	return nil
}

var cmdInspect = &cli.Command{
	Name:  "inspect",
	Usage: "print the metatable and store statistics",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "check",
			Usage: "load every segment and verify ordering and counts",
		},
		&cli.BoolFlag{
			Name:  "json",
			Usage: "print a JSON document instead of a table",
		},
	},
	Action: runInspect,
}

type inspectSegment struct {
	ID    uint64 `json:"id"`
	Start uint64 `json:"start"`
	End   uint64 `json:"end"`
	Count uint64 `json:"count"`
	Check string `json:"check,omitempty"`
}

type inspectReport struct {
	ValueSize     int              `json:"value_size"`
	FilterBitsSet uint64           `json:"filter_bits_set"`
	FilterFPR     float64          `json:"filter_fpr"`
	Segments      []inspectSegment `json:"segments"`
}

func runInspect(cctx *cli.Context) (err error) {
	s, err := newSession(cctx)
	if err != nil {
		return err
	}
	db, err := s.openDB(cctx)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, db.Close(cctx.Context), s.finish(cctx))
	}()

	st := db.Stats()
	rep := inspectReport{
		ValueSize:     db.ValueSize(),
		FilterBitsSet: st.FilterBitsSet,
		FilterFPR:     st.FilterFPR,
		Segments:      []inspectSegment{},
	}
	for _, d := range db.Segments() {
		rep.Segments = append(rep.Segments, inspectSegment{ID: d.ID, Start: d.Start, End: d.End, Count: d.Count})
	}

	var verr error
	if cctx.Bool("check") {
		var reports []segkv.SegmentReport
		reports, verr = db.Verify(cctx.Context)
		status := make(map[uint64]string, len(reports))
		for _, r := range reports {
			status[r.Descriptor.ID] = "ok"
			if r.Err != nil {
				status[r.Descriptor.ID] = r.Err.Error()
			}
		}
		for i := range rep.Segments {
			rep.Segments[i].Check = status[rep.Segments[i].ID]
		}
	}

	if cctx.Bool("json") {
		enc := json.NewEncoder(cctx.App.Writer)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rep); err != nil {
			return err
		}
		return verr
	}

	w := tabwriter.NewWriter(cctx.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SEGMENT\tSTART\tEND\tCOUNT")
	for _, seg := range rep.Segments {
		fmt.Fprintf(w, "%d\t%d\t%d\t%d\n", seg.ID, seg.Start, seg.End, seg.Count)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(cctx.App.Writer, "segments=%d value_size=%d filter_bits_set=%d filter_fpr=%.6f\n",
		len(rep.Segments), rep.ValueSize, rep.FilterBitsSet, rep.FilterFPR)
	for _, seg := range rep.Segments {
		if seg.Check != "" {
			fmt.Fprintf(cctx.App.Writer, "check segment %d: %s\n", seg.ID, seg.Check)
		}
	}
	return verr
}

var cmdBackup = &cli.Command{
	Name:  "backup",
	Usage: "write every blob of the store to a compressed archive",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "to", Usage: "archive path", Required: true},
		&cli.StringFlag{Name: "codec", Usage: "compression codec (zstd, lz4, none)", Value: "zstd"},
		&cli.IntFlag{Name: "concurrency", Usage: "blobs read in parallel", Value: archive.DefaultConcurrency},
	},
	Action: runBackup,
}

func runBackup(cctx *cli.Context) error {
	codec, err := archive.ParseCodec(cctx.String("codec"))
	if err != nil {
		return err
	}
	s, err := newSession(cctx)
	if err != nil {
		return err
	}

	path := cctx.String("to")
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	closed := false
	defer func() {
		if !closed {
			_ = f.Close()
			_ = os.Remove(path)
		}
	}()

	st, err := archive.Backup(cctx.Context, s.store, f, codec, archive.Options{
		Concurrency: cctx.Int("concurrency"),
	})
	if err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return err
	}
	closed = true
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return err
	}

	s.logger.Info("backup completed", "path", path, "codec", st.Codec, "blobs", st.Blobs, "bytes", st.Bytes)
	return s.finish(cctx)
}

var cmdRestore = &cli.Command{
	Name:  "restore",
	Usage: "restore the store from an archive written by backup",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "from", Usage: "archive path", Required: true},
		&cli.BoolFlag{Name: "overwrite", Usage: "restore into a store that already holds blobs"},
	},
	Action: runRestore,
}

func runRestore(cctx *cli.Context) error {
	s, err := newSession(cctx)
	if err != nil {
		return err
	}

	f, err := os.Open(cctx.String("from"))
	if err != nil {
		return err
	}
	defer f.Close()

	st, err := archive.Restore(cctx.Context, f, s.store, archive.Options{
		Overwrite: cctx.Bool("overwrite"),
	})
	if err != nil {
		return err
	}

	s.logger.Info("restore completed", "codec", st.Codec, "blobs", st.Blobs, "bytes", st.Bytes)
	return s.finish(cctx)
}

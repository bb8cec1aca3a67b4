package command

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
)

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// GenerateConfig controls Generate.
type GenerateConfig struct {
	Puts  int
	Gets  int
	Scans int

	// ValueSize is the length of every generated value.
	ValueSize int

	// Seed makes the output reproducible.
	Seed uint64

	// MaxScanSpan bounds end-start of generated scans. Zero leaves scans
	// unbounded within the key space.
	MaxScanSpan uint64
}

// Generate writes a random command file: all PUTs, then all GETs, then all
// SCANs. Keys are non-negative 63-bit integers.
func Generate(w io.Writer, cfg GenerateConfig) error {
	if cfg.Puts < 0 || cfg.Gets < 0 || cfg.Scans < 0 {
		return fmt.Errorf("generate: negative command count")
	}
	if cfg.Puts > 0 && cfg.ValueSize < 1 {
		return fmt.Errorf("generate: value size %d", cfg.ValueSize)
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	bw := bufio.NewWriter(w)
	value := make([]byte, cfg.ValueSize)

	for range cfg.Puts {
		for i := range value {
			value[i] = alphabet[rng.IntN(len(alphabet))]
		}
		if _, err := fmt.Fprintf(bw, "PUT %d %s\n", randomKey(rng), value); err != nil {
			return err
		}
	}
	for range cfg.Gets {
		if _, err := fmt.Fprintf(bw, "GET %d\n", randomKey(rng)); err != nil {
			return err
		}
	}
	for range cfg.Scans {
		lo, hi := scanBounds(rng, cfg.MaxScanSpan)
		if _, err := fmt.Fprintf(bw, "SCAN %d %d\n", lo, hi); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func randomKey(rng *rand.Rand) uint64 {
	return rng.Uint64() & math.MaxInt64
}

func scanBounds(rng *rand.Rand, span uint64) (uint64, uint64) {
	lo := randomKey(rng)
	if span > 0 && span < math.MaxInt64 {
		return lo, lo + rng.Uint64N(span+1)
	}
	hi := randomKey(rng)
	if lo > hi {
		lo, hi = hi, lo
	}
	return lo, hi
}

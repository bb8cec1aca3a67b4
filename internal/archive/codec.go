package archive

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// ErrUnknownCodec is returned for an unsupported codec name.
var ErrUnknownCodec = errors.New("archive: unknown codec")

// Codec names a stream compression.
type Codec string

const (
	CodecZstd Codec = "zstd"
	CodecLZ4  Codec = "lz4"
	CodecNone Codec = "none"
)

var (
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	lz4Magic  = []byte{0x04, 0x22, 0x4d, 0x18}
)

// ParseCodec returns the codec named s. The empty string selects zstd.
func ParseCodec(s string) (Codec, error) {
	switch Codec(s) {
	case "", CodecZstd:
		return CodecZstd, nil
	case CodecLZ4, CodecNone:
		return Codec(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCodec, s)
	}
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func (c Codec) newWriter(w io.Writer) (io.WriteCloser, error) {
	switch c {
	case "", CodecZstd:
		return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	case CodecLZ4:
		return lz4.NewWriter(w), nil
	case CodecNone:
		return nopWriteCloser{w}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, string(c))
	}
}

// detect peeks at the stream magic and returns a decompressing reader.
// Streams without a known magic are read as plain tar.
func detect(r io.Reader) (io.Reader, Codec, func(), error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(4)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, "", nil, err
	}

	switch {
	case bytes.Equal(head, zstdMagic):
		dec, err := zstd.NewReader(br)
		if err != nil {
			return nil, "", nil, err
		}
		return dec, CodecZstd, dec.Close, nil
	case bytes.Equal(head, lz4Magic):
		return lz4.NewReader(br), CodecLZ4, func() {}, nil
	default:
		return br, CodecNone, func() {}, nil
	}
}

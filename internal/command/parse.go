package command

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformed is returned for lines that are not a valid command.
var ErrMalformed = errors.New("command: malformed line")

// Op is a command kind.
type Op uint8

const (
	OpPut Op = iota + 1
	OpGet
	OpScan
)

func (o Op) String() string {
	switch o {
	case OpPut:
		return "PUT"
	case OpGet:
		return "GET"
	case OpScan:
		return "SCAN"
	default:
		return fmt.Sprintf("Op(%d)", uint8(o))
	}
}

// Command is one parsed line. End is only set for OpScan and Value only for
// OpPut.
type Command struct {
	Op    Op
	Key   uint64
	End   uint64
	Value []byte
}

// Parse parses a single command line. A trailing CR or LF is ignored.
func Parse(line string) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}, fmt.Errorf("%w: empty line", ErrMalformed)
	}

	var (
		cmd  Command
		want int
	)
	switch fields[0] {
	case "PUT":
		cmd.Op, want = OpPut, 3
	case "GET":
		cmd.Op, want = OpGet, 2
	case "SCAN":
		cmd.Op, want = OpScan, 3
	default:
		return Command{}, fmt.Errorf("%w: unknown command %q", ErrMalformed, fields[0])
	}
	if len(fields) != want {
		return Command{}, fmt.Errorf("%w: %s takes %d arguments, got %d", ErrMalformed, cmd.Op, want-1, len(fields)-1)
	}

	key, err := parseKey(fields[1])
	if err != nil {
		return Command{}, err
	}
	cmd.Key = key

	switch cmd.Op {
	case OpPut:
		cmd.Value = []byte(fields[2])
	case OpScan:
		end, err := parseKey(fields[2])
		if err != nil {
			return Command{}, err
		}
		cmd.End = end
	}
	return cmd, nil
}

func parseKey(s string) (uint64, error) {
	k, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: key %q: %w", ErrMalformed, s, err)
	}
	return k, nil
}

// String formats the command as a command file line without a newline.
func (c Command) String() string {
	switch c.Op {
	case OpPut:
		return fmt.Sprintf("PUT %d %s", c.Key, c.Value)
	case OpGet:
		return fmt.Sprintf("GET %d", c.Key)
	case OpScan:
		return fmt.Sprintf("SCAN %d %d", c.Key, c.End)
	default:
		return c.Op.String()
	}
}

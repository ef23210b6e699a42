package channel

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"example.com/clocksim/internal/types"
)

var (
	ErrDecode    = errors.New("malformed message")
	ErrTransport = errors.New("transport failure")
)

// Encode renders m in the wire format "<action>,<sender>,<clock>".
func Encode(m types.Message) []byte {
	return []byte(fmt.Sprintf("%d,%d,%d", m.Action, m.Sender, m.Clock))
}

// Decode parses one wire message. Exactly three non-negative integer fields
// are accepted; surrounding whitespace is ignored.
func Decode(raw []byte) (types.Message, error) {
	fields := strings.Split(strings.TrimSpace(string(raw)), ",")
	if len(fields) != 3 {
		return types.Message{}, fmt.Errorf("%w: want 3 fields, got %d in %q", ErrDecode, len(fields), raw)
	}
	action, err := strconv.Atoi(strings.TrimSpace(fields[0]))
	if err != nil || action < 0 {
		return types.Message{}, fmt.Errorf("%w: bad action %q", ErrDecode, fields[0])
	}
	sender, err := strconv.Atoi(strings.TrimSpace(fields[1]))
	if err != nil || sender < 0 {
		return types.Message{}, fmt.Errorf("%w: bad sender %q", ErrDecode, fields[1])
	}
	clk, err := strconv.ParseUint(strings.TrimSpace(fields[2]), 10, 64)
	if err != nil {
		return types.Message{}, fmt.Errorf("%w: bad clock %q", ErrDecode, fields[2])
	}
	return types.Message{Action: action, Sender: sender, Clock: clk}, nil
}

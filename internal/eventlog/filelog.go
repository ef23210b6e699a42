package eventlog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"example.com/clocksim/internal/types"
)

// ErrLogWrite marks a failure to append to a log artifact. A runtime that
// sees it must stop.
var ErrLogWrite = errors.New("event log write failed")

// Recorder appends one event.
type Recorder interface {
	Record(ev types.Event) error
}

// FileLog writes one artifact per VM, "<dir>/vm<id>.log". Every Record
// opens, appends and closes the file.
type FileLog struct {
	dir string
}

func NewFileLog(dir string) (*FileLog, error) {
	if dir == "" {
		dir = "logs"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLogWrite, err)
	}
	return &FileLog{dir: dir}, nil
}

// Path returns the artifact for vm.
func (f *FileLog) Path(vm int) string {
	return filepath.Join(f.dir, fmt.Sprintf("vm%d.log", vm))
}

func (f *FileLog) Record(ev types.Event) error {
	if ev.Wall.IsZero() {
		ev.Wall = time.Now()
	}
	fh, err := os.OpenFile(f.Path(ev.VM), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLogWrite, err)
	}
	if _, err := fh.WriteString(FormatLine(ev)); err != nil {
		fh.Close()
		return fmt.Errorf("%w: %v", ErrLogWrite, err)
	}
	if err := fh.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrLogWrite, err)
	}
	return nil
}

// FormatLine renders "<kind>,<vm>,<payload>,<clock>,<wall>\n" with wall in
// fractional seconds since the epoch.
func FormatLine(ev types.Event) string {
	wall := float64(ev.Wall.UnixNano()) / 1e9
	return fmt.Sprintf("%s,%d,%d,%d,%s\n", ev.Kind, ev.VM, ev.Payload, ev.Clock,
		strconv.FormatFloat(wall, 'f', 6, 64))
}

// ParseLine is the inverse of FormatLine. The trailing newline is optional.
func ParseLine(line string) (types.Event, error) {
	fields := strings.Split(strings.TrimRight(line, "\r\n"), ",")
	if len(fields) != 5 {
		return types.Event{}, fmt.Errorf("want 5 fields, got %d in %q", len(fields), line)
	}
	var ev types.Event
	ev.Kind = types.EventKind(fields[0])
	vm, err := strconv.Atoi(fields[1])
	if err != nil {
		return types.Event{}, fmt.Errorf("bad vm id %q: %w", fields[1], err)
	}
	ev.VM = vm
	payload, err := strconv.Atoi(fields[2])
	if err != nil {
		return types.Event{}, fmt.Errorf("bad payload %q: %w", fields[2], err)
	}
	ev.Payload = payload
	clk, err := strconv.ParseUint(fields[3], 10, 64)
	if err != nil {
		return types.Event{}, fmt.Errorf("bad clock %q: %w", fields[3], err)
	}
	ev.Clock = clk
	wall, err := strconv.ParseFloat(fields[4], 64)
	if err != nil {
		return types.Event{}, fmt.Errorf("bad timestamp %q: %w", fields[4], err)
	}
	sec := int64(wall)
	ev.Wall = time.Unix(sec, int64((wall-float64(sec))*1e9))
	return ev, nil
}

// Package analysis reads finished event logs and reports how far each VM's
// logical clock was pulled ahead of its own step count and how large its
// inbound queue grew.
package analysis

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"text/tabwriter"
	"time"

	"example.com/clocksim/internal/eventlog"
	"example.com/clocksim/internal/types"
)

var logName = regexp.MustCompile(`^vm(\d+)\.log$`)

type Summary struct {
	VM         int
	Events     int
	Sends      int
	Recvs      int
	Internals  int
	RecvErrors int
	FinalClock uint64
	// MaxJump is the largest single clock increase; anything above 1 came
	// from a receive.
	MaxJump uint64
	// MaxBacklog is the deepest the inbound queue was seen before a pop.
	MaxBacklog int
	Span       time.Duration
}

// Drift is how far the clock ran ahead of the number of local steps.
func (s Summary) Drift() int64 {
	return int64(s.FinalClock) - int64(s.Events-s.RecvErrors)
}

// Read summarizes one log stream. Every line must parse.
func Read(vm int, r io.Reader) (Summary, error) {
	s := Summary{VM: vm}
	var (
		prev        uint64
		first, last time.Time
		line        int
	)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line++
		ev, err := eventlog.ParseLine(sc.Text())
		if err != nil {
			return s, fmt.Errorf("vm%d line %d: %w", vm, line, err)
		}
		s.Events++
		switch ev.Kind {
		case types.KindSend:
			s.Sends++
		case types.KindRecv:
			s.Recvs++
			if ev.Payload+1 > s.MaxBacklog {
				s.MaxBacklog = ev.Payload + 1
			}
		case types.KindInternal:
			s.Internals++
		case types.KindRecvError:
			s.RecvErrors++
		}
		if ev.Clock > prev && ev.Clock-prev > s.MaxJump {
			s.MaxJump = ev.Clock - prev
		}
		prev = ev.Clock
		if first.IsZero() {
			first = ev.Wall
		}
		last = ev.Wall
	}
	if err := sc.Err(); err != nil {
		return s, err
	}
	s.FinalClock = prev
	s.Span = last.Sub(first)
	return s, nil
}

// Summarize reads every vm<id>.log in dir, ordered by id.
func Summarize(dir string) ([]Summary, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []Summary
	for _, e := range entries {
		m := logName.FindStringSubmatch(e.Name())
		if e.IsDir() || m == nil {
			continue
		}
		id, _ := strconv.Atoi(m[1])
		fh, err := os.Open(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		s, err := Read(id, fh)
		fh.Close()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VM < out[j].VM })
	return out, nil
}

// WriteReport prints one row per VM.
func WriteReport(w io.Writer, sums []Summary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "vm\tevents\tsend\trecv\tinternal\trecv_err\tclock\tdrift\tmax_jump\tmax_backlog\tspan")
	for _, s := range sums {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%s\n",
			s.VM, s.Events, s.Sends, s.Recvs, s.Internals, s.RecvErrors,
			s.FinalClock, s.Drift(), s.MaxJump, s.MaxBacklog, s.Span.Round(time.Millisecond))
	}
	return tw.Flush()
}

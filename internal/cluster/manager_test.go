package cluster

import (
	"bufio"
	"context"
	"net"
	"os"
	"strconv"
	"testing"
	"time"

	"example.com/clocksim/internal/config"
	"example.com/clocksim/internal/eventlog"
	"example.com/clocksim/internal/types"
)

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	_, port, _ := net.SplitHostPort(ln.Addr().String())
	n, _ := strconv.Atoi(port)
	return n
}

func testConfig(t *testing.T) config.Config {
	cfg := config.Default()
	cfg.Host = "127.0.0.1"
	cfg.Ports = []int{freePort(t), freePort(t), freePort(t)}
	cfg.LogDir = t.TempDir()
	cfg.StartupDelay = 0
	cfg.DialTimeout = 200 * time.Millisecond
	cfg.Seed = 11
	return cfg
}

func TestCreateRejectsDuplicatesAndUnknownIDs(t *testing.T) {
	m := NewManager(testConfig(t))
	defer m.Shutdown()

	if _, err := m.Create(0); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Create(0); err == nil {
		t.Fatal("expected duplicate error")
	}
	if _, err := m.Create(3); err == nil {
		t.Fatal("expected out-of-range error")
	}
	if ids := m.ListIDs(); len(ids) != 1 || ids[0] != 0 {
		t.Fatalf("unexpected ids %v", ids)
	}
	m.Remove(0)
	if _, ok := m.Get(0); ok {
		t.Fatal("vm 0 still registered")
	}
}

func readLog(t *testing.T, path string) []types.Event {
	t.Helper()
	fh, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer fh.Close()
	var out []types.Event
	sc := bufio.NewScanner(fh)
	for sc.Scan() {
		ev, err := eventlog.ParseLine(sc.Text())
		if err != nil {
			t.Fatal(err)
		}
		out = append(out, ev)
	}
	return out
}

func TestThreeVMsExchangeMessages(t *testing.T) {
	m := NewManager(testConfig(t))
	defer m.Shutdown()
	if err := m.CreateAll(); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if err := m.Run(ctx); err != nil {
		t.Fatal(err)
	}

	recvs := 0
	for _, id := range m.ListIDs() {
		n, _ := m.Get(id)
		events := readLog(t, n.LogPath())
		if len(events) == 0 {
			t.Fatalf("vm %d logged nothing", id)
		}
		var prev uint64
		for i, ev := range events {
			if ev.VM != id {
				t.Fatalf("vm %d log holds event for vm %d", id, ev.VM)
			}
			if ev.Clock <= prev {
				t.Fatalf("vm %d event %d: clock %d after %d", id, i, ev.Clock, prev)
			}
			prev = ev.Clock
			if ev.Kind == types.KindRecv {
				recvs++
			}
		}
		if st := n.Status(); st.Steps != uint64(len(events)) {
			t.Fatalf("vm %d: status reports %d steps, log has %d lines", id, st.Steps, len(events))
		}
	}
	if recvs == 0 {
		t.Fatal("no messages were received by any vm")
	}
}

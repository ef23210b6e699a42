package node

import (
	"context"
	"net"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"example.com/clocksim/internal/config"
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

func TestNodeMirrorsFileLog(t *testing.T) {
	cfg := config.Default()
	cfg.Host = "127.0.0.1"
	cfg.Ports = []int{freePort(t), freePort(t)}
	cfg.LogDir = t.TempDir()
	cfg.DataDir = t.TempDir()
	cfg.StartupDelay = 0
	cfg.DialTimeout = 100 * time.Millisecond

	n, err := New(0, cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer n.Close()
	if n.RunID == "" || n.Store() == nil {
		t.Fatalf("node not fully built: %+v", n)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	n.Run(ctx)

	raw, err := os.ReadFile(n.LogPath())
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	recs, err := n.Store().List(0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != len(lines) {
		t.Fatalf("store has %d records, log has %d lines", len(recs), len(lines))
	}
	if recs[len(recs)-1].Event.Clock != n.Status().Clock {
		t.Fatalf("last mirrored clock %d, status clock %d", recs[len(recs)-1].Event.Clock, n.Status().Clock)
	}
}

func TestNodeWithoutDataDir(t *testing.T) {
	cfg := config.Default()
	cfg.Host = "127.0.0.1"
	cfg.Ports = []int{freePort(t)}
	cfg.LogDir = t.TempDir()

	n, err := New(0, cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer n.Close()
	if n.Store() != nil {
		t.Fatal("store should be disabled without a data dir")
	}
	if n.Hub() == nil {
		t.Fatal("hub is always present")
	}
}

func TestNodePortInUse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	_, port, _ := net.SplitHostPort(ln.Addr().String())
	p, _ := strconv.Atoi(port)

	cfg := config.Default()
	cfg.Host = "127.0.0.1"
	cfg.Ports = []int{p}
	cfg.LogDir = t.TempDir()
	if _, err := New(0, cfg); err == nil {
		t.Fatal("expected bind failure")
	}
}

package node

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"example.com/clocksim/internal/config"
	"example.com/clocksim/internal/eventlog"
	"example.com/clocksim/internal/vm"
	"github.com/google/uuid"
)

type Options struct {
	ID     int
	Config config.Config
	// Runtime overrides the defaults vm.New would pick; Recorder and RunID
	// are always set by the node.
	Runtime vm.Options
}

// Node is one VM together with its event log, optional bbolt mirror and
// subscriber hub.
type Node struct {
	ID    int
	RunID string

	cfg     config.Config
	runtime *vm.Runtime
	files   *eventlog.FileLog
	store   *eventlog.Store
	hub     *eventlog.Hub
}

func NewWithOpts(opt Options) (*Node, error) {
	cfg := opt.Config
	files, err := eventlog.NewFileLog(cfg.LogDir)
	if err != nil {
		return nil, err
	}

	var store *eventlog.Store
	if cfg.DataDir != "" {
		dir := filepath.Join(cfg.DataDir, fmt.Sprintf("vm%d", opt.ID))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
		store, err = eventlog.NewStore(filepath.Join(dir, "events.db"))
		if err != nil {
			return nil, err
		}
	}
	hub := eventlog.NewHub()
	runID := uuid.NewString()
	journal := eventlog.NewJournal(files, store, hub, runID)

	ropts := opt.Runtime
	ropts.Recorder = journal
	ropts.RunID = runID
	rt, err := vm.New(opt.ID, cfg, ropts)
	if err != nil {
		if store != nil {
			_ = store.Close()
		}
		return nil, err
	}

	return &Node{
		ID:      opt.ID,
		RunID:   runID,
		cfg:     cfg,
		runtime: rt,
		files:   files,
		store:   store,
		hub:     hub,
	}, nil
}

func New(id int, cfg config.Config) (*Node, error) {
	return NewWithOpts(Options{ID: id, Config: cfg})
}

func (n *Node) Run(ctx context.Context) error { return n.runtime.Run(ctx) }

// Close releases the listening endpoint first, then the store.
func (n *Node) Close() error {
	if n.runtime != nil {
		_ = n.runtime.Close()
	}
	if n.store != nil {
		_ = n.store.Close()
	}
	return nil
}

func (n *Node) Runtime() *vm.Runtime { return n.runtime }
func (n *Node) Store() *eventlog.Store { return n.store }
func (n *Node) Hub() *eventlog.Hub { return n.hub }
func (n *Node) Config() config.Config { return n.cfg }
func (n *Node) LogPath() string { return n.files.Path(n.ID) }
func (n *Node) Status() vm.Status { return n.runtime.Status() }

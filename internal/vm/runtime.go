package vm

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"example.com/clocksim/internal/action"
	"example.com/clocksim/internal/channel"
	"example.com/clocksim/internal/clock"
	"example.com/clocksim/internal/config"
	"example.com/clocksim/internal/eventlog"
	"example.com/clocksim/internal/types"
)

// Poller yields at most one inbound message per call.
type Poller interface {
	Poll() channel.PollResult
	Addr() string
	Close() error
}

// Transport delivers one message to one endpoint.
type Transport interface {
	Send(ctx context.Context, addr string, m types.Message) error
}

// Drawer produces one integer per call.
type Drawer interface {
	Draw() int
}

type Options struct {
	Recorder  eventlog.Recorder // required
	Poller    Poller            // defaults to a TCP listener on the VM's port
	Transport Transport         // defaults to a TCP sender
	Actions   Drawer            // defaults to a uniform draw over [1, MaxActions]
	Speed     Drawer            // defaults to a uniform draw over the clock speed range
	RunID     string
}

// Status is a point-in-time view of a runtime, safe to read from other
// goroutines.
type Status struct {
	ID           int       `json:"id"`
	RunID        string    `json:"run_id"`
	Addr         string    `json:"addr"`
	Clock        uint64    `json:"clock"`
	QueueLen     int       `json:"queue_len"`
	Cycles       uint64    `json:"cycles"`
	Steps        uint64    `json:"steps"`
	Received     uint64    `json:"received"`
	Sent         uint64    `json:"sent"`
	Dropped      uint64    `json:"dropped"`
	DecodeErrors uint64    `json:"decode_errors"`
	Started      time.Time `json:"started"`
}

// Runtime is one virtual machine. Clock, queue and endpoint belong to it
// alone; only Run/Cycle mutate them.
type Runtime struct {
	id     int
	cfg    config.Config
	first  string
	second string

	clk     clock.Lamport
	queue   []types.Message
	poller  Poller
	tr      Transport
	rec     eventlog.Recorder
	actions Drawer
	speed   Drawer

	mu     sync.RWMutex
	status Status
}

func New(id int, cfg config.Config, opts Options) (*Runtime, error) {
	if opts.Recorder == nil {
		return nil, errors.New("vm: recorder is required")
	}
	first, second, err := cfg.Neighbors(id)
	if err != nil {
		return nil, err
	}

	// each vm draws from its own named stream unless a seed pins math/rand
	var src action.Source = action.Stream(id)
	if cfg.Seed != 0 {
		src = action.FromRand(rand.New(rand.NewSource(cfg.Seed + int64(id))))
	}

	if opts.Actions == nil {
		opts.Actions, err = action.NewSelector(src, cfg.MaxActions)
		if err != nil {
			return nil, err
		}
	}
	if opts.Speed == nil {
		opts.Speed, err = action.NewRange(src, cfg.MinClockSpeed, cfg.MaxClockSpeed)
		if err != nil {
			return nil, err
		}
	}
	if opts.Transport == nil {
		opts.Transport = channel.NewSender(cfg.DialTimeout)
	}
	if opts.Poller == nil {
		addr, err := cfg.Addr(id)
		if err != nil {
			return nil, err
		}
		l, err := channel.Listen(addr)
		if err != nil {
			return nil, err
		}
		l.SetPollWindow(cfg.PollWindow)
		opts.Poller = l
	}

	r := &Runtime{
		id:      id,
		cfg:     cfg,
		first:   first,
		second:  second,
		poller:  opts.Poller,
		tr:      opts.Transport,
		rec:     opts.Recorder,
		actions: opts.Actions,
		speed:   opts.Speed,
	}
	r.status = Status{ID: id, RunID: opts.RunID, Addr: opts.Poller.Addr(), Started: time.Now()}
	return r, nil
}

func (r *Runtime) ID() int { return r.id }

func (r *Runtime) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

func (r *Runtime) Close() error { return r.poller.Close() }

// Run cycles until a log write fails or ctx is cancelled. Config.Duration is
// not consulted.
func (r *Runtime) Run(ctx context.Context) error {
	log.Printf("[INFO] vm %d online at %s, starting in %v", r.id, r.poller.Addr(), r.cfg.StartupDelay)
	if r.cfg.StartupDelay > 0 {
		select {
		case <-time.After(r.cfg.StartupDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.Cycle(ctx); err != nil {
			return err
		}
	}
}

// Cycle polls once and then runs a freshly drawn number of steps.
func (r *Runtime) Cycle(ctx context.Context) error {
	if err := r.poll(); err != nil {
		return err
	}
	n := r.speed.Draw()
	for i := 0; i < n; i++ {
		if err := r.step(ctx); err != nil {
			return err
		}
	}
	r.update(func(s *Status) { s.Cycles++ })
	return nil
}

func (r *Runtime) poll() error {
	res := r.poller.Poll()
	switch res.Status {
	case channel.Received:
		r.queue = append(r.queue, res.Msg)
		r.update(func(s *Status) { s.Received++ })
	case channel.Failed:
		if !errors.Is(res.Err, channel.ErrDecode) {
			// accept failures are treated as an empty poll
			return nil
		}
		log.Printf("[WARN] vm %d: dropping malformed message %q: %v", r.id, res.Raw, res.Err)
		r.update(func(s *Status) { s.DecodeErrors++ })
		return r.record(types.KindRecvError, len(r.queue), r.clk.Value())
	}
	return nil
}

func (r *Runtime) step(ctx context.Context) error {
	defer r.update(func(s *Status) { s.Steps++ })

	if len(r.queue) > 0 {
		m := r.queue[0]
		r.queue[0] = types.Message{}
		r.queue = r.queue[1:]
		if len(r.queue) == 0 {
			r.queue = nil
		}
		c := r.clk.Receive(m.Clock)
		return r.record(types.KindRecv, len(r.queue), c)
	}

	code := r.actions.Draw()
	// the message carries the clock as it was before this step
	msg := types.Message{Action: code, Sender: r.id, Clock: r.clk.Value()}
	kind := types.KindSend
	switch action.Classify(code) {
	case action.FirstNeighbor:
		r.send(ctx, r.first, msg)
	case action.SecondNeighbor:
		r.send(ctx, r.second, msg)
	case action.BothNeighbors:
		r.send(ctx, r.first, msg)
		r.send(ctx, r.second, msg)
	default:
		kind = types.KindInternal
	}
	c := r.clk.Tick()
	return r.record(kind, code, c)
}

// send never fails the step; a lost message is only logged.
func (r *Runtime) send(ctx context.Context, addr string, m types.Message) {
	if err := r.tr.Send(ctx, addr, m); err != nil {
		log.Printf("[WARN] vm %d: message %s to %s dropped: %v", r.id, channel.Encode(m), addr, err)
		r.update(func(s *Status) { s.Dropped++ })
		return
	}
	r.update(func(s *Status) { s.Sent++ })
}

func (r *Runtime) record(kind types.EventKind, payload int, c uint64) error {
	ev := types.Event{Kind: kind, VM: r.id, Payload: payload, Clock: c, Wall: time.Now()}
	if err := r.rec.Record(ev); err != nil {
		return fmt.Errorf("vm %d: %w", r.id, err)
	}
	return nil
}

func (r *Runtime) update(fn func(s *Status)) {
	r.mu.Lock()
	fn(&r.status)
	r.status.Clock = r.clk.Value()
	r.status.QueueLen = len(r.queue)
	r.mu.Unlock()
}

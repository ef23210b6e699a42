package action

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/iti/rngstream"
)

// Explicit action codes. Any drawn value above SendBoth is an internal
// event.
const (
	SendFirst  = 1
	SendSecond = 2
	SendBoth   = 3
)

type Behavior int

const (
	FirstNeighbor Behavior = iota
	SecondNeighbor
	BothNeighbors
	InternalEvent
)

func (b Behavior) String() string {
	switch b {
	case FirstNeighbor:
		return "first-neighbor"
	case SecondNeighbor:
		return "second-neighbor"
	case BothNeighbors:
		return "both-neighbors"
	default:
		return "internal"
	}
}

// Classify maps a drawn code onto its band.
func Classify(code int) Behavior {
	switch code {
	case SendFirst:
		return FirstNeighbor
	case SendSecond:
		return SecondNeighbor
	case SendBoth:
		return BothNeighbors
	default:
		return InternalEvent
	}
}

// Source yields integers uniformly over the closed range [lo, hi].
// *rngstream.RngStream satisfies it directly.
type Source interface {
	RandInt(lo, hi int) int
}

type mathSource struct{ rng *rand.Rand }

func (m mathSource) RandInt(lo, hi int) int { return lo + m.rng.Intn(hi-lo+1) }

// FromRand adapts a seeded math/rand generator.
func FromRand(rng *rand.Rand) Source {
	if rng == nil {
		return nil
	}
	return mathSource{rng: rng}
}

var (
	streamMu sync.Mutex
	streams  []*rngstream.RngStream
)

// Stream returns the named rngstream for vm id. Streams are created in id
// order, so vm id gets the same stream whether it runs alone or next to its
// peers in one process.
func Stream(id int) *rngstream.RngStream {
	streamMu.Lock()
	defer streamMu.Unlock()
	for len(streams) <= id {
		streams = append(streams, rngstream.New(fmt.Sprintf("vm%d", len(streams))))
	}
	return streams[id]
}

// Selector draws integers uniformly from a closed range using the supplied
// random source. It holds no state of its own.
type Selector struct {
	src      Source
	min, max int
}

// NewSelector returns a selector over [1, maxActions].
func NewSelector(src Source, maxActions int) (*Selector, error) {
	return NewRange(src, 1, maxActions)
}

// NewRange returns a selector over [lo, hi]. It backs the clock-speed draw too.
func NewRange(src Source, lo, hi int) (*Selector, error) {
	if src == nil {
		return nil, fmt.Errorf("action: nil random source")
	}
	if lo < 0 || hi < lo {
		return nil, fmt.Errorf("action: invalid range [%d, %d]", lo, hi)
	}
	return &Selector{src: src, min: lo, max: hi}, nil
}

// Draw returns one value uniformly distributed over the selector's range.
func (s *Selector) Draw() int {
	return s.src.RandInt(s.min, s.max)
}

// Package clock implements the Lamport logical clock carried by each VM.
package clock

// Lamport is a logical clock.
//
// The zero value is a clock at 0 ready to use. A Lamport is owned by a single
// runtime loop and is not safe for concurrent use.
type Lamport struct {
	counter uint64
}

// Value returns the current clock value.
func (c *Lamport) Value() uint64 { return c.counter }

// Tick advances the clock by 1 for a local, send or internal event and returns
// the new value.
func (c *Lamport) Tick() uint64 {
	c.counter++
	return c.counter
}

// Receive sets the clock to max{c, other} + 1 and returns the new value.
func (c *Lamport) Receive(other uint64) uint64 {
	if other > c.counter {
		c.counter = other
	}
	return c.Tick()
}

// Set forces the clock to v. Used to seed a runtime from a known state.
func (c *Lamport) Set(v uint64) { c.counter = v }

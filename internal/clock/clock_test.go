package clock

import "testing"

func TestTickZero(t *testing.T) {
	var clk Lamport
	if got := clk.Tick(); got != 1 {
		t.Fatalf("expected 1, got %d", got)
	}
}

func TestReceiveTakesMaxPlusOne(t *testing.T) {
	cases := []struct {
		local, recv, want uint64
	}{
		{3, 9, 10},
		{12, 5, 13},
		{0, 0, 1},
		{7, 7, 8},
	}
	for _, c := range cases {
		var clk Lamport
		clk.Set(c.local)
		if got := clk.Receive(c.recv); got != c.want {
			t.Errorf("local=%d recv=%d: expected %d, got %d", c.local, c.recv, c.want, got)
		}
		if clk.Value() != c.want {
			t.Errorf("Value() = %d, want %d", clk.Value(), c.want)
		}
	}
}

func TestMonotonic(t *testing.T) {
	var clk Lamport
	prev := clk.Value()
	for i, recv := range []uint64{0, 4, 2, 100, 3, 0, 101} {
		var got uint64
		if i%2 == 0 {
			got = clk.Tick()
		} else {
			got = clk.Receive(recv)
		}
		if got <= prev {
			t.Fatalf("step %d: clock went from %d to %d", i, prev, got)
		}
		prev = got
	}
}

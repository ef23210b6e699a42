package action

import (
	"math/rand"
	"testing"
)

func TestDrawStaysInRange(t *testing.T) {
	s, err := NewSelector(FromRand(rand.New(rand.NewSource(1))), 10)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 1000; i++ {
		v := s.Draw()
		if v < 1 || v > 10 {
			t.Fatalf("draw %d out of [1, 10]", v)
		}
	}
}

func TestDrawIsRoughlyUniform(t *testing.T) {
	const max, samples = 10, 100000
	s, _ := NewSelector(FromRand(rand.New(rand.NewSource(42))), max)
	counts := make([]int, max+1)
	for i := 0; i < samples; i++ {
		counts[s.Draw()]++
	}
	expected := samples / max
	for v := 1; v <= max; v++ {
		// 10% tolerance is far outside the expected deviation for this sample size.
		if diff := counts[v] - expected; diff > expected/10 || diff < -expected/10 {
			t.Errorf("value %d drawn %d times, expected about %d", v, counts[v], expected)
		}
	}
	if counts[0] != 0 {
		t.Errorf("value 0 drawn %d times", counts[0])
	}
}

func TestSingleValueRange(t *testing.T) {
	s, _ := NewRange(FromRand(rand.New(rand.NewSource(7))), 3, 3)
	for i := 0; i < 50; i++ {
		if v := s.Draw(); v != 3 {
			t.Fatalf("expected 3, got %d", v)
		}
	}
}

func TestInvalidRange(t *testing.T) {
	if _, err := NewRange(FromRand(rand.New(rand.NewSource(1))), 5, 4); err == nil {
		t.Fatal("expected error for empty range")
	}
	if _, err := NewSelector(nil, 10); err == nil {
		t.Fatal("expected error for nil source")
	}
}

func TestClassify(t *testing.T) {
	cases := map[int]Behavior{
		1:  FirstNeighbor,
		2:  SecondNeighbor,
		3:  BothNeighbors,
		4:  InternalEvent,
		7:  InternalEvent,
		10: InternalEvent,
	}
	for code, want := range cases {
		if got := Classify(code); got != want {
			t.Errorf("Classify(%d) = %v, want %v", code, got, want)
		}
	}
}

func TestStreamPerVM(t *testing.T) {
	s0, s1 := Stream(0), Stream(1)
	if s0 == s1 {
		t.Fatal("vms share a random stream")
	}
	if Stream(1) != s1 {
		t.Fatal("stream for vm 1 was not reused")
	}
	sel, err := NewRange(s1, 1, 6)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 500; i++ {
		if v := sel.Draw(); v < 1 || v > 6 {
			t.Fatalf("draw %d out of [1, 6]", v)
		}
	}
}

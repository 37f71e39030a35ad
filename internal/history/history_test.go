package history

import "testing"

func TestRingCapacityAndFIFO(t *testing.T) {
	r := NewRing(3)
	for i := 1; i <= 5; i++ {
		r.Append(float64(i))
		if r.Len() > r.Cap() {
			t.Fatalf("ring grew past capacity: len=%d cap=%d", r.Len(), r.Cap())
		}
	}
	got := r.Values()
	want := []float64{3, 4, 5}
	if len(got) != len(want) {
		t.Fatalf("expected %d values after overflow, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected oldest-first %v, got %v", want, got)
		}
	}
}

func TestRingPartialFill(t *testing.T) {
	r := NewRing(4)
	r.Append(7)
	r.Append(8)
	got := r.Values()
	if len(got) != 2 || got[0] != 7 || got[1] != 8 {
		t.Fatalf("expected [7 8], got %v", got)
	}
}

func TestRingValuesAreCopies(t *testing.T) {
	r := NewRing(2)
	r.Append(1)
	vals := r.Values()
	vals[0] = 99
	if r.Values()[0] != 1 {
		t.Fatalf("mutating returned slice should not affect the ring")
	}
}

func TestSetLazyCreationAndIsolation(t *testing.T) {
	s := NewSet(2)
	if vals := s.Values("cpu"); len(vals) != 0 {
		t.Fatalf("unknown metric should return empty slice, got %v", vals)
	}
	s.Append("cpu", 10)
	s.Append("cpu", 20)
	s.Append("cpu", 30)
	s.Append("ram", 55)

	cpu := s.Values("cpu")
	if len(cpu) != 2 || cpu[0] != 20 || cpu[1] != 30 {
		t.Fatalf("expected cpu ring [20 30], got %v", cpu)
	}
	ram := s.Values("ram")
	if len(ram) != 1 || ram[0] != 55 {
		t.Fatalf("expected ram ring [55], got %v", ram)
	}
	if names := s.Metrics(); len(names) != 2 {
		t.Fatalf("expected 2 recorded metrics, got %v", names)
	}
}

package stats

import "testing"

func TestAddAccumulates(t *testing.T) {
	r := NewRegistry()
	r.Add("pipeline.cycles", 5)
	r.Add("pipeline.cycles", 3)

	got, ok := r.Get("pipeline.cycles")
	if !ok || got != 8 {
		t.Errorf("Get(pipeline.cycles) = (%d, %v), want (8, true)", got, ok)
	}
}

func TestSetOverwrites(t *testing.T) {
	r := NewRegistry()
	r.Set("cache.l1d.hits", 10)
	r.Set("cache.l1d.hits", 4)

	got, _ := r.Get("cache.l1d.hits")
	if got != 4 {
		t.Errorf("Get(cache.l1d.hits) = %d, want 4", got)
	}
}

func TestGetMissingReturnsFalse(t *testing.T) {
	r := NewRegistry()
	if _, ok := r.Get("nonexistent"); ok {
		t.Errorf("Get on missing counter reported ok=true")
	}
}

func TestFilterByPrefix(t *testing.T) {
	r := NewRegistry()
	r.Set("cache.l1d.hits", 1)
	r.Set("cache.l1i.hits", 2)
	r.Set("pipeline.cycles", 3)

	got := r.Filter("cache.")
	if len(got) != 2 {
		t.Fatalf("Filter(cache.) returned %d entries, want 2", len(got))
	}
	if got["cache.l1d.hits"] != 1 || got["cache.l1i.hits"] != 2 {
		t.Errorf("Filter(cache.) = %v", got)
	}
	if _, ok := got["pipeline.cycles"]; ok {
		t.Errorf("Filter(cache.) unexpectedly included pipeline.cycles")
	}
}

func TestResetZeroesWithoutRemoving(t *testing.T) {
	r := NewRegistry()
	r.Set("pipeline.cycles", 42)
	r.Reset()

	got, ok := r.Get("pipeline.cycles")
	if !ok {
		t.Errorf("Reset removed the counter instead of zeroing it")
	}
	if got != 0 {
		t.Errorf("Get(pipeline.cycles) after Reset = %d, want 0", got)
	}
}

func TestStringIsSorted(t *testing.T) {
	r := NewRegistry()
	r.Set("b.counter", 1)
	r.Set("a.counter", 2)

	want := "a.counter = 2\nb.counter = 1\n"
	if got := r.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

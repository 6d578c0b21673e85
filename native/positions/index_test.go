package positions

import (
	"errors"
	"testing"
)

func TestCreateAssignsSequentialSeeds(t *testing.T) {
	ix := New(1, 0)
	if seed := ix.NextSeed(); seed != 2 {
		t.Fatalf("next seed = %d, want 2", seed)
	}
	for want := uint64(2); want <= 4; want++ {
		if seed := ix.Create(); seed != want {
			t.Fatalf("seed = %d, want %d", seed, want)
		}
	}
	if ix.Count != 3 || ix.Offset != 1 {
		t.Fatalf("unexpected index %+v", ix)
	}
}

func TestSeedValidityBounds(t *testing.T) {
	ix := Index{Count: 3, Offset: 5}
	for seed, want := range map[uint64]bool{
		4: false, // below the live range
		5: false, // the offset itself is retired
		6: true,
		8: true,
		9: false, // beyond the newest live position
	} {
		if got := ix.IsValidSeed(seed); got != want {
			t.Fatalf("IsValidSeed(%d) = %v, want %v", seed, got, want)
		}
	}
	if err := ix.ValidateSeed(9); !errors.Is(err, ErrInvalidSeedIndex) {
		t.Fatalf("expected invalid seed, got %v", err)
	}
	if err := ix.ValidateSeed(6); err != nil {
		t.Fatalf("unexpected error for live seed: %v", err)
	}
}

func TestCloseOldestFIFO(t *testing.T) {
	ix := New(0, 0)
	first := ix.Create()
	second := ix.Create()

	if err := ix.CloseOldest(second); !errors.Is(err, ErrNotOldest) {
		t.Fatalf("expected out-of-order rejection, got %v", err)
	}
	if err := ix.CloseOldest(first); err != nil {
		t.Fatalf("close oldest: %v", err)
	}
	if ix.Count != 1 || ix.Offset != 1 {
		t.Fatalf("unexpected index after close %+v", ix)
	}
	if ix.IsValidSeed(first) {
		t.Fatalf("closed seed %d still valid", first)
	}
	if !ix.IsValidSeed(second) {
		t.Fatalf("live seed %d invalidated by close", second)
	}
}

func TestCloseOnEmpty(t *testing.T) {
	ix := New(7, 0)
	if err := ix.CloseOldest(8); !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected empty rejection, got %v", err)
	}
}

func TestSeedsRecycleAfterClose(t *testing.T) {
	ix := New(0, 0)
	seed := ix.Create()
	if err := ix.CloseOldest(seed); err != nil {
		t.Fatalf("close: %v", err)
	}
	if next := ix.Create(); next != seed+1 {
		t.Fatalf("seed after close = %d, want %d", next, seed+1)
	}
}

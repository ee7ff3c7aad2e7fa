package async

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestMap_PreservesOrder(t *testing.T) {
	items := []int{5, 1, 3}
	got, err := Map(context.Background(), items, 0, func(_ context.Context, n int) (string, error) {
		time.Sleep(time.Duration(n) * time.Millisecond)
		return strings.Repeat("x", n), nil
	})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	want := []string{"xxxxx", "x", "xxx"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("result[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestMap_Empty(t *testing.T) {
	got, err := Map(context.Background(), nil, 0, func(_ context.Context, n int) (int, error) {
		return n, nil
	})
	if err != nil {
		t.Errorf("expected no error for empty input, got: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty result, got %v", got)
	}
}

func TestMap_JoinsErrors(t *testing.T) {
	errA := errors.New("a failed")
	errC := errors.New("c failed")

	var calls atomic.Int32
	got, err := Map(context.Background(), []string{"a", "b", "c"}, 0, func(_ context.Context, s string) (string, error) {
		calls.Add(1)
		switch s {
		case "a":
			return "", errA
		case "c":
			return "", errC
		}
		return s, nil
	})
	if !errors.Is(err, errA) || !errors.Is(err, errC) {
		t.Fatalf("expected both errors, got: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("expected every call to run, got %d", calls.Load())
	}
	if got[1] != "b" {
		t.Errorf("successful result lost: %v", got)
	}
}

func TestMap_Limit(t *testing.T) {
	var inFlight, peak atomic.Int32
	_, err := Map(context.Background(), make([]int, 8), 2, func(_ context.Context, _ int) (int, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return 0, nil
	})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if peak.Load() > 2 {
		t.Errorf("expected at most 2 concurrent calls, got %d", peak.Load())
	}
}

func TestMap_PassesContext(t *testing.T) {
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "v")
	got, err := Map(ctx, []int{1}, 0, func(ctx context.Context, _ int) (string, error) {
		v, _ := ctx.Value(key{}).(string)
		return v, nil
	})
	if err != nil || got[0] != "v" {
		t.Errorf("got %v, %v", got, err)
	}
}

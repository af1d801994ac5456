package registry

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hlsvod/hlsvod/internal/index"
)

func TestGetOrIndexSingleFlightsConcurrentMisses(t *testing.T) {
	var calls atomic.Int32
	indexFn := func(ctx context.Context, path string) (*index.Descriptor, error) {
		calls.Add(1)
		time.Sleep(10 * time.Millisecond)
		d := index.NewDescriptor()
		d.SourcePath = path
		d.ID = "descriptor-for-" + path
		return d, nil
	}

	r := New(indexFn, nil, time.Minute)

	var wg sync.WaitGroup
	results := make([]*index.Descriptor, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			d, err := r.GetOrIndex(context.Background(), "/test.mp4")
			if err != nil {
				t.Errorf("GetOrIndex: %v", err)
				return
			}
			results[i] = d
		}(i)
	}
	wg.Wait()

	if calls.Load() != 1 {
		t.Fatalf("expected exactly one indexer invocation, got %d", calls.Load())
	}
	for i, d := range results {
		if d != results[0] {
			t.Fatalf("result %d differs from result 0: all responses must be identical", i)
		}
	}
}

func TestGetOrIndexFailureDoesNotPoisonRegistry(t *testing.T) {
	attempt := 0
	indexFn := func(ctx context.Context, path string) (*index.Descriptor, error) {
		attempt++
		if attempt == 1 {
			return nil, errIndexFailed
		}
		return index.NewDescriptor(), nil
	}
	r := New(indexFn, nil, time.Minute)

	if _, err := r.GetOrIndex(context.Background(), "/test.mp4"); err == nil {
		t.Fatal("expected first index attempt to fail")
	}
	if _, err := r.GetOrIndex(context.Background(), "/test.mp4"); err != nil {
		t.Fatalf("second attempt should succeed after failure clears the cell: %v", err)
	}
}

func TestReapEvictsIdleDescriptors(t *testing.T) {
	indexFn := func(ctx context.Context, path string) (*index.Descriptor, error) {
		d := index.NewDescriptor()
		d.SourcePath = path
		return d, nil
	}
	r := New(indexFn, nil, 10*time.Millisecond)

	if _, err := r.GetOrIndex(context.Background(), "/test.mp4"); err != nil {
		t.Fatalf("GetOrIndex: %v", err)
	}
	if r.Len() != 1 {
		t.Fatalf("expected 1 tracked path, got %d", r.Len())
	}

	time.Sleep(20 * time.Millisecond)
	r.reapOnce()

	if r.Len() != 0 {
		t.Fatalf("expected idle descriptor to be reaped, got %d tracked paths", r.Len())
	}
}

var errIndexFailed = &indexError{"index failed"}

type indexError struct{ msg string }

func (e *indexError) Error() string { return e.msg }

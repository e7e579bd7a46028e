package blob

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
)

type flakyStore struct {
	Store
	failures int
	calls    int
	err      error
}

func (f *flakyStore) Get(_ context.Context, _ string) (*Object, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, f.err
	}
	return &Object{Body: io.NopCloser(strings.NewReader("ok"))}, nil
}

func noWait(t *testing.T) {
	t.Helper()
	prev := newReadBackOff
	newReadBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	t.Cleanup(func() { newReadBackOff = prev })
}

func TestGetWithRetry_RecoversAfterTwoFailures(t *testing.T) {
	noWait(t)
	store := &flakyStore{failures: 2, err: errors.New("connection reset")}
	obj, err := GetWithRetry(context.Background(), store, "k")
	if err != nil {
		t.Fatalf("GetWithRetry: %v", err)
	}
	obj.Body.Close()
	if store.calls != 3 {
		t.Errorf("calls = %d, want 3", store.calls)
	}
}

func TestGetWithRetry_GivesUp(t *testing.T) {
	noWait(t)
	store := &flakyStore{failures: 5, err: errors.New("connection reset")}
	if _, err := GetWithRetry(context.Background(), store, "k"); err == nil {
		t.Fatal("expected error after retries")
	}
	if store.calls != 3 {
		t.Errorf("calls = %d, want 3", store.calls)
	}
}

func TestGetWithRetry_NotFoundIsFinal(t *testing.T) {
	noWait(t)
	store := &flakyStore{failures: 5, err: ErrNotFound}
	_, err := GetWithRetry(context.Background(), store, "k")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if store.calls != 1 {
		t.Errorf("calls = %d, want 1", store.calls)
	}
}

func TestReadBackOffSchedule(t *testing.T) {
	b := newReadBackOff()
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}
	for i, w := range want {
		if got := b.NextBackOff(); got != w {
			t.Errorf("interval %d = %v, want %v", i, got, w)
		}
	}
}

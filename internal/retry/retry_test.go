package retry

import (
	"context"
	"errors"
	"testing"
)

var errFlaky = errors.New("flaky")
var errMissing = errors.New("missing")

func TestOnceRetriesTransientFailureOnce(t *testing.T) {
	calls := 0
	err := Once(context.Background(), func(err error) bool { return Transient(err) }, func(context.Context) error {
		calls++
		return errFlaky
	})
	if !errors.Is(err, errFlaky) {
		t.Fatalf("expected flaky error, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestOnceRecoversOnSecondAttempt(t *testing.T) {
	calls := 0
	err := Once(context.Background(), func(err error) bool { return Transient(err) }, func(context.Context) error {
		calls++
		if calls == 1 {
			return errFlaky
		}
		return nil
	})
	if err != nil || calls != 2 {
		t.Fatalf("expected recovery on retry, err=%v calls=%d", err, calls)
	}
}

func TestOnceSkipsPermanentAndCancelled(t *testing.T) {
	calls := 0
	retryable := func(err error) bool { return Transient(err, errMissing) }
	_ = Once(context.Background(), retryable, func(context.Context) error {
		calls++
		return errMissing
	})
	if calls != 1 {
		t.Fatalf("permanent error retried: calls=%d", calls)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls = 0
	_ = Once(ctx, retryable, func(context.Context) error {
		calls++
		return errFlaky
	})
	if calls != 1 {
		t.Fatalf("cancelled context retried: calls=%d", calls)
	}

	if Transient(context.DeadlineExceeded) {
		t.Fatal("deadline must not be transient")
	}
}

package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	logx "macromon/pkg/logx"
)

func TestGoPropagatesFirstError(t *testing.T) {
	t.Parallel()
	sup := New(context.Background(), WithLogger(logx.Nop()))

	sup.Go("fails", func(ctx context.Context) error {
		return errors.New("boom")
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := sup.Wait(ctx); err == nil || err.Error() != "fails: boom" {
		t.Fatalf("Wait = %v, want wrapped boom", err)
	}
}

func TestCancelOnError(t *testing.T) {
	t.Parallel()
	sup := New(context.Background(), WithLogger(logx.Nop()), WithCancelOnError(true))

	sup.Go("fails", func(ctx context.Context) error {
		return errors.New("boom")
	})
	sup.Go("waits", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	select {
	case <-sup.Context().Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context not canceled after goroutine error")
	}
}

func TestGoRecoversPanic(t *testing.T) {
	t.Parallel()
	sup := New(context.Background(), WithLogger(logx.Nop()))

	sup.Go("panics", func(ctx context.Context) error {
		panic("oops")
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := sup.Wait(ctx)
	if err == nil {
		t.Fatal("expected error from recovered panic")
	}
}

func TestGoRestartStopsOnNil(t *testing.T) {
	t.Parallel()
	sup := New(context.Background(), WithLogger(logx.Nop()))

	var runs int32
	sup.GoRestart("once", func(ctx context.Context) error {
		atomic.AddInt32(&runs, 1)
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := sup.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if n := atomic.LoadInt32(&runs); n != 1 {
		t.Fatalf("runs = %d, want 1 (nil return stops the loop)", n)
	}
}

func TestGoRestartRetriesOnError(t *testing.T) {
	t.Parallel()
	sup := New(context.Background(), WithLogger(logx.Nop()))

	var runs int32
	sup.GoRestart("flaky", func(ctx context.Context) error {
		if atomic.AddInt32(&runs, 1) < 3 {
			return errors.New("transient")
		}
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := sup.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if n := atomic.LoadInt32(&runs); n != 3 {
		t.Fatalf("runs = %d, want 3", n)
	}
}

func TestStopCancelsAndWaits(t *testing.T) {
	t.Parallel()
	sup := New(context.Background(), WithLogger(logx.Nop()))

	done := make(chan struct{})
	sup.Go0("loop", func(ctx context.Context) {
		<-ctx.Done()
		close(done)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := sup.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	select {
	case <-done:
	default:
		t.Fatal("goroutine still running after Stop returned")
	}
}

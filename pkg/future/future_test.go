package future

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"
)

func TestFuture_ResolveOnce(t *testing.T) {
	f := New[int]()
	if !f.Resolve(1) {
		t.Fatal("first resolve should settle the future")
	}
	if f.Resolve(2) {
		t.Fatal("second resolve should be ignored")
	}
	if f.Reject(errors.New("late")) {
		t.Fatal("reject after resolve should be ignored")
	}

	v, err := f.Await(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 1 {
		t.Fatalf("value = %d, want 1", v)
	}
}

func TestFuture_RejectKeepsError(t *testing.T) {
	boom := errors.New("boom")
	f := New[string]()
	f.Reject(boom)
	f.Resolve("ignored")

	_, err := f.Await(context.Background())
	if err != boom {
		t.Fatalf("err = %v, want %v", err, boom)
	}
}

func TestFuture_RejectNil(t *testing.T) {
	f := Rejected[int](nil)
	_, ok, err := f.Result()
	if !ok {
		t.Fatal("expected settled future")
	}
	if !errors.Is(err, ErrNilRejection) {
		t.Fatalf("err = %v, want ErrNilRejection", err)
	}
}

func TestFuture_ResultPending(t *testing.T) {
	f := New[int]()
	if _, ok, _ := f.Result(); ok {
		t.Fatal("pending future reported as settled")
	}
	select {
	case <-f.Done():
		t.Fatal("done channel closed before settlement")
	default:
	}
}

func TestFuture_AwaitContextCancelled(t *testing.T) {
	f := New[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := f.Await(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}

	// The future itself is unaffected by the caller giving up.
	f.Resolve(7)
	v, err := f.Await(context.Background())
	if err != nil || v != 7 {
		t.Fatalf("got (%d, %v), want (7, nil)", v, err)
	}
}

func TestThen_ChainsValue(t *testing.T) {
	src := New[int]()
	out := Then(src, func(v int) (string, error) {
		return strconv.Itoa(v * 2), nil
	})

	go src.Resolve(21)

	v, err := out.Await(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "42" {
		t.Fatalf("value = %q, want 42", v)
	}
}

func TestThen_ForwardsRejection(t *testing.T) {
	boom := errors.New("boom")
	called := false
	out := Then(Rejected[int](boom), func(v int) (int, error) {
		called = true
		return v, nil
	})

	_, err := out.Await(context.Background())
	if err != boom {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if called {
		t.Fatal("continuation must not run on rejection")
	}
}

func TestThen_ContinuationError(t *testing.T) {
	fail := errors.New("decode failed")
	out := Then(Resolved(1), func(int) (int, error) { return 0, fail })
	if _, err := out.Await(context.Background()); err != fail {
		t.Fatalf("err = %v, want %v", err, fail)
	}
}

func TestThen_SettlesAfterSource(t *testing.T) {
	src := New[int]()
	out := Then(src, func(v int) (int, error) { return v, nil })

	select {
	case <-out.Done():
		t.Fatal("derived future settled before its source")
	case <-time.After(20 * time.Millisecond):
	}

	src.Resolve(3)
	<-out.Done()
	if _, ok, _ := src.Result(); !ok {
		t.Fatal("source must be settled once the derived future is")
	}
}

func TestFuture_ConcurrentSettle(t *testing.T) {
	f := New[int]()
	var wg sync.WaitGroup
	wins := make(chan int, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if f.Resolve(i) {
				wins <- i
			}
		}(i)
	}
	wg.Wait()
	close(wins)

	count := 0
	for range wins {
		count++
	}
	if count != 1 {
		t.Fatalf("settled %d times, want exactly once", count)
	}
}

package server_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/example/go-narrator/internal/server"
)

func TestSynth_OversizedTextRejectedAs413(t *testing.T) {
	h := server.NewHandler(ready(), nil, server.WithMaxTextBytes(10))

	rec := post(h, "/synth", `{"text":"`+strings.Repeat("a", 11)+`"}`)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("want 413, got %d", rec.Code)
	}

	rec = post(h, "/speak", `{"text":"`+strings.Repeat("a", 11)+`"}`)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("/speak: want 413, got %d", rec.Code)
	}
}

func TestSynth_TextAtExactLimitIsAccepted(t *testing.T) {
	h := server.NewHandler(ready(), nil, server.WithMaxTextBytes(10))

	if rec := post(h, "/synth", `{"text":"`+strings.Repeat("a", 10)+`"}`); rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}
}

func TestSynth_RequestTimeoutCancelsInFlight(t *testing.T) {
	n := ready()
	n.render = func(ctx context.Context, _ string) ([]float32, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	h := server.NewHandler(n, nil, server.WithRequestTimeout(20*time.Millisecond))

	start := time.Now()
	rec := post(h, "/synth", `{"text":"slow"}`)

	if rec.Code != http.StatusGatewayTimeout {
		t.Fatalf("want 504, got %d", rec.Code)
	}

	if time.Since(start) > 2*time.Second {
		t.Fatal("request did not honour timeout")
	}
}

func TestSynth_ZeroLimitsKeepDefaults(t *testing.T) {
	h := server.NewHandler(ready(), nil, server.WithRequestTimeout(0), server.WithMaxTextBytes(0))

	if rec := post(h, "/synth", `{"text":"Hello."}`); rec.Code != http.StatusOK {
		t.Fatalf("want 200 with default limits, got %d: %s", rec.Code, rec.Body.String())
	}

	if rec := post(h, "/speak", `{"text":"Hello."}`); rec.Code != http.StatusAccepted {
		t.Fatalf("/speak: want 202 with default limits, got %d", rec.Code)
	}
}

func TestSynth_ConcurrencyThrottling(t *testing.T) {
	const workers = 2
	const totalRequests = 5

	var (
		mu         sync.Mutex
		peak       int
		current    atomic.Int32
		releaseAll = make(chan struct{})
	)

	n := ready()
	n.render = func(context.Context, string) ([]float32, error) {
		c := int(current.Add(1))
		defer current.Add(-1)

		mu.Lock()
		peak = max(peak, c)
		mu.Unlock()

		<-releaseAll
		return []float32{0}, nil
	}

	h := server.NewHandler(n, nil, server.WithWorkers(workers))

	var wg sync.WaitGroup

	codes := make([]int, totalRequests)
	for i := range totalRequests {
		wg.Add(1)

		go func(idx int) {
			defer wg.Done()
			codes[idx] = post(h, "/synth", `{"text":"Hi."}`).Code
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(releaseAll)
	wg.Wait()

	mu.Lock()
	got := peak
	mu.Unlock()

	if got > workers {
		t.Errorf("peak concurrency %d exceeded worker limit %d", got, workers)
	}

	for i, code := range codes {
		if code != http.StatusOK {
			t.Errorf("request %d: want 200, got %d", i, code)
		}
	}
}

func TestSynth_WaiterCancelledWhileThrottled(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	n := ready()
	n.render = func(ctx context.Context, _ string) ([]float32, error) {
		select {
		case <-release:
			return []float32{0}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	h := server.NewHandler(n, nil, server.WithWorkers(1))

	go post(h, "/synth", `{"text":"First."}`)

	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/synth", bytes.NewBufferString(`{"text":"Second."}`)).WithContext(ctx)
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("want 503 for cancelled waiter, got %d", rec.Code)
	}
}

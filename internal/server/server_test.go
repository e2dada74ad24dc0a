package server

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/clockbridge/clockbridge/internal/testutil"
)

func newTestServer(t *testing.T, handler http.Handler) (*Server, net.Listener) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := New(handler, Options{
		ReadTimeout:     time.Second,
		WriteTimeout:    time.Second,
		ShutdownTimeout: 2 * time.Second,
	}, testutil.DiscardLogger())
	return srv, ln
}

func TestServer_ServeAndShutdownOrder(t *testing.T) {
	t.Parallel()

	srv, ln := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "ok")
	}))

	var mu sync.Mutex
	var order []string
	record := func(name string) ShutdownFunc {
		return func(ctx context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, name)
			return nil
		}
	}
	srv.OnShutdown("redis", record("redis"))
	srv.OnShutdown("postgres", record("postgres"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if string(body) != "ok" {
		t.Errorf("body = %q, want ok", body)
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}

	if len(order) != 2 || order[0] != "postgres" || order[1] != "redis" {
		t.Errorf("shutdown order = %v, want [postgres redis]", order)
	}
}

func TestServer_ShutdownErrorsJoined(t *testing.T) {
	t.Parallel()

	srv, ln := newTestServer(t, http.NotFoundHandler())

	errRedis := errors.New("redis close failed")
	srv.OnShutdown("redis", func(ctx context.Context) error { return errRedis })
	srv.OnShutdown("postgres", func(ctx context.Context) error { return nil })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := srv.Serve(ctx, ln)
	if !errors.Is(err, errRedis) {
		t.Fatalf("expected joined redis error, got %v", err)
	}
}

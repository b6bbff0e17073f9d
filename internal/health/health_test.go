package health

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthgrpc "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

const bufSize = 1024 * 1024

func TestServingTransitions(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	lis := bufconn.Listen(bufSize)
	srv := New(lis, "nupi.stt-pcm-daemon", slog.New(slog.NewTextHandler(io.Discard, nil)))
	go func() {
		if err := srv.Serve(); err != nil {
			t.Errorf("Serve() error: %v", err)
		}
	}()
	t.Cleanup(func() { srv.Stop(time.Second) })

	conn, err := grpc.DialContext(ctx, "bufconn",
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) {
			return lis.Dial()
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("DialContext error: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	client := healthgrpc.NewHealthClient(conn)

	check := func(service string, want healthgrpc.HealthCheckResponse_ServingStatus) {
		t.Helper()
		resp, err := client.Check(ctx, &healthgrpc.HealthCheckRequest{Service: service})
		if err != nil {
			t.Fatalf("Check(%q) error: %v", service, err)
		}
		if resp.GetStatus() != want {
			t.Fatalf("Check(%q) = %s, want %s", service, resp.GetStatus(), want)
		}
	}

	check("", healthgrpc.HealthCheckResponse_NOT_SERVING)
	check("nupi.stt-pcm-daemon", healthgrpc.HealthCheckResponse_NOT_SERVING)

	srv.SetServing(true)
	check("", healthgrpc.HealthCheckResponse_SERVING)
	check("nupi.stt-pcm-daemon", healthgrpc.HealthCheckResponse_SERVING)

	srv.SetServing(false)
	check("nupi.stt-pcm-daemon", healthgrpc.HealthCheckResponse_NOT_SERVING)
}

func TestNilServerIsNoop(t *testing.T) {
	var srv *Server
	srv.SetServing(true)
	srv.Stop(time.Millisecond)
	if srv.Addr() != nil {
		t.Fatalf("expected nil address")
	}
}

func TestListenRejectsBadAddress(t *testing.T) {
	if _, err := Listen("not-an-address", "svc", nil); err == nil {
		t.Fatalf("expected listen error")
	}
}

func TestListenServesOnTCP(t *testing.T) {
	srv, err := Listen("127.0.0.1:0", "svc", slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("Listen error: %v", err)
	}
	if srv.Addr() == nil {
		t.Fatalf("expected bound address")
	}
	srv.Stop(time.Second)
	select {
	case <-srv.done:
	case <-time.After(2 * time.Second):
		t.Fatalf("server did not stop")
	}
}

package grpcserver

import (
	"context"
	"errors"
	"io"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

type fakeStore struct {
	down atomic.Bool
}

func (f *fakeStore) Ping(context.Context) error {
	if f.down.Load() {
		return errors.New("store down")
	}
	return nil
}

func startServer(t *testing.T, store Pinger) (*Server, healthpb.HealthClient) {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := NewServer(store, log.New(io.Discard))
	gs := grpc.NewServer()
	srv.Register(gs)
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return srv, healthpb.NewHealthClient(conn)
}

// servingStatus reports UNKNOWN when the check itself fails, e.g. for a
// service that has not been registered yet.
func servingStatus(c healthpb.HealthClient, service string) healthpb.HealthCheckResponse_ServingStatus {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := c.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN
	}
	return resp.GetStatus()
}

func TestHealthFollowsStore(t *testing.T) {
	store := &fakeStore{}
	srv, client := startServer(t, store)

	require.Equal(t, healthpb.HealthCheckResponse_SERVING, srv.Check(context.Background()))
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, servingStatus(client, ""))
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, servingStatus(client, CatalogService))

	store.down.Store(true)
	require.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, srv.Check(context.Background()))
	require.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, servingStatus(client, CatalogService))
}

func TestWatchRechecks(t *testing.T) {
	store := &fakeStore{}
	srv, client := startServer(t, store)
	srv.Interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		srv.Watch(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return servingStatus(client, CatalogService) == healthpb.HealthCheckResponse_SERVING
	}, 2*time.Second, 10*time.Millisecond)

	store.down.Store(true)
	require.Eventually(t, func() bool {
		return servingStatus(client, CatalogService) == healthpb.HealthCheckResponse_NOT_SERVING
	}, 2*time.Second, 10*time.Millisecond)

	store.down.Store(false)
	cancel()
	<-done
	// shutdown pins everything to NOT_SERVING
	require.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, servingStatus(client, ""))
}

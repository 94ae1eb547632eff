package metrics

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestServerExposesRegistry(t *testing.T) {
	registry := prometheus.NewRegistry()
	counter := With(registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: "test",
		Name:      "things_total",
		Help:      "Things",
	}, []string{"kind"})
	counter.WithLabelValues("a").Add(3)

	srv, err := StartServer(registry, "127.0.0.1", 0)
	require.NoError(t, err)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, srv.Stop(ctx))
	}()

	resp, err := http.Get("http://" + srv.Addr().String() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `test_things_total{kind="a"} 3`)

	snapshot := Gather(t, registry)
	require.Equal(t, 3.0, snapshot.Counter("test_things_total", map[string]string{"kind": "a"}))
}

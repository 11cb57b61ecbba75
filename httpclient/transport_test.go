package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/kroma-labs/nock/nock"
)

func readAll(t *testing.T, resp *http.Response) string {
	t.Helper()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	return string(data)
}

func TestTransport_SingleUseExpectation(t *testing.T) {
	t.Parallel()

	reg := nock.NewRegistry()
	client := New(WithRegistry(reg))

	n := reg.New("http://h").Get("/a").Reply(http.StatusOK, "body")
	require.NoError(t, n.Err())

	resp, err := client.Get("http://h/a")
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "body", readAll(t, resp))
	assert.Equal(t, "http://h/a", resp.Request.URL.String())
	assert.True(t, n.Done())
}

func TestTransport_TimesThenFallsThrough(t *testing.T) {
	t.Parallel()

	var realCalls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		realCalls.Add(1)
		w.WriteHeader(http.StatusTeapot)
	}))
	defer server.Close()

	reg := nock.NewRegistry()
	client := New(WithRegistry(reg))

	n := reg.New(server.URL).Get("/a").Reply(http.StatusOK, "").Times(2)
	require.NoError(t, n.Err())

	resp, err := client.Get(server.URL + "/a")
	require.NoError(t, err)
	readAll(t, resp)
	assert.False(t, n.Done())

	resp, err = client.Get(server.URL + "/a")
	require.NoError(t, err)
	readAll(t, resp)
	assert.True(t, n.Done())
	assert.Equal(t, int32(0), realCalls.Load())

	resp, err = client.Get(server.URL + "/a")
	require.NoError(t, err)
	readAll(t, resp)
	assert.Equal(t, http.StatusTeapot, resp.StatusCode)
	assert.Equal(t, int32(1), realCalls.Load())
}

func TestTransport_ResponderWithWildcard(t *testing.T) {
	t.Parallel()

	reg := nock.NewRegistry()
	client := New(WithRegistry(reg))

	n := reg.New("http://h").
		Get("/*/?location=true").
		ReplyFunc(http.StatusOK, func(req nock.RequestDetails) (nock.ResponseDetails, error) {
			return nock.ResponseDetails{
				Body:   fmt.Sprintf(`{"src":"%s"}`, req.URL),
				Header: http.Header{"Location": {req.URL}},
			}, nil
		}).
		Times(2)
	require.NoError(t, n.Err())

	for _, segment := range []string{"one", "two"} {
		resp, err := client.Get("http://h/" + segment + "/?location=true")
		require.NoError(t, err)

		want := "http://h/" + segment + "/"
		assert.JSONEq(t, fmt.Sprintf(`{"src":"%s"}`, want), readAll(t, resp))
		assert.Equal(t, want, resp.Header.Get("Location"))
	}
	assert.True(t, n.Done())
}

func TestTransport_HeaderAndBodyPredicate(t *testing.T) {
	t.Parallel()

	var (
		mu         sync.Mutex
		realBodies []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		realBodies = append(realBodies, string(body))
		mu.Unlock()
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	reg := nock.NewRegistry()
	client := New(WithRegistry(reg))

	n := reg.New(server.URL).
		Post("/a", nock.BodyFunc(func(body string) bool { return strings.Contains(body, "AddFunds") })).
		MatchHeader("cheese", "gravy").
		Reply(http.StatusOK, "added")
	require.NoError(t, n.Err())

	body := `{"action":"AddFunds"}`

	req, err := http.NewRequest(http.MethodPost, server.URL+"/a", strings.NewReader(body))
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	readAll(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.False(t, n.Done())

	req, err = http.NewRequest(http.MethodPost, server.URL+"/a", strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("cheese", "gravy")
	resp, err = client.Do(req)
	require.NoError(t, err)
	assert.Equal(t, "added", readAll(t, resp))
	assert.True(t, n.Done())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{body}, realBodies)
}

func TestTransport_ErrorReply(t *testing.T) {
	t.Parallel()

	reg := nock.NewRegistry()
	client := New(WithRegistry(reg))

	replyErr := errors.New("connection reset by nock")
	n := reg.New("http://h").Get("/a").ReplyError(replyErr)
	require.NoError(t, n.Err())

	_, err := client.Get("http://h/a")
	require.Error(t, err)
	assert.ErrorIs(t, err, replyErr)
	assert.True(t, n.Done())
	assert.Equal(t, 0, reg.Len())
}

func TestTransport_ResponderError(t *testing.T) {
	t.Parallel()

	reg := nock.NewRegistry()
	client := New(WithRegistry(reg))

	cause := errors.New("no fixture")
	reg.New("http://h").Get("/a").ReplyFunc(http.StatusOK, func(nock.RequestDetails) (nock.ResponseDetails, error) {
		return nock.ResponseDetails{}, cause
	})

	_, err := client.Get("http://h/a")
	assert.ErrorIs(t, err, nock.ErrResponderFailed)
	assert.ErrorIs(t, err, cause)
}

func TestTransport_InactiveRegistryPassesThrough(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("real"))
	}))
	defer server.Close()

	reg := nock.NewRegistry()
	client := New(WithRegistry(reg))

	reg.New(server.URL).Get("/a").Reply(http.StatusOK, "nocked")
	reg.SetActive(false)

	resp, err := client.Get(server.URL + "/a")
	require.NoError(t, err)
	assert.Equal(t, "real", readAll(t, resp))
	assert.Equal(t, 1, reg.Len())
}

func TestTransport_Observability(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer tp.Shutdown(context.Background())
	defer mp.Shutdown(context.Background())

	reg := nock.NewRegistry()
	client := New(
		WithRegistry(reg),
		WithTracerProvider(tp),
		WithMeterProvider(mp),
		WithServiceName("test-service"),
	)

	reg.New(server.URL).Get("/matched").Reply(http.StatusOK, "")

	resp, err := client.Get(server.URL + "/matched")
	require.NoError(t, err)
	readAll(t, resp)

	resp, err = client.Get(server.URL + "/real")
	require.NoError(t, err)
	readAll(t, resp)

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "nock GET", spans[0].Name)
	assert.Contains(t, spans[0].Attributes, attribute.Bool("nock.matched", true))
	assert.Contains(t, spans[1].Attributes, attribute.Bool("nock.matched", false))
	assert.Contains(t, spans[1].Attributes, attribute.String("service.name", "test-service"))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	assert.Equal(t, int64(1), counterValue(rm, "nock.client.requests", outcomeMatched))
	assert.Equal(t, int64(1), counterValue(rm, "nock.client.requests", outcomePassthrough))
}

// counterValue sums the data points of an Int64 counter with the given
// nock.outcome attribute.
func counterValue(rm metricdata.ResourceMetrics, name, outcome string) int64 {
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				if v, ok := dp.Attributes.Value("nock.outcome"); ok && v.AsString() == outcome {
					total += dp.Value
				}
			}
		}
	}
	return total
}

package nock

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func newTestRequest(t *testing.T, method, target string, header http.Header, body string) *Request {
	t.Helper()

	httpReq := httptest.NewRequest(method, target, strings.NewReader(body))
	for k, v := range header {
		httpReq.Header[k] = v
	}

	req, err := NewRequest(httpReq)
	require.NoError(t, err)
	return req
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	return string(data)
}

type fakeInterceptor struct {
	starts   atomic.Int32
	stops    atomic.Int32
	startErr error
}

func (f *fakeInterceptor) Start() error {
	if f.startErr != nil {
		return f.startErr
	}
	f.starts.Add(1)
	return nil
}

func (f *fakeInterceptor) Stop(context.Context) error {
	f.stops.Add(1)
	return nil
}

func TestRegistry_SingleUseExpectation(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	n := reg.New("http://h").Get("/a").Reply(http.StatusOK, "body")
	require.NoError(t, n.Err())
	assert.False(t, n.Done())

	e := reg.Match(newTestRequest(t, http.MethodGet, "http://h/a", nil, ""))
	require.NotNil(t, e)

	resp, err := BuildResponse(e, newTestRequest(t, http.MethodGet, "http://h/a", nil, ""))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "body", readBody(t, resp))
	assert.True(t, n.Done())
	assert.Equal(t, 0, reg.Len())

	assert.Nil(t, reg.Match(newTestRequest(t, http.MethodGet, "http://h/a", nil, "")))
}

func TestRegistry_Times(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	n := reg.New("http://h").Get("/a").Reply(http.StatusOK, "").Times(2)
	require.NoError(t, n.Err())

	require.NotNil(t, reg.Match(newTestRequest(t, http.MethodGet, "http://h/a", nil, "")))
	assert.False(t, n.Done())
	assert.Equal(t, 1, n.Expectation().Times())

	require.NotNil(t, reg.Match(newTestRequest(t, http.MethodGet, "http://h/a", nil, "")))
	assert.True(t, n.Done())

	assert.Nil(t, reg.Match(newTestRequest(t, http.MethodGet, "http://h/a", nil, "")))
}

func TestRegistry_ResponderWithWildcardAndQuery(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	n := reg.New("http://h").
		Get("/*/?location=true").
		ReplyFunc(http.StatusOK, func(req RequestDetails) (ResponseDetails, error) {
			return ResponseDetails{
				Body:   fmt.Sprintf(`{"src":"%s"}`, req.URL),
				Header: http.Header{"Location": {req.URL}},
			}, nil
		}).
		Times(2)
	require.NoError(t, n.Err())

	for _, target := range []string{"http://h/one/?location=true", "http://h/two/?location=true"} {
		req := newTestRequest(t, http.MethodGet, target, nil, "")
		e := reg.Match(req)
		require.NotNil(t, e, target)

		resp, err := BuildResponse(e, req)
		require.NoError(t, err)

		stripped := strings.TrimSuffix(target, "?location=true")
		assert.JSONEq(t, fmt.Sprintf(`{"src":"%s"}`, stripped), readBody(t, resp))
		assert.Equal(t, stripped, resp.Header.Get("Location"))
	}
	assert.True(t, n.Done())
}

func TestRegistry_HeaderAndBodyPredicate(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	n := reg.New("http://h").
		Post("/a", BodyFunc(func(body string) bool { return strings.Contains(body, "AddFunds") })).
		MatchHeader("cheese", "gravy").
		Reply(http.StatusOK, "").
		Times(2)
	require.NoError(t, n.Err())

	body := `{"action":"AddFunds","amount":10}`

	assert.NotNil(t, reg.Match(newTestRequest(t, http.MethodPost, "http://h/a", http.Header{"Cheese": {"gravy"}}, body)))
	assert.Nil(t, reg.Match(newTestRequest(t, http.MethodPost, "http://h/a", nil, body)))
	assert.Nil(t, reg.Match(newTestRequest(t, http.MethodPost, "http://h/a", http.Header{"Cheese": {"gravy"}}, `{}`)))
}

func TestRegistry_ErrorReply(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	replyErr := errors.New("connection reset")
	n := reg.New("http://h").Get("/a").ReplyError(replyErr)
	require.NoError(t, n.Err())

	req := newTestRequest(t, http.MethodGet, "http://h/a", nil, "")
	e := reg.Match(req)
	require.NotNil(t, e)

	resp, err := BuildResponse(e, req)
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, replyErr)
	assert.True(t, n.Done())
	assert.Equal(t, 0, reg.Len())
}

func TestRegistry_FirstRegisteredWins(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	wide := reg.New("http://h").Get("/*").Reply(http.StatusOK, "wide")
	narrow := reg.New("http://h").Get("/a").Reply(http.StatusOK, "narrow")

	e := reg.Match(newTestRequest(t, http.MethodGet, "http://h/a", nil, ""))
	assert.Same(t, wide.Expectation(), e)

	e = reg.Match(newTestRequest(t, http.MethodGet, "http://h/a", nil, ""))
	assert.Same(t, narrow.Expectation(), e)
}

func TestRegistry_ConcurrentMatchesConsumeOnce(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	n := reg.New("http://h").Get("/a").Reply(http.StatusOK, "").Times(5)
	require.NoError(t, n.Err())

	var matched atomic.Int32
	g, _ := errgroup.WithContext(context.Background())
	for range 50 {
		g.Go(func() error {
			httpReq := httptest.NewRequest(http.MethodGet, "http://h/a", nil)
			req, err := NewRequest(httpReq)
			if err != nil {
				return err
			}
			if reg.Match(req) != nil {
				matched.Add(1)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(5), matched.Load())
	assert.True(t, n.Done())
	assert.Equal(t, int64(5), reg.Stats().Matched)
	assert.Equal(t, int64(45), reg.Stats().Missed)
}

func TestRegistry_RemoveAndClearAll(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	a := reg.New("http://h").Get("/a").Reply(http.StatusOK, "")
	reg.New("http://h").Get("/b").Reply(http.StatusOK, "")
	require.Equal(t, 2, reg.Len())

	assert.True(t, reg.Remove(a.Expectation()))
	assert.False(t, reg.Remove(a.Expectation()))
	assert.Equal(t, 1, reg.Len())

	reg.ClearAll()
	assert.Equal(t, 0, reg.Len())
	assert.Empty(t, reg.Pending())
}

func TestRegistry_InterceptorLifecycle(t *testing.T) {
	t.Parallel()

	t.Run("given a registered interceptor, then it starts once on first builder", func(t *testing.T) {
		t.Parallel()

		reg := NewRegistry()
		icpt := &fakeInterceptor{}
		require.NoError(t, reg.UseInterceptor(icpt))
		assert.False(t, reg.Active())

		reg.New("http://h")
		reg.New("http://h")
		assert.Equal(t, int32(1), icpt.starts.Load())
		assert.True(t, reg.Active())

		assert.ErrorIs(t, reg.UseInterceptor(&fakeInterceptor{}), ErrInterceptorRunning)

		require.NoError(t, reg.Stop(context.Background()))
		require.NoError(t, reg.Stop(context.Background()))
		assert.Equal(t, int32(1), icpt.stops.Load())
		assert.False(t, reg.Active())
	})

	t.Run("given a failing interceptor, then the builder reports the error", func(t *testing.T) {
		t.Parallel()

		reg := NewRegistry()
		startErr := errors.New("address already in use")
		require.NoError(t, reg.UseInterceptor(&fakeInterceptor{startErr: startErr}))

		n := reg.New("http://h").Get("/a").Reply(http.StatusOK, "")
		assert.ErrorIs(t, n.Err(), startErr)
		assert.Nil(t, n.Expectation())
		assert.Equal(t, 0, reg.Len())
	})

	t.Run("given an invalid url, then the interceptor is not started", func(t *testing.T) {
		t.Parallel()

		reg := NewRegistry()
		icpt := &fakeInterceptor{}
		require.NoError(t, reg.UseInterceptor(icpt))

		for _, baseURL := range []string{"", "http://h/"} {
			n := reg.New(baseURL)
			assert.ErrorIs(t, n.Err(), ErrInvalidArgument)
		}

		assert.Equal(t, int32(0), icpt.starts.Load())
		assert.False(t, reg.Active())
	})

	t.Run("given a stopped registry, then a new builder restarts the interceptor", func(t *testing.T) {
		t.Parallel()

		reg := NewRegistry()
		icpt := &fakeInterceptor{}
		require.NoError(t, reg.UseInterceptor(icpt))

		reg.New("http://h")
		require.NoError(t, reg.Stop(context.Background()))
		reg.New("http://h")

		assert.Equal(t, int32(2), icpt.starts.Load())
	})
}

func TestRegistry_Explain(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.New("http://h").Post("/a", Body("x")).Reply(http.StatusOK, "")
	reg.New("http://h").Get("/b").Reply(http.StatusOK, "")

	results := reg.Explain(newTestRequest(t, http.MethodPost, "http://h/a", nil, "y"))
	require.Len(t, results, 2)

	assert.True(t, results[0].URL)
	assert.True(t, results[0].Method)
	assert.False(t, results[0].Body)
	assert.Equal(t, []string{"body"}, results[0].Failed())

	assert.Equal(t, []string{"url", "method"}, results[1].Failed())
	assert.Equal(t, 2, reg.Len())
}

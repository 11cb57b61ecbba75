package nock

import (
	"fmt"
	"maps"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// recorderSkipHeaders are headers set by the transport rather than the
// caller; they are left out of recorded snippets.
var recorderSkipHeaders = []string{"host", "proxy-connection", "content-length", "expect"}

// Recorder turns observed requests into builder snippets that can be
// pasted into a test. Attach it with WithRecorder and call Record.
type Recorder struct {
	mu        sync.Mutex
	data      strings.Builder
	recording bool
	output    bool
	logger    zerolog.Logger
}

// NewRecorder creates a stopped recorder. Snippets are written to logger
// when recording with output enabled.
func NewRecorder(logger zerolog.Logger) *Recorder {
	return &Recorder{logger: logger}
}

// Record starts recording. With output set, each snippet is also logged.
func (r *Recorder) Record(output bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recording = true
	r.output = output
}

// Stop stops recording. The recorded snippets are kept.
func (r *Recorder) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recording = false
}

// Clear discards the recorded snippets.
func (r *Recorder) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data.Reset()
}

// IsRecording reports whether the recorder is recording.
func (r *Recorder) IsRecording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// Recording returns every snippet recorded so far.
func (r *Recorder) Recording() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.data.String()
}

// RecordRequest appends a snippet for req if the recorder is recording.
func (r *Recorder) RecordRequest(req *Request) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.recording {
		return
	}

	snippet := renderSnippet(req)
	r.data.WriteString(snippet)
	if r.output {
		r.logger.Info().Str("method", req.Method).Str("url", req.URL).Msg(snippet)
	}
}

func renderSnippet(req *Request) string {
	base, path := splitURL(req.URL)

	var b strings.Builder
	b.WriteString("\n")
	fmt.Fprintf(&b, "nock.New(%s).\n", strconv.Quote(base))
	fmt.Fprintf(&b, "\t%s(%s).\n", methodName(req.Method), strconv.Quote(path))

	for _, key := range slices.Sorted(maps.Keys(req.Header)) {
		if slices.Contains(recorderSkipHeaders, strings.ToLower(key)) {
			continue
		}
		fmt.Fprintf(&b, "\tMatchHeader(%s, %s).\n",
			strconv.Quote(key), strconv.Quote(strings.Join(req.Header[key], ",")))
	}

	if len(req.Query) > 0 {
		b.WriteString("\tQuery(true).\n")
	}
	b.WriteString("\tReply(http.StatusOK, \"Response Body\")\n")
	return b.String()
}

// splitURL splits an absolute URL into its scheme://host part and its path.
func splitURL(raw string) (base, path string) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw, "/"
	}
	path = u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return u.Scheme + "://" + u.Host, path
}

func methodName(method string) string {
	if method == "" {
		return "Get"
	}
	lower := strings.ToLower(method)
	return strings.ToUpper(lower[:1]) + lower[1:]
}

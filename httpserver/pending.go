package httpserver

import (
	"fmt"
	"net/http"

	"github.com/kroma-labs/nock/nock"
)

// PendingExpectation describes one expectation still waiting for a request.
type PendingExpectation struct {
	Method    string `json:"method"`
	Pattern   string `json:"pattern"`
	Reply     string `json:"reply"`
	Remaining int    `json:"remaining"`
}

// PendingResponse is the payload of the pending endpoint.
type PendingResponse struct {
	Active  bool                 `json:"active"`
	Matched int64                `json:"matched"`
	Missed  int64                `json:"missed"`
	Pending []PendingExpectation `json:"pending"`
}

// PendingHandler returns an http.Handler listing the pending expectations
// of reg as JSON. It helps find the expectation a test expected to be
// consumed.
func PendingHandler(reg *nock.Registry) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		stats := reg.Stats()
		pending := reg.Pending()

		data := PendingResponse{
			Active:  reg.Active(),
			Matched: stats.Matched,
			Missed:  stats.Missed,
			Pending: make([]PendingExpectation, 0, len(pending)),
		}
		for _, e := range pending {
			data.Pending = append(data.Pending, PendingExpectation{
				Method:    e.Method().String(),
				Pattern:   e.Pattern(),
				Reply:     e.Reply().String(),
				Remaining: e.Times(),
			})
		}

		WriteJSON(w, http.StatusOK, Response[PendingResponse]{
			Data:    data,
			Message: fmt.Sprintf("%d pending expectation(s)", len(data.Pending)),
		})
	})
}

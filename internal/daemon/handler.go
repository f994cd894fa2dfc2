package daemon

import (
	"context"

	"github.com/danmuck/regis/internal/protocol/schema"
)

// Handler answers one decoded client request.
type Handler interface {
	Handle(ctx context.Context, req schema.Request) (schema.Response, error)
}

type HandlerFunc func(ctx context.Context, req schema.Request) (schema.Response, error)

func (f HandlerFunc) Handle(ctx context.Context, req schema.Request) (schema.Response, error) {
	return f(ctx, req)
}

// HistoryHandler answers Status with the latest snapshot and Metrics(n) with
// the last n snapshots. Before the first snapshot Status carries an empty one.
type HistoryHandler struct {
	History *History
}

func (h HistoryHandler) Handle(_ context.Context, req schema.Request) (schema.Response, error) {
	if err := req.Validate(); err != nil {
		return schema.Response{}, err
	}
	switch req.Kind {
	case schema.RequestStatus:
		latest, _ := h.History.Latest()
		return schema.StatusResponse(latest), nil
	default:
		return schema.MetricsResponse(h.History.Recent(req.Count)), nil
	}
}

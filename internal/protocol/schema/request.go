package schema

import (
	"encoding/json"
	"fmt"
	"math"
)

type RequestKind string

const (
	RequestStatus  RequestKind = "Status"
	RequestMetrics RequestKind = "Metrics"
)

// Request is one client->daemon query.
type Request struct {
	Kind RequestKind
	// Count is the number of snapshots asked for by a Metrics request.
	Count int
}

func StatusRequest() Request {
	return Request{Kind: RequestStatus}
}

func MetricsRequest(count int) Request {
	return Request{Kind: RequestMetrics, Count: count}
}

func (r Request) Validate() error {
	switch r.Kind {
	case RequestStatus:
		return nil
	case RequestMetrics:
		if r.Count < 0 {
			return fmt.Errorf("%w: metrics count must not be negative: %d", ErrInvalidEnvelope, r.Count)
		}
		return nil
	default:
		return fmt.Errorf("%w: request %q", ErrUnknownVariant, r.Kind)
	}
}

func (r Request) MarshalJSON() ([]byte, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if r.Kind == RequestStatus {
		return marshalUnit(string(RequestStatus))
	}
	return marshalTagged(string(RequestMetrics), r.Count)
}

func (r *Request) UnmarshalJSON(data []byte) error {
	tag, body, err := decodeTagged(data)
	if err != nil {
		return err
	}
	switch RequestKind(tag) {
	case RequestStatus:
		if err := rejectBody(tag, body); err != nil {
			return err
		}
		*r = StatusRequest()
		return nil
	case RequestMetrics:
		if err := requireBody(tag, body); err != nil {
			return err
		}
		var count uint64
		if err := json.Unmarshal(body, &count); err != nil {
			return fmt.Errorf("%w: metrics count: %w", ErrInvalidEnvelope, err)
		}
		// any count past the history size means "everything retained"
		*r = MetricsRequest(int(min(count, math.MaxInt)))
		return nil
	default:
		return fmt.Errorf("%w: request %q", ErrUnknownVariant, tag)
	}
}

package schema

import (
	"encoding/json"
	"fmt"
)

// ServerStatus answers a Status request with the latest snapshot.
type ServerStatus struct {
	Info CollectedMetrics `json:"info"`
}

// MetricsReport answers a Metrics request, oldest snapshot first.
type MetricsReport struct {
	Info []CollectedMetrics `json:"info"`
}

// Response carries exactly one of Status or Metrics.
type Response struct {
	Status  *ServerStatus
	Metrics *MetricsReport
}

func StatusResponse(info CollectedMetrics) Response {
	return Response{Status: &ServerStatus{Info: info}}
}

func MetricsResponse(info []CollectedMetrics) Response {
	if info == nil {
		info = []CollectedMetrics{}
	}
	return Response{Metrics: &MetricsReport{Info: info}}
}

func (r Response) Kind() RequestKind {
	switch {
	case r.Status != nil:
		return RequestStatus
	case r.Metrics != nil:
		return RequestMetrics
	default:
		return ""
	}
}

func (r Response) Validate() error {
	if (r.Status == nil) == (r.Metrics == nil) {
		return fmt.Errorf("%w: response must carry exactly one variant", ErrInvalidEnvelope)
	}
	return nil
}

func (r Response) MarshalJSON() ([]byte, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if r.Status != nil {
		return marshalTagged(string(RequestStatus), r.Status)
	}
	return marshalTagged(string(RequestMetrics), r.Metrics)
}

func (r *Response) UnmarshalJSON(data []byte) error {
	tag, body, err := decodeTagged(data)
	if err != nil {
		return err
	}
	if err := requireBody(tag, body); err != nil {
		return err
	}
	switch RequestKind(tag) {
	case RequestStatus:
		var status ServerStatus
		if err := json.Unmarshal(body, &status); err != nil {
			return fmt.Errorf("%w: status: %w", ErrInvalidEnvelope, err)
		}
		*r = Response{Status: &status}
	case RequestMetrics:
		var report MetricsReport
		if err := json.Unmarshal(body, &report); err != nil {
			return fmt.Errorf("%w: metrics: %w", ErrInvalidEnvelope, err)
		}
		*r = Response{Metrics: &report}
	default:
		return fmt.Errorf("%w: response %q", ErrUnknownVariant, tag)
	}
	return nil
}

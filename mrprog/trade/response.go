package trade

import (
	"encoding/json"
	"fmt"
)

// Status is the lifecycle state a worker reports for a trade.
type Status int

const (
	StatusInProgress Status = iota
	StatusSuccess
	StatusFailure
	StatusCriticalFailure
)

func (s Status) String() string {
	switch s {
	case StatusInProgress:
		return "in_progress"
	case StatusSuccess:
		return "success"
	case StatusFailure:
		return "failure"
	case StatusCriticalFailure:
		return "critical_failure"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Terminal reports whether no further notifications will arrive for the
// trade's correlation id.
func (s Status) Terminal() bool {
	return s != StatusInProgress
}

// Response is one status update for a request, produced by a worker and
// delivered over the shared notification queue.
type Response struct {
	Version int      `json:"v"`
	Request *Request `json:"request"`
	Status  Status   `json:"status"`
	Message string   `json:"message,omitempty"`
	// Image carries rendered bytes such as a room code screenshot. An
	// in-progress response with an image is a "room ready" notification.
	Image []byte `json:"image,omitempty"`
	// Embed is an optional pre-built display payload rendered verbatim by
	// the front-end.
	Embed    map[string]any `json:"embed,omitempty"`
	WorkerID string         `json:"worker_id,omitempty"`
}

// RoomReady reports whether this is the in-progress flavor that carries a
// room code for direct delivery to the requester.
func (r *Response) RoomReady() bool {
	return r.Status == StatusInProgress && len(r.Image) > 0
}

// Encode serializes the response for queue transport.
func (r *Response) Encode() ([]byte, error) {
	r.Version = WireVersion
	b, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to encode trade response: %w", err)
	}
	return b, nil
}

// DecodeResponse parses a response from its wire encoding.
func DecodeResponse(data []byte) (*Response, error) {
	var r Response
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to decode trade response: %w", err)
	}
	return &r, nil
}

package trade

import (
	"encoding/json"
	"fmt"

	"github.com/disgoorg/snowflake/v2"
)

// WireVersion is stamped into every encoded request and response. Decoders
// accept any version they recognize and ignore unknown fields, so an older
// reader survives a newer writer.
const WireVersion = 1

// Request is one submitted trade request. It is immutable after creation:
// the broker builds it on submit, serializes it onto the task queue, and
// evicts it from its caches when a terminal notification arrives or the
// request is cancelled.
type Request struct {
	Version   int          `json:"v"`
	UserName  string       `json:"user_name"`
	UserID    snowflake.ID `json:"user_id"`
	ChannelID snowflake.ID `json:"channel_id"`
	Platform  Platform     `json:"platform"`
	Game      int          `json:"game"`
	// TradeID is the globally monotonic sequence number assigned from the
	// retained bot/trade_id counter.
	TradeID  int  `json:"trade_id"`
	Item     Item `json:"item"`
	Priority int  `json:"priority"`
}

// Encode serializes the request for queue transport.
func (r *Request) Encode() ([]byte, error) {
	r.Version = WireVersion
	b, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to encode trade request: %w", err)
	}
	return b, nil
}

// DecodeRequest parses a request from its wire encoding.
func DecodeRequest(data []byte) (*Request, error) {
	var r Request
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to decode trade request: %w", err)
	}
	return &r, nil
}

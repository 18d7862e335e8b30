// Package gateway implements the platform's WebSocket gateway: a single
// connection per Manager that reconnects with jittered exponential backoff,
// keeps itself alive with pings, resumes from the last seen message id, and
// decodes inbound frames into a closed set of typed events.
package gateway

import (
	"encoding/json"

	"github.com/Guliveer/guildkit/internal/model"
)

// Gateway operation codes.
const (
	// OpDispatch carries a named event in t with its payload in d.
	OpDispatch = 0
	// OpWelcome is the first frame on every connection.
	OpWelcome = 1
	// OpResume confirms that missed events were replayed.
	OpResume = 2
	// OpError reports a bad resume cursor; the cursor must be dropped.
	OpError = 8
)

// Envelope is the wire format of every gateway frame.
type Envelope struct {
	Op int             `json:"op"`
	T  string          `json:"t,omitempty"`
	D  json.RawMessage `json:"d,omitempty"`
	// S is the message id of a dispatch, used as the resume cursor.
	S string `json:"s,omitempty"`
}

// Welcome is the payload of an OpWelcome frame.
type Welcome struct {
	HeartbeatIntervalMs int        `json:"heartbeatIntervalMs"`
	LastMessageID       string     `json:"lastMessageId"`
	BotID               string     `json:"botId,omitempty"`
	User                model.User `json:"user"`
}

type resumePayload struct {
	LastMessageID string `json:"lastMessageId"`
}

// Package constants defines the platform API endpoints, gateway protocol
// version, header names, and default timeout/interval values used throughout
// the SDK.
package constants

import "time"

// Version is the SDK version reported in the User-Agent header.
const Version = "0.4.0"

const (
	// APIURL is the base URL of the platform REST API.
	APIURL = "https://www.guilded.gg/api/v1"
	// GatewayURL is the gateway WebSocket endpoint without the version suffix.
	GatewayURL = "wss://www.guilded.gg/websocket/v"
	// ProtocolVersion is the gateway protocol version appended to GatewayURL.
	ProtocolVersion = 1
)

const (
	// HeaderAuthorization carries the bearer token on REST calls and the gateway handshake.
	HeaderAuthorization = "Authorization"
	// HeaderLastMessageID asks the gateway to replay events after the given message id.
	HeaderLastMessageID = "guilded-last-message-id"
	// HeaderRequestID tags every REST request for correlation in logs.
	HeaderRequestID = "X-Request-Id"
	// HeaderIdempotencyKey deduplicates retried message sends.
	HeaderIdempotencyKey = "Idempotency-Key"
)

// UserAgent is sent on every REST call and the gateway handshake.
const UserAgent = "guildkit/" + Version + " (+https://github.com/Guliveer/guildkit)"

const (
	// DefaultHTTPTimeout is the default timeout for REST requests.
	DefaultHTTPTimeout = 15 * time.Second
	// DefaultMaxRetries is the default number of retries for 429/5xx responses.
	DefaultMaxRetries = 3
	// DefaultRetryBackoff is the first retry delay; it doubles per attempt.
	DefaultRetryBackoff = time.Second
	// MaxResponseSize caps how much of a REST response body is read.
	MaxResponseSize = 4 << 20

	// DefaultReconnectBase is the first reconnect delay after a dropped gateway.
	DefaultReconnectBase = time.Second
	// DefaultReconnectMax caps the reconnect delay.
	DefaultReconnectMax = 60 * time.Second
	// DefaultReconnectMultiplier grows the reconnect delay per failed attempt.
	DefaultReconnectMultiplier = 2.0
	// DefaultReconnectJitter is the +/- fraction applied to each reconnect delay.
	DefaultReconnectJitter = 0.2
	// DefaultHeartbeatInterval is used when the WELCOME frame carries no interval.
	DefaultHeartbeatInterval = 22500 * time.Millisecond
	// DefaultDialTimeout bounds a single gateway handshake.
	DefaultDialTimeout = 10 * time.Second
	// GatewayReadLimit is the maximum accepted gateway frame size.
	GatewayReadLimit = 1 << 20

	// DefaultPrefetchWorkers bounds concurrent REST calls in bulk fetches.
	DefaultPrefetchWorkers = 5
	// DefaultGracefulShutdownTimeout is the timeout for graceful HTTP server shutdown.
	DefaultGracefulShutdownTimeout = 5 * time.Second
)

package model

// Event names a notable SDK lifecycle occurrence for logging.
type Event string

// Lifecycle events.
const (
	EventGatewayConnected    Event = "GATEWAY_CONNECTED"
	EventGatewayDisconnected Event = "GATEWAY_DISCONNECTED"
	EventGatewayReconnecting Event = "GATEWAY_RECONNECTING"
	EventGatewayGaveUp       Event = "GATEWAY_GAVE_UP"
	EventMemberJoined        Event = "MEMBER_JOINED"
	EventMemberRemoved       Event = "MEMBER_REMOVED"
	EventMemberBanned        Event = "MEMBER_BANNED"
	EventMemberUnbanned      Event = "MEMBER_UNBANNED"
	EventTokenRotated        Event = "TOKEN_ROTATED"
)

// AllEvents returns every defined event.
func AllEvents() []Event {
	return []Event{
		EventGatewayConnected,
		EventGatewayDisconnected,
		EventGatewayReconnecting,
		EventGatewayGaveUp,
		EventMemberJoined,
		EventMemberRemoved,
		EventMemberBanned,
		EventMemberUnbanned,
		EventTokenRotated,
	}
}

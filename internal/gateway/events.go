package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Guliveer/guildkit/internal/model"
)

// Dispatch event names.
const (
	TypeChatMessageCreated         = "ChatMessageCreated"
	TypeChatMessageUpdated         = "ChatMessageUpdated"
	TypeChatMessageDeleted         = "ChatMessageDeleted"
	TypeServerMemberJoined         = "ServerMemberJoined"
	TypeServerMemberRemoved        = "ServerMemberRemoved"
	TypeServerMemberUpdated        = "ServerMemberUpdated"
	TypeServerMemberBanned         = "ServerMemberBanned"
	TypeServerMemberUnbanned       = "ServerMemberUnbanned"
	TypeServerChannelCreated       = "ServerChannelCreated"
	TypeServerChannelUpdated       = "ServerChannelUpdated"
	TypeServerChannelDeleted       = "ServerChannelDeleted"
	TypeDocCreated                 = "DocCreated"
	TypeDocUpdated                 = "DocUpdated"
	TypeDocDeleted                 = "DocDeleted"
	TypeBotServerMembershipCreated = "BotServerMembershipCreated"
	TypeBotServerMembershipDeleted = "BotServerMembershipDeleted"

	// TypeConnect and TypeDisconnect name the manager's own lifecycle events.
	TypeConnect    = "connect"
	TypeDisconnect = "disconnect"
)

// Event is implemented only by the event types in this package; consumers
// type-switch on the concrete type.
type Event interface {
	Type() string
	isEvent()
}

// Handler receives gateway events. Events for one connection are delivered
// sequentially in arrival order on the manager's goroutine, so handlers must
// not block for long.
type Handler interface {
	HandleGatewayEvent(ctx context.Context, ev Event)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, ev Event)

// HandleGatewayEvent calls f.
func (f HandlerFunc) HandleGatewayEvent(ctx context.Context, ev Event) {
	f(ctx, ev)
}

// ConnectEvent is emitted once the server welcomes a connection.
type ConnectEvent struct {
	Welcome    Welcome
	Generation uint64
}

// DisconnectEvent is emitted when an opened transport is lost, whether or not
// it was welcomed, and once more with Reconnecting false when the manager
// gives up. Failed dials are only logged until then.
type DisconnectEvent struct {
	Err          error
	Generation   uint64
	Reconnecting bool
}

// Dispatch carries the fields shared by every dispatch event. Payload is the
// d field exactly as received.
type Dispatch struct {
	Name      string
	ServerID  string
	MessageID string
	Payload   json.RawMessage
}

// Type returns the dispatch event name.
func (d Dispatch) Type() string { return d.Name }

// ChatMessageCreated reports a new message.
type ChatMessageCreated struct {
	Dispatch
	Message model.Message
}

// ChatMessageUpdated reports an edited message.
type ChatMessageUpdated struct {
	Dispatch
	Message model.Message
}

// DeletedMessage is the trimmed message carried by ChatMessageDeleted.
type DeletedMessage struct {
	ID        string    `json:"id"`
	ServerID  string    `json:"serverId,omitempty"`
	ChannelID string    `json:"channelId"`
	DeletedAt time.Time `json:"deletedAt"`
	IsPrivate bool      `json:"isPrivate,omitempty"`
}

// Key returns the cache key of the deleted message.
func (m DeletedMessage) Key() model.MessageKey {
	return model.MessageKey{ChannelID: m.ChannelID, MessageID: m.ID}
}

// ChatMessageDeleted reports a deleted message.
type ChatMessageDeleted struct {
	Dispatch
	Message DeletedMessage
}

// ServerMemberJoined reports a new member.
type ServerMemberJoined struct {
	Dispatch
	Member model.Member
}

// ServerMemberRemoved reports a member leaving, kicked or banned.
type ServerMemberRemoved struct {
	Dispatch
	UserID string
	IsKick bool
	IsBan  bool
}

// MemberUserInfo is the partial member update. A nil Nickname means the
// nickname was cleared.
type MemberUserInfo struct {
	ID       string  `json:"id"`
	Nickname *string `json:"nickname"`
}

// ServerMemberUpdated reports a nickname change.
type ServerMemberUpdated struct {
	Dispatch
	UserInfo MemberUserInfo
}

// ServerMemberBanned reports a new ban.
type ServerMemberBanned struct {
	Dispatch
	Ban model.Ban
}

// ServerMemberUnbanned reports a lifted ban.
type ServerMemberUnbanned struct {
	Dispatch
	Ban model.Ban
}

// ServerChannelCreated reports a new channel.
type ServerChannelCreated struct {
	Dispatch
	Channel model.Channel
}

// ServerChannelUpdated reports a changed channel.
type ServerChannelUpdated struct {
	Dispatch
	Channel model.Channel
}

// ServerChannelDeleted reports a deleted channel.
type ServerChannelDeleted struct {
	Dispatch
	Channel model.Channel
}

// DocCreated reports a new note.
type DocCreated struct {
	Dispatch
	Note model.Note
}

// DocUpdated reports an edited note.
type DocUpdated struct {
	Dispatch
	Note model.Note
}

// DocDeleted reports a deleted note.
type DocDeleted struct {
	Dispatch
	Note model.Note
}

// BotServerMembershipCreated reports the bot being added to a server.
type BotServerMembershipCreated struct {
	Dispatch
	Server    model.Server
	CreatedBy string
}

// BotServerMembershipDeleted reports the bot being removed from a server.
type BotServerMembershipDeleted struct {
	Dispatch
	Server    model.Server
	CreatedBy string
}

// UnknownEvent carries a dispatch whose name this SDK does not model.
type UnknownEvent struct {
	Dispatch
}

func (ConnectEvent) Type() string    { return TypeConnect }
func (DisconnectEvent) Type() string { return TypeDisconnect }

func (ConnectEvent) isEvent()               {}
func (DisconnectEvent) isEvent()            {}
func (ChatMessageCreated) isEvent()         {}
func (ChatMessageUpdated) isEvent()         {}
func (ChatMessageDeleted) isEvent()         {}
func (ServerMemberJoined) isEvent()         {}
func (ServerMemberRemoved) isEvent()        {}
func (ServerMemberUpdated) isEvent()        {}
func (ServerMemberBanned) isEvent()         {}
func (ServerMemberUnbanned) isEvent()       {}
func (ServerChannelCreated) isEvent()       {}
func (ServerChannelUpdated) isEvent()       {}
func (ServerChannelDeleted) isEvent()       {}
func (DocCreated) isEvent()                 {}
func (DocUpdated) isEvent()                 {}
func (DocDeleted) isEvent()                 {}
func (BotServerMembershipCreated) isEvent() {}
func (BotServerMembershipDeleted) isEvent() {}
func (UnknownEvent) isEvent()               {}

// dispatchPayload is the union of every d shape; each event reads only its fields.
type dispatchPayload struct {
	ServerID        string          `json:"serverId"`
	Message         json.RawMessage `json:"message"`
	Member          json.RawMessage `json:"member"`
	UserID          string          `json:"userId"`
	IsKick          bool            `json:"isKick"`
	IsBan           bool            `json:"isBan"`
	UserInfo        json.RawMessage `json:"userInfo"`
	ServerMemberBan json.RawMessage `json:"serverMemberBan"`
	Channel         json.RawMessage `json:"channel"`
	Doc             json.RawMessage `json:"doc"`
	Server          json.RawMessage `json:"server"`
	CreatedBy       string          `json:"createdBy"`
}

// decodeDispatch turns an OpDispatch envelope into its typed event. Names
// without a model become UnknownEvent. The returned event is never nil: when
// d does not match the shape its name implies, the frame is still delivered
// as an UnknownEvent carrying the raw payload, alongside the decode error.
func decodeDispatch(env Envelope) (Event, error) {
	base := Dispatch{
		Name:      env.T,
		MessageID: env.S,
		Payload:   env.D,
	}

	var p dispatchPayload
	if len(env.D) > 0 {
		if err := json.Unmarshal(env.D, &p); err != nil {
			return UnknownEvent{Dispatch: base}, fmt.Errorf("decoding %s payload: %w", env.T, err)
		}
	}
	base.ServerID = p.ServerID

	ev, err := decodeTyped(env, p, base)
	if err != nil {
		return UnknownEvent{Dispatch: base}, err
	}
	return ev, nil
}

func decodeTyped(env Envelope, p dispatchPayload, base Dispatch) (Event, error) {
	switch env.T {
	case TypeChatMessageCreated, TypeChatMessageUpdated:
		var msg model.Message
		if err := decodeField(env.T, "message", p.Message, &msg); err != nil {
			return nil, err
		}
		if msg.ServerID == "" {
			msg.ServerID = p.ServerID
		}
		if env.T == TypeChatMessageCreated {
			return ChatMessageCreated{Dispatch: base, Message: msg}, nil
		}
		return ChatMessageUpdated{Dispatch: base, Message: msg}, nil

	case TypeChatMessageDeleted:
		var msg DeletedMessage
		if err := decodeField(env.T, "message", p.Message, &msg); err != nil {
			return nil, err
		}
		if msg.ServerID == "" {
			msg.ServerID = p.ServerID
		}
		return ChatMessageDeleted{Dispatch: base, Message: msg}, nil

	case TypeServerMemberJoined:
		var member model.Member
		if err := decodeField(env.T, "member", p.Member, &member); err != nil {
			return nil, err
		}
		member.ServerID = p.ServerID
		return ServerMemberJoined{Dispatch: base, Member: member}, nil

	case TypeServerMemberRemoved:
		if p.UserID == "" {
			return nil, fmt.Errorf("decoding %s payload: missing userId", env.T)
		}
		return ServerMemberRemoved{Dispatch: base, UserID: p.UserID, IsKick: p.IsKick, IsBan: p.IsBan}, nil

	case TypeServerMemberUpdated:
		var info MemberUserInfo
		if err := decodeField(env.T, "userInfo", p.UserInfo, &info); err != nil {
			return nil, err
		}
		return ServerMemberUpdated{Dispatch: base, UserInfo: info}, nil

	case TypeServerMemberBanned, TypeServerMemberUnbanned:
		var ban model.Ban
		if err := decodeField(env.T, "serverMemberBan", p.ServerMemberBan, &ban); err != nil {
			return nil, err
		}
		ban.ServerID = p.ServerID
		if env.T == TypeServerMemberBanned {
			return ServerMemberBanned{Dispatch: base, Ban: ban}, nil
		}
		return ServerMemberUnbanned{Dispatch: base, Ban: ban}, nil

	case TypeServerChannelCreated, TypeServerChannelUpdated, TypeServerChannelDeleted:
		var ch model.Channel
		if err := decodeField(env.T, "channel", p.Channel, &ch); err != nil {
			return nil, err
		}
		switch env.T {
		case TypeServerChannelCreated:
			return ServerChannelCreated{Dispatch: base, Channel: ch}, nil
		case TypeServerChannelUpdated:
			return ServerChannelUpdated{Dispatch: base, Channel: ch}, nil
		default:
			return ServerChannelDeleted{Dispatch: base, Channel: ch}, nil
		}

	case TypeDocCreated, TypeDocUpdated, TypeDocDeleted:
		var note model.Note
		if err := decodeField(env.T, "doc", p.Doc, &note); err != nil {
			return nil, err
		}
		switch env.T {
		case TypeDocCreated:
			return DocCreated{Dispatch: base, Note: note}, nil
		case TypeDocUpdated:
			return DocUpdated{Dispatch: base, Note: note}, nil
		default:
			return DocDeleted{Dispatch: base, Note: note}, nil
		}

	case TypeBotServerMembershipCreated, TypeBotServerMembershipDeleted:
		var srv model.Server
		if err := decodeField(env.T, "server", p.Server, &srv); err != nil {
			return nil, err
		}
		base.ServerID = srv.ID
		if env.T == TypeBotServerMembershipCreated {
			return BotServerMembershipCreated{Dispatch: base, Server: srv, CreatedBy: p.CreatedBy}, nil
		}
		return BotServerMembershipDeleted{Dispatch: base, Server: srv, CreatedBy: p.CreatedBy}, nil
	}

	return UnknownEvent{Dispatch: base}, nil
}

func decodeField(eventType, field string, raw json.RawMessage, out any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return fmt.Errorf("decoding %s payload: missing %s", eventType, field)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decoding %s %s: %w", eventType, field, err)
	}
	return nil
}

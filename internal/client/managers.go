package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/google/uuid"

	"github.com/Guliveer/guildkit/internal/cache"
	"github.com/Guliveer/guildkit/internal/model"
	"github.com/Guliveer/guildkit/internal/rest"
)

// Entity kinds, used as cache manager names and config keys.
const (
	KindServers  = "servers"
	KindChannels = "channels"
	KindMessages = "messages"
	KindMembers  = "members"
	KindBans     = "bans"
	KindNotes    = "notes"
	KindUsers    = "users"
)

// Kinds lists every entity kind in a stable order.
func Kinds() []string {
	return []string{KindServers, KindChannels, KindMessages, KindMembers, KindBans, KindNotes, KindUsers}
}

func esc(s string) string {
	return url.PathEscape(s)
}

// ServerManager caches servers by id.
type ServerManager struct {
	*cache.Manager[string, model.Server]
}

func newServerManager(rc *rest.Client, cfg cache.Config) *ServerManager {
	return &ServerManager{Manager: cache.NewManager(KindServers, cfg, func(ctx context.Context, id string) (model.Server, error) {
		var resp struct {
			Server model.Server `json:"server"`
		}
		if err := rc.Get(ctx, "/servers/"+esc(id), nil, &resp); err != nil {
			return model.Server{}, err
		}
		return resp.Server, nil
	})}
}

// UserManager caches users by id.
type UserManager struct {
	*cache.Manager[string, model.User]
}

func newUserManager(rc *rest.Client, cfg cache.Config) *UserManager {
	return &UserManager{Manager: cache.NewManager(KindUsers, cfg, func(ctx context.Context, id string) (model.User, error) {
		var resp struct {
			User model.User `json:"user"`
		}
		if err := rc.Get(ctx, "/users/"+esc(id), nil, &resp); err != nil {
			return model.User{}, err
		}
		return resp.User, nil
	})}
}

// NewChannel is the body of a channel creation.
type NewChannel struct {
	Name       string            `json:"name"`
	Type       model.ChannelType `json:"type"`
	Topic      string            `json:"topic,omitempty"`
	ServerID   string            `json:"serverId,omitempty"`
	GroupID    string            `json:"groupId,omitempty"`
	CategoryID int               `json:"categoryId,omitempty"`
	IsPublic   bool              `json:"isPublic,omitempty"`
}

// ChannelManager caches channels by id.
type ChannelManager struct {
	*cache.Manager[string, model.Channel]
	rest *rest.Client
}

func newChannelManager(rc *rest.Client, cfg cache.Config) *ChannelManager {
	return &ChannelManager{
		rest: rc,
		Manager: cache.NewManager(KindChannels, cfg, func(ctx context.Context, id string) (model.Channel, error) {
			var resp channelResponse
			if err := rc.Get(ctx, "/channels/"+esc(id), nil, &resp); err != nil {
				return model.Channel{}, err
			}
			return resp.Channel, nil
		}),
	}
}

type channelResponse struct {
	Channel model.Channel `json:"channel"`
}

// Create creates a channel and caches it.
func (m *ChannelManager) Create(ctx context.Context, ch NewChannel) (model.Channel, error) {
	if ch.Name == "" {
		return model.Channel{}, fmt.Errorf("creating channel: name is required")
	}
	if ch.Type == "" {
		ch.Type = model.ChannelTypeChat
	}

	var resp channelResponse
	if err := m.rest.Post(ctx, "/channels", ch, &resp); err != nil {
		return model.Channel{}, fmt.Errorf("creating channel %q: %w", ch.Name, err)
	}
	_ = m.Set(resp.Channel.ID, resp.Channel)
	return resp.Channel, nil
}

// Remove deletes a channel and drops it from the cache.
func (m *ChannelManager) Remove(ctx context.Context, id string) error {
	if err := m.rest.Delete(ctx, "/channels/"+esc(id)); err != nil {
		return fmt.Errorf("deleting channel %s: %w", id, err)
	}
	m.Delete(id)
	return nil
}

// NewMessage is the body of a message send.
type NewMessage struct {
	Content         string   `json:"content"`
	ReplyMessageIDs []string `json:"replyMessageIds,omitempty"`
	IsPrivate       bool     `json:"isPrivate,omitempty"`
	IsSilent        bool     `json:"isSilent,omitempty"`
}

type messageResponse struct {
	Message model.Message `json:"message"`
}

// MessageManager caches messages by channel and message id.
type MessageManager struct {
	*cache.Manager[model.MessageKey, model.Message]
	rest *rest.Client
}

func newMessageManager(rc *rest.Client, cfg cache.Config) *MessageManager {
	return &MessageManager{
		rest: rc,
		Manager: cache.NewManager(KindMessages, cfg, func(ctx context.Context, key model.MessageKey) (model.Message, error) {
			var resp messageResponse
			if err := rc.Get(ctx, messagePath(key), nil, &resp); err != nil {
				return model.Message{}, err
			}
			return resp.Message, nil
		}),
	}
}

func messagePath(key model.MessageKey) string {
	return "/channels/" + esc(key.ChannelID) + "/messages/" + esc(key.MessageID)
}

// Send posts a message. Retries of the same call carry one idempotency key so
// the platform never posts it twice.
func (m *MessageManager) Send(ctx context.Context, channelID string, msg NewMessage) (model.Message, error) {
	if msg.Content == "" {
		return model.Message{}, fmt.Errorf("sending message to %s: content is required", channelID)
	}

	var resp messageResponse
	err := m.rest.Call(ctx, rest.Request{
		Method:         http.MethodPost,
		Path:           "/channels/" + esc(channelID) + "/messages",
		Body:           msg,
		IdempotencyKey: uuid.NewString(),
	}, &resp)
	if err != nil {
		return model.Message{}, fmt.Errorf("sending message to %s: %w", channelID, err)
	}
	_ = m.Set(resp.Message.Key(), resp.Message)
	return resp.Message, nil
}

// Edit replaces a message's content.
func (m *MessageManager) Edit(ctx context.Context, key model.MessageKey, content string) (model.Message, error) {
	var resp messageResponse
	if err := m.rest.Put(ctx, messagePath(key), map[string]string{"content": content}, &resp); err != nil {
		return model.Message{}, fmt.Errorf("editing message %s: %w", key, err)
	}
	_ = m.Set(resp.Message.Key(), resp.Message)
	return resp.Message, nil
}

// Remove deletes a message and drops it from the cache.
func (m *MessageManager) Remove(ctx context.Context, key model.MessageKey) error {
	if err := m.rest.Delete(ctx, messagePath(key)); err != nil {
		return fmt.Errorf("deleting message %s: %w", key, err)
	}
	m.Delete(key)
	return nil
}

// MemberManager caches members by server and user id.
type MemberManager struct {
	*cache.Manager[model.MemberKey, model.Member]
	rest *rest.Client
}

func newMemberManager(rc *rest.Client, cfg cache.Config) *MemberManager {
	return &MemberManager{
		rest: rc,
		Manager: cache.NewManager(KindMembers, cfg, func(ctx context.Context, key model.MemberKey) (model.Member, error) {
			var resp struct {
				Member model.Member `json:"member"`
			}
			if err := rc.Get(ctx, memberPath(key), nil, &resp); err != nil {
				return model.Member{}, err
			}
			resp.Member.ServerID = key.ServerID
			return resp.Member, nil
		}),
	}
}

func memberPath(key model.MemberKey) string {
	return "/servers/" + esc(key.ServerID) + "/members/" + esc(key.UserID)
}

// Kick removes a member from the server.
func (m *MemberManager) Kick(ctx context.Context, key model.MemberKey) error {
	if err := m.rest.Delete(ctx, memberPath(key)); err != nil {
		return fmt.Errorf("kicking member %s: %w", key, err)
	}
	m.Delete(key)
	return nil
}

// SetNickname changes a member's nickname; an empty nickname clears it. The
// cached member, if any, is updated in place.
func (m *MemberManager) SetNickname(ctx context.Context, key model.MemberKey, nickname string) error {
	path := memberPath(key) + "/nickname"
	var err error
	if nickname == "" {
		err = m.rest.Delete(ctx, path)
	} else {
		err = m.rest.Put(ctx, path, map[string]string{"nickname": nickname}, nil)
	}
	if err != nil {
		return fmt.Errorf("setting nickname of %s: %w", key, err)
	}

	if member, ok := m.Get(key); ok {
		member.Nickname = nickname
		_ = m.Set(key, member)
	}
	return nil
}

// List returns every member of a server. Summaries are not cached since they
// lack join dates and roles.
func (m *MemberManager) List(ctx context.Context, serverID string) ([]model.UserSummary, error) {
	var resp struct {
		Members []struct {
			User model.UserSummary `json:"user"`
		} `json:"members"`
	}
	if err := m.rest.Get(ctx, "/servers/"+esc(serverID)+"/members", nil, &resp); err != nil {
		return nil, fmt.Errorf("listing members of %s: %w", serverID, err)
	}

	users := make([]model.UserSummary, 0, len(resp.Members))
	for _, member := range resp.Members {
		users = append(users, member.User)
	}
	return users, nil
}

type banResponse struct {
	Ban model.Ban `json:"serverMemberBan"`
}

// BanManager caches bans by server and user id.
type BanManager struct {
	*cache.Manager[model.MemberKey, model.Ban]
	rest *rest.Client
}

func newBanManager(rc *rest.Client, cfg cache.Config) *BanManager {
	return &BanManager{
		rest: rc,
		Manager: cache.NewManager(KindBans, cfg, func(ctx context.Context, key model.MemberKey) (model.Ban, error) {
			var resp banResponse
			if err := rc.Get(ctx, banPath(key), nil, &resp); err != nil {
				return model.Ban{}, err
			}
			resp.Ban.ServerID = key.ServerID
			return resp.Ban, nil
		}),
	}
}

func banPath(key model.MemberKey) string {
	return "/servers/" + esc(key.ServerID) + "/bans/" + esc(key.UserID)
}

// Ban bans a user and caches the ban.
func (m *BanManager) Ban(ctx context.Context, key model.MemberKey, reason string) (model.Ban, error) {
	var body any
	if reason != "" {
		body = map[string]string{"reason": reason}
	}

	var resp banResponse
	if err := m.rest.Post(ctx, banPath(key), body, &resp); err != nil {
		return model.Ban{}, fmt.Errorf("banning %s: %w", key, err)
	}
	resp.Ban.ServerID = key.ServerID
	_ = m.Set(key, resp.Ban)
	return resp.Ban, nil
}

// Unban lifts a ban and drops it from the cache.
func (m *BanManager) Unban(ctx context.Context, key model.MemberKey) error {
	if err := m.rest.Delete(ctx, banPath(key)); err != nil {
		return fmt.Errorf("unbanning %s: %w", key, err)
	}
	m.Delete(key)
	return nil
}

// NewNote is the body of a note creation.
type NewNote struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type noteResponse struct {
	Note model.Note `json:"doc"`
}

// NoteManager caches notes by channel and note id.
type NoteManager struct {
	*cache.Manager[model.NoteKey, model.Note]
	rest *rest.Client
}

func newNoteManager(rc *rest.Client, cfg cache.Config) *NoteManager {
	return &NoteManager{
		rest: rc,
		Manager: cache.NewManager(KindNotes, cfg, func(ctx context.Context, key model.NoteKey) (model.Note, error) {
			var resp noteResponse
			if err := rc.Get(ctx, notePath(key), nil, &resp); err != nil {
				return model.Note{}, err
			}
			return resp.Note, nil
		}),
	}
}

func notePath(key model.NoteKey) string {
	return "/channels/" + esc(key.ChannelID) + "/docs/" + strconv.Itoa(key.NoteID)
}

// Create posts a note in a docs channel and caches it.
func (m *NoteManager) Create(ctx context.Context, channelID string, note NewNote) (model.Note, error) {
	var resp noteResponse
	if err := m.rest.Post(ctx, "/channels/"+esc(channelID)+"/docs", note, &resp); err != nil {
		return model.Note{}, fmt.Errorf("creating note in %s: %w", channelID, err)
	}
	_ = m.Set(resp.Note.Key(), resp.Note)
	return resp.Note, nil
}

// Remove deletes a note and drops it from the cache.
func (m *NoteManager) Remove(ctx context.Context, key model.NoteKey) error {
	if err := m.rest.Delete(ctx, notePath(key)); err != nil {
		return fmt.Errorf("deleting note %s: %w", key, err)
	}
	m.Delete(key)
	return nil
}

// Package model defines the platform entities exposed by the SDK (servers,
// channels, messages, members, bans, notes, users), their cache keys, and the
// lifecycle events used for logging.
package model

import (
	"slices"
	"strings"
	"time"
)

// UserType distinguishes human accounts from bots.
type UserType string

// User types reported by the API.
const (
	UserTypeUser UserType = "user"
	UserTypeBot  UserType = "bot"
)

// User is a platform account.
type User struct {
	ID        string    `json:"id"`
	Type      UserType  `json:"type,omitempty"`
	Name      string    `json:"name"`
	Avatar    string    `json:"avatar,omitempty"`
	Banner    string    `json:"banner,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// IsBot reports whether the account is a bot. Accounts without a type are users.
func (u *User) IsBot() bool {
	return u.Type == UserTypeBot
}

// UserSummary is the trimmed user object embedded in bans and member lists.
type UserSummary struct {
	ID     string   `json:"id"`
	Type   UserType `json:"type,omitempty"`
	Name   string   `json:"name"`
	Avatar string   `json:"avatar,omitempty"`
}

// Server is a community (guild) that owns channels, members and bans.
type Server struct {
	ID               string    `json:"id"`
	OwnerID          string    `json:"ownerId"`
	Type             string    `json:"type,omitempty"`
	Name             string    `json:"name"`
	URL              string    `json:"url,omitempty"`
	About            string    `json:"about,omitempty"`
	Avatar           string    `json:"avatar,omitempty"`
	Banner           string    `json:"banner,omitempty"`
	Timezone         string    `json:"timezone,omitempty"`
	IsVerified       bool      `json:"isVerified,omitempty"`
	DefaultChannelID string    `json:"defaultChannelId,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
}

// IsOwnedBy reports whether userID owns the server.
func (s *Server) IsOwnedBy(userID string) bool {
	return s.OwnerID != "" && s.OwnerID == userID
}

// ChannelType is the content type of a channel.
type ChannelType string

// Channel types accepted by the API.
const (
	ChannelTypeAnnouncements ChannelType = "announcements"
	ChannelTypeChat          ChannelType = "chat"
	ChannelTypeCalendar      ChannelType = "calendar"
	ChannelTypeForums        ChannelType = "forums"
	ChannelTypeMedia         ChannelType = "media"
	ChannelTypeDocs          ChannelType = "docs"
	ChannelTypeVoice         ChannelType = "voice"
	ChannelTypeList          ChannelType = "list"
	ChannelTypeScheduling    ChannelType = "scheduling"
	ChannelTypeStream        ChannelType = "stream"
)

// Channel is a server channel.
type Channel struct {
	ID         string      `json:"id"`
	Type       ChannelType `json:"type"`
	Name       string      `json:"name"`
	Topic      string      `json:"topic,omitempty"`
	ServerID   string      `json:"serverId"`
	ParentID   string      `json:"parentId,omitempty"`
	CategoryID int         `json:"categoryId,omitempty"`
	GroupID    string      `json:"groupId,omitempty"`
	IsPublic   bool        `json:"isPublic,omitempty"`
	CreatedAt  time.Time   `json:"createdAt"`
	CreatedBy  string      `json:"createdBy"`
	UpdatedAt  *time.Time  `json:"updatedAt,omitempty"`
	ArchivedBy string      `json:"archivedBy,omitempty"`
	ArchivedAt *time.Time  `json:"archivedAt,omitempty"`
}

// IsArchived reports whether the channel has been archived.
func (c *Channel) IsArchived() bool {
	return c.ArchivedAt != nil
}

// IsThread reports whether the channel is nested under another channel.
func (c *Channel) IsThread() bool {
	return c.ParentID != ""
}

// Message is a chat message posted in a channel.
type Message struct {
	ID              string     `json:"id"`
	Type            string     `json:"type,omitempty"`
	ServerID        string     `json:"serverId,omitempty"`
	ChannelID       string     `json:"channelId"`
	Content         string     `json:"content,omitempty"`
	ReplyMessageIDs []string   `json:"replyMessageIds,omitempty"`
	IsPrivate       bool       `json:"isPrivate,omitempty"`
	IsSilent        bool       `json:"isSilent,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	CreatedBy       string     `json:"createdBy"`
	UpdatedAt       *time.Time `json:"updatedAt,omitempty"`
}

// Key returns the cache key for the message.
func (m *Message) Key() MessageKey {
	return MessageKey{ChannelID: m.ChannelID, MessageID: m.ID}
}

// IsReply reports whether the message replies to at least one other message.
func (m *Message) IsReply() bool {
	return len(m.ReplyMessageIDs) > 0
}

// IsEdited reports whether the message was updated after creation.
func (m *Message) IsEdited() bool {
	return m.UpdatedAt != nil && m.UpdatedAt.After(m.CreatedAt)
}

// Member is a user's membership in a server. ServerID is filled in by the
// SDK; the API omits it from member payloads.
type Member struct {
	ServerID string    `json:"serverId,omitempty"`
	User     User      `json:"user"`
	RoleIDs  []int     `json:"roleIds"`
	Nickname string    `json:"nickname,omitempty"`
	JoinedAt time.Time `json:"joinedAt"`
	IsOwner  bool      `json:"isOwner,omitempty"`
}

// Key returns the cache key for the member.
func (m *Member) Key() MemberKey {
	return MemberKey{ServerID: m.ServerID, UserID: m.User.ID}
}

// DisplayName returns the nickname if set, otherwise the user name.
func (m *Member) DisplayName() string {
	if strings.TrimSpace(m.Nickname) != "" {
		return m.Nickname
	}
	return m.User.Name
}

// HasRole reports whether the member holds the given role.
func (m *Member) HasRole(roleID int) bool {
	return slices.Contains(m.RoleIDs, roleID)
}

// Ban is a server ban. ServerID is filled in by the SDK.
type Ban struct {
	ServerID  string      `json:"serverId,omitempty"`
	User      UserSummary `json:"user"`
	Reason    string      `json:"reason,omitempty"`
	CreatedBy string      `json:"createdBy"`
	CreatedAt time.Time   `json:"createdAt"`
}

// Key returns the cache key for the ban.
func (b *Ban) Key() MemberKey {
	return MemberKey{ServerID: b.ServerID, UserID: b.User.ID}
}

// Note is a document posted in a docs channel. Notes use numeric ids.
type Note struct {
	ID        int        `json:"id"`
	ServerID  string     `json:"serverId"`
	ChannelID string     `json:"channelId"`
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	CreatedAt time.Time  `json:"createdAt"`
	CreatedBy string     `json:"createdBy"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
	UpdatedBy string     `json:"updatedBy,omitempty"`
}

// Key returns the cache key for the note.
func (n *Note) Key() NoteKey {
	return NoteKey{ChannelID: n.ChannelID, NoteID: n.ID}
}

// LastEditor returns who touched the note last.
func (n *Note) LastEditor() string {
	if n.UpdatedBy != "" {
		return n.UpdatedBy
	}
	return n.CreatedBy
}

package model

import (
	"fmt"
	"strconv"
	"strings"
)

// MemberKey identifies a member or a ban: a user within a server.
type MemberKey struct {
	ServerID string
	UserID   string
}

func (k MemberKey) String() string {
	return k.ServerID + "/" + k.UserID
}

// MessageKey identifies a message within its channel.
type MessageKey struct {
	ChannelID string
	MessageID string
}

func (k MessageKey) String() string {
	return k.ChannelID + "/" + k.MessageID
}

// NoteKey identifies a note within its docs channel.
type NoteKey struct {
	ChannelID string
	NoteID    int
}

func (k NoteKey) String() string {
	return k.ChannelID + "/" + strconv.Itoa(k.NoteID)
}

// ParseNoteKey parses the "channel/id" form produced by NoteKey.String.
func ParseNoteKey(s string) (NoteKey, error) {
	channelID, rawID, ok := cut(s)
	if !ok {
		return NoteKey{}, fmt.Errorf("note key %q: expected channel/id", s)
	}
	id, err := strconv.Atoi(rawID)
	if err != nil {
		return NoteKey{}, fmt.Errorf("note key %q: %w", s, err)
	}
	return NoteKey{ChannelID: channelID, NoteID: id}, nil
}

// ParseMemberKey parses the "server/user" form produced by MemberKey.String.
func ParseMemberKey(s string) (MemberKey, error) {
	serverID, userID, ok := cut(s)
	if !ok {
		return MemberKey{}, fmt.Errorf("member key %q: expected server/user", s)
	}
	return MemberKey{ServerID: serverID, UserID: userID}, nil
}

// ParseMessageKey parses the "channel/message" form produced by MessageKey.String.
func ParseMessageKey(s string) (MessageKey, error) {
	channelID, messageID, ok := cut(s)
	if !ok {
		return MessageKey{}, fmt.Errorf("message key %q: expected channel/message", s)
	}
	return MessageKey{ChannelID: channelID, MessageID: messageID}, nil
}

func cut(s string) (string, string, bool) {
	before, after, ok := strings.Cut(s, "/")
	if !ok || before == "" || after == "" {
		return "", "", false
	}
	return before, after, true
}

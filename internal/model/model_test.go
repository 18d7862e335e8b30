package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeysRoundTripThroughString(t *testing.T) {
	t.Parallel()

	mk, err := ParseMemberKey(MemberKey{ServerID: "srv", UserID: "usr"}.String())
	require.NoError(t, err)
	assert.Equal(t, MemberKey{ServerID: "srv", UserID: "usr"}, mk)

	msg, err := ParseMessageKey(MessageKey{ChannelID: "ch", MessageID: "m1"}.String())
	require.NoError(t, err)
	assert.Equal(t, MessageKey{ChannelID: "ch", MessageID: "m1"}, msg)

	nk, err := ParseNoteKey(NoteKey{ChannelID: "docs", NoteID: 42}.String())
	require.NoError(t, err)
	assert.Equal(t, NoteKey{ChannelID: "docs", NoteID: 42}, nk)
}

func TestParseKeysRejectMalformedInput(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		parse func(string) error
		input string
	}{
		{name: "member without slash", parse: func(s string) error { _, err := ParseMemberKey(s); return err }, input: "abc"},
		{name: "member empty server", parse: func(s string) error { _, err := ParseMemberKey(s); return err }, input: "/abc"},
		{name: "message empty id", parse: func(s string) error { _, err := ParseMessageKey(s); return err }, input: "ch/"},
		{name: "note non numeric", parse: func(s string) error { _, err := ParseNoteKey(s); return err }, input: "ch/abc"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Error(t, tc.parse(tc.input))
		})
	}
}

func TestMemberDecodesAndDerivesKey(t *testing.T) {
	t.Parallel()

	raw := `{"user":{"id":"u1","type":"bot","name":"helper"},"roleIds":[3,7],"nickname":"  ","joinedAt":"2024-01-02T03:04:05Z"}`
	var m Member
	require.NoError(t, json.Unmarshal([]byte(raw), &m))
	m.ServerID = "s1"

	assert.Equal(t, MemberKey{ServerID: "s1", UserID: "u1"}, m.Key())
	assert.Equal(t, "helper", m.DisplayName(), "blank nickname falls back to user name")
	assert.True(t, m.HasRole(7))
	assert.False(t, m.HasRole(1))
	assert.True(t, m.User.IsBot())
}

func TestMessageAccessors(t *testing.T) {
	t.Parallel()

	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	updated := created.Add(time.Minute)
	m := Message{ID: "m", ChannelID: "c", CreatedAt: created}

	assert.False(t, m.IsEdited())
	assert.False(t, m.IsReply())

	m.UpdatedAt = &updated
	m.ReplyMessageIDs = []string{"x"}
	assert.True(t, m.IsEdited())
	assert.True(t, m.IsReply())
	assert.Equal(t, MessageKey{ChannelID: "c", MessageID: "m"}, m.Key())
}

func TestNoteLastEditor(t *testing.T) {
	t.Parallel()

	n := Note{ID: 1, ChannelID: "c", CreatedBy: "author"}
	assert.Equal(t, "author", n.LastEditor())
	n.UpdatedBy = "editor"
	assert.Equal(t, "editor", n.LastEditor())
}

package gateway

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, frame string) (Event, error) {
	t.Helper()
	var env Envelope
	require.NoError(t, json.Unmarshal([]byte(frame), &env))
	return decodeDispatch(env)
}

func TestDecodeDispatchTypedEvents(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		frame string
		check func(t *testing.T, ev Event)
	}{
		{
			name:  "message deleted",
			frame: `{"op":0,"t":"ChatMessageDeleted","d":{"serverId":"s1","message":{"id":"m1","channelId":"c1","deletedAt":"2024-05-01T12:00:00Z"}}}`,
			check: func(t *testing.T, ev Event) {
				deleted := ev.(ChatMessageDeleted)
				assert.Equal(t, "c1/m1", deleted.Message.Key().String())
				assert.Equal(t, "s1", deleted.Message.ServerID)
			},
		},
		{
			name:  "member joined fills server id",
			frame: `{"op":0,"t":"ServerMemberJoined","d":{"serverId":"s1","member":{"user":{"id":"u1","name":"Ann"},"roleIds":[3],"joinedAt":"2024-05-01T12:00:00Z"}}}`,
			check: func(t *testing.T, ev Event) {
				joined := ev.(ServerMemberJoined)
				assert.Equal(t, "s1/u1", joined.Member.Key().String())
				assert.True(t, joined.Member.HasRole(3))
			},
		},
		{
			name:  "member removed by ban",
			frame: `{"op":0,"t":"ServerMemberRemoved","d":{"serverId":"s1","userId":"u1","isBan":true}}`,
			check: func(t *testing.T, ev Event) {
				removed := ev.(ServerMemberRemoved)
				assert.Equal(t, "u1", removed.UserID)
				assert.True(t, removed.IsBan)
				assert.False(t, removed.IsKick)
			},
		},
		{
			name:  "member nickname cleared",
			frame: `{"op":0,"t":"ServerMemberUpdated","d":{"serverId":"s1","userInfo":{"id":"u1","nickname":null}}}`,
			check: func(t *testing.T, ev Event) {
				updated := ev.(ServerMemberUpdated)
				assert.Equal(t, "u1", updated.UserInfo.ID)
				assert.Nil(t, updated.UserInfo.Nickname)
			},
		},
		{
			name:  "ban fills server id",
			frame: `{"op":0,"t":"ServerMemberBanned","d":{"serverId":"s1","serverMemberBan":{"user":{"id":"u1","name":"Ann"},"reason":"spam","createdBy":"u9","createdAt":"2024-05-01T12:00:00Z"}}}`,
			check: func(t *testing.T, ev Event) {
				banned := ev.(ServerMemberBanned)
				assert.Equal(t, "s1/u1", banned.Ban.Key().String())
				assert.Equal(t, "spam", banned.Ban.Reason)
			},
		},
		{
			name:  "channel deleted",
			frame: `{"op":0,"t":"ServerChannelDeleted","d":{"serverId":"s1","channel":{"id":"c1","type":"chat","name":"general","serverId":"s1"}}}`,
			check: func(t *testing.T, ev Event) {
				assert.Equal(t, "c1", ev.(ServerChannelDeleted).Channel.ID)
			},
		},
		{
			name:  "doc updated",
			frame: `{"op":0,"t":"DocUpdated","d":{"serverId":"s1","doc":{"id":12,"serverId":"s1","channelId":"c2","title":"Rules","content":"be nice","createdBy":"u1","updatedBy":"u2"}}}`,
			check: func(t *testing.T, ev Event) {
				doc := ev.(DocUpdated)
				assert.Equal(t, "c2/12", doc.Note.Key().String())
				assert.Equal(t, "u2", doc.Note.LastEditor())
			},
		},
		{
			name:  "bot added to server",
			frame: `{"op":0,"t":"BotServerMembershipCreated","d":{"server":{"id":"s7","ownerId":"u1","name":"Lounge"},"createdBy":"u1"}}`,
			check: func(t *testing.T, ev Event) {
				created := ev.(BotServerMembershipCreated)
				assert.Equal(t, "s7", created.ServerID)
				assert.Equal(t, "u1", created.CreatedBy)
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			ev, err := decode(t, tc.frame)
			require.NoError(t, err)
			tc.check(t, ev)
		})
	}
}

func TestDecodeDispatchFallsBackToUnknownOnShapeMismatch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		frame    string
		name     string
		serverID string
		payload  string
	}{
		{`{"op":0,"t":"ChatMessageUpdated","d":{"serverId":"s1"}}`, TypeChatMessageUpdated, "s1", `{"serverId":"s1"}`},
		{`{"op":0,"t":"ServerMemberRemoved","d":{"serverId":"s1"}}`, TypeServerMemberRemoved, "s1", `{"serverId":"s1"}`},
		{`{"op":0,"t":"DocCreated","d":{"serverId":"s1","doc":null}}`, TypeDocCreated, "s1", `{"serverId":"s1","doc":null}`},
		{`{"op":0,"t":"ServerChannelCreated","d":{"channel":"oops"}}`, TypeServerChannelCreated, "", `{"channel":"oops"}`},
		{`{"op":0,"t":"ChatMessageCreated","d":[1,2]}`, TypeChatMessageCreated, "", `[1,2]`},
	}

	for _, tc := range tests {
		ev, err := decode(t, tc.frame)
		assert.Error(t, err, tc.frame)

		unknown, ok := ev.(UnknownEvent)
		require.True(t, ok, "got %T for %s", ev, tc.frame)
		assert.Equal(t, tc.name, unknown.Type())
		assert.Equal(t, tc.serverID, unknown.ServerID)
		assert.JSONEq(t, tc.payload, string(unknown.Payload))
	}
}

func TestLifecycleEventTypes(t *testing.T) {
	t.Parallel()

	assert.Equal(t, TypeConnect, ConnectEvent{}.Type())
	assert.Equal(t, TypeDisconnect, DisconnectEvent{}.Type())
	assert.Equal(t, TypeDocDeleted, DocDeleted{Dispatch: Dispatch{Name: TypeDocDeleted}}.Type())
}

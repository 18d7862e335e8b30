package client

import (
	"context"

	"github.com/Guliveer/guildkit/internal/gateway"
	"github.com/Guliveer/guildkit/internal/model"
)

// apply mirrors a gateway event into the caches. Create and update events
// store the new snapshot; deletion events drop it.
func (c *Client) apply(ctx context.Context, ev gateway.Event) {
	switch e := ev.(type) {
	case gateway.ChatMessageCreated:
		c.store(c.Messages.Set(e.Message.Key(), e.Message), ev)
	case gateway.ChatMessageUpdated:
		c.store(c.Messages.Set(e.Message.Key(), e.Message), ev)
	case gateway.ChatMessageDeleted:
		c.Messages.Delete(e.Message.Key())

	case gateway.ServerMemberJoined:
		c.store(c.Members.Set(e.Member.Key(), e.Member), ev)
		c.store(c.Users.Set(e.Member.User.ID, e.Member.User), ev)
		c.log.Event(ctx, model.EventMemberJoined, "Member joined",
			"server", e.ServerID, "user", e.Member.DisplayName())
	case gateway.ServerMemberRemoved:
		c.Members.Delete(model.MemberKey{ServerID: e.ServerID, UserID: e.UserID})
		c.log.Event(ctx, model.EventMemberRemoved, "Member left",
			"server", e.ServerID, "user", e.UserID, "kick", e.IsKick, "ban", e.IsBan)
	case gateway.ServerMemberUpdated:
		key := model.MemberKey{ServerID: e.ServerID, UserID: e.UserInfo.ID}
		if member, ok := c.Members.Get(key); ok {
			member.Nickname = ""
			if e.UserInfo.Nickname != nil {
				member.Nickname = *e.UserInfo.Nickname
			}
			c.store(c.Members.Set(key, member), ev)
		}

	case gateway.ServerMemberBanned:
		c.store(c.Bans.Set(e.Ban.Key(), e.Ban), ev)
		c.log.Event(ctx, model.EventMemberBanned, "Member banned",
			"server", e.ServerID, "user", e.Ban.User.Name, "reason", e.Ban.Reason)
	case gateway.ServerMemberUnbanned:
		c.Bans.Delete(e.Ban.Key())
		c.log.Event(ctx, model.EventMemberUnbanned, "Member unbanned",
			"server", e.ServerID, "user", e.Ban.User.Name)

	case gateway.ServerChannelCreated:
		c.store(c.Channels.Set(e.Channel.ID, e.Channel), ev)
	case gateway.ServerChannelUpdated:
		c.store(c.Channels.Set(e.Channel.ID, e.Channel), ev)
	case gateway.ServerChannelDeleted:
		c.Channels.Delete(e.Channel.ID)
		c.Messages.Cache().DeleteFunc(func(k model.MessageKey, _ model.Message) bool {
			return k.ChannelID == e.Channel.ID
		})
		c.Notes.Cache().DeleteFunc(func(k model.NoteKey, _ model.Note) bool {
			return k.ChannelID == e.Channel.ID
		})

	case gateway.DocCreated:
		c.store(c.Notes.Set(e.Note.Key(), e.Note), ev)
	case gateway.DocUpdated:
		c.store(c.Notes.Set(e.Note.Key(), e.Note), ev)
	case gateway.DocDeleted:
		c.Notes.Delete(e.Note.Key())

	case gateway.BotServerMembershipCreated:
		c.store(c.Servers.Set(e.Server.ID, e.Server), ev)
	case gateway.BotServerMembershipDeleted:
		c.forgetServer(e.Server.ID)
	}
}

// forgetServer drops a server and everything cached under it.
func (c *Client) forgetServer(serverID string) {
	c.Servers.Delete(serverID)

	n := c.Channels.Cache().DeleteFunc(func(_ string, ch model.Channel) bool { return ch.ServerID == serverID })
	n += c.Messages.Cache().DeleteFunc(func(_ model.MessageKey, m model.Message) bool { return m.ServerID == serverID })
	n += c.Members.Cache().DeleteFunc(func(k model.MemberKey, _ model.Member) bool { return k.ServerID == serverID })
	n += c.Bans.Cache().DeleteFunc(func(k model.MemberKey, _ model.Ban) bool { return k.ServerID == serverID })
	n += c.Notes.Cache().DeleteFunc(func(_ model.NoteKey, note model.Note) bool { return note.ServerID == serverID })

	c.log.Info("Removed from server, dropped cached entities", "server", serverID, "entries", n)
}

func (c *Client) store(err error, ev gateway.Event) {
	if err != nil {
		c.log.Debug("Event not cached", "event", ev.Type(), "error", err)
	}
}

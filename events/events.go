// Package events names the event types published by the room manager and
// builds their payloads with consistent keys.
package events

import (
	"time"

	"github.com/rbaliyan/eventbus"
)

// Event types
const (
	TempRoomCreated   = "temp_room_created"
	TempRoomDeleted   = "temp_room_deleted"
	CommandExecuted   = "command_executed"
	MemberJoinedGuild = "member_joined_guild"
)

// Payload keys
const (
	KeyChannelID       = "channel_id"
	KeyChannelName     = "channel_name"
	KeyOwnerID         = "owner_id"
	KeyGuildID         = "guild_id"
	KeyDurationSeconds = "duration_seconds"
	KeyCommandName     = "command_name"
	KeyUserID          = "user_id"
	KeySuccess         = "success"
	KeyMemberID        = "member_id"
	KeyMemberName      = "member_name"
)

// All returns every event type in the catalog
func All() []string {
	return []string{TempRoomCreated, TempRoomDeleted, CommandExecuted, MemberJoinedGuild}
}

// RoomCreated builds a temp_room_created event
func RoomCreated(channelID, ownerID, guildID int64, channelName string, opts ...eventbus.EventOption) eventbus.Event {
	return eventbus.New(TempRoomCreated, map[string]any{
		KeyChannelID:   channelID,
		KeyChannelName: channelName,
		KeyOwnerID:     ownerID,
		KeyGuildID:     guildID,
	}, opts...)
}

// RoomDeleted builds a temp_room_deleted event. The lifetime is stored in
// whole seconds.
func RoomDeleted(channelID, ownerID, guildID int64, lifetime time.Duration, opts ...eventbus.EventOption) eventbus.Event {
	return eventbus.New(TempRoomDeleted, map[string]any{
		KeyChannelID:       channelID,
		KeyOwnerID:         ownerID,
		KeyGuildID:         guildID,
		KeyDurationSeconds: int64(lifetime / time.Second),
	}, opts...)
}

// CommandRan builds a command_executed event
func CommandRan(commandName string, userID, guildID int64, success bool, opts ...eventbus.EventOption) eventbus.Event {
	return eventbus.New(CommandExecuted, map[string]any{
		KeyCommandName: commandName,
		KeyUserID:      userID,
		KeyGuildID:     guildID,
		KeySuccess:     success,
	}, opts...)
}

// MemberJoined builds a member_joined_guild event
func MemberJoined(memberID, guildID int64, memberName string, opts ...eventbus.EventOption) eventbus.Event {
	return eventbus.New(MemberJoinedGuild, map[string]any{
		KeyMemberID:   memberID,
		KeyMemberName: memberName,
		KeyGuildID:    guildID,
	}, opts...)
}

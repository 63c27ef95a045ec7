package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func testRoom(owner, member primitive.ObjectID) *Room {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return &Room{
		Name:     "room",
		RoomType: RoomTypeCommunity,
		Participants: []Participant{
			{UserID: owner, DisplayName: "owner", Role: RoleOwner, JoinedAt: now},
			{UserID: member, DisplayName: "member", Role: RoleParticipant, JoinedAt: now},
		},
		Settings: RoomSettings{MaxParticipants: 10, IsJoinable: true, IsPublic: true},
	}
}

func TestResolveMuteState(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(time.Hour)
	past := now.Add(-time.Second)

	tests := []struct {
		name        string
		participant *Participant
		wantMuted   bool
		wantExpired bool
	}{
		{"nil 成員", nil, false, false},
		{"未禁言", &Participant{}, false, false},
		{"無限期禁言", &Participant{IsMuted: true}, true, false},
		{"未到期", &Participant{IsMuted: true, MutedUntil: &future}, true, false},
		{"已到期", &Participant{IsMuted: true, MutedUntil: &past}, false, true},
		{"剛好到期", &Participant{IsMuted: true, MutedUntil: &now}, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			muted, until, expired := ResolveMuteState(tt.participant, now)
			assert.Equal(t, tt.wantMuted, muted)
			assert.Equal(t, tt.wantExpired, expired)
			if muted && tt.participant.MutedUntil != nil {
				assert.Equal(t, tt.participant.MutedUntil, until)
			} else if !muted {
				assert.Nil(t, until, "未禁言時不回傳到期時間")
			}
		})
	}
}

func TestSetBanKeepsSetsDisjoint(t *testing.T) {
	owner := primitive.NewObjectID()
	member := primitive.NewObjectID()
	room := testRoom(owner, member)
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	room.SetBan(member, owner, "abuse", at)
	assert.True(t, room.IsBanned(member))
	assert.False(t, room.IsParticipant(member), "同一使用者不能同時是成員又在封鎖名單")

	// 重複封鎖不會長出第二筆紀錄
	room.SetBan(member, owner, "again", at.Add(time.Minute))
	require.Len(t, room.BannedUsers, 1)
	assert.Equal(t, "abuse", room.BannedUsers[0].Reason)

	assert.True(t, room.ClearBan(member))
	assert.False(t, room.IsBanned(member))
	assert.False(t, room.IsParticipant(member), "解封不會自動恢復成員資格")
	assert.False(t, room.ClearBan(member))
}

func TestMuteFieldLifecycle(t *testing.T) {
	owner := primitive.NewObjectID()
	member := primitive.NewObjectID()
	room := testRoom(owner, member)
	until := time.Date(2025, 6, 1, 13, 0, 0, 0, time.UTC)

	assert.False(t, room.SetMute(primitive.NewObjectID(), owner, &until, ""), "非成員不能被禁言")

	require.True(t, room.SetMute(member, owner, &until, "spam"))
	p := room.Participant(member)
	assert.True(t, p.IsMuted)
	assert.Equal(t, owner, *p.MutedBy)
	assert.Equal(t, "spam", p.MuteReason)

	room.ClearMute(member)
	p = room.Participant(member)
	assert.False(t, p.IsMuted)
	assert.Nil(t, p.MutedUntil)
	assert.Nil(t, p.MutedBy)
	assert.Empty(t, p.MuteReason)

	// 清除不存在的成員也不會 panic
	room.ClearMute(primitive.NewObjectID())
}

func TestRoleChecks(t *testing.T) {
	owner := primitive.NewObjectID()
	member := primitive.NewObjectID()
	room := testRoom(owner, member)

	assert.True(t, room.IsOwner(owner))
	assert.True(t, room.CanModerate(owner))
	assert.False(t, room.IsModerator(owner), "IsModerator 不含擁有者")

	assert.False(t, room.CanModerate(member))
	require.True(t, room.SetRole(member, RoleModerator))
	assert.True(t, room.IsModerator(member))
	assert.True(t, room.CanModerate(member))

	assert.False(t, room.SetRole(primitive.NewObjectID(), RoleModerator))
}

func TestAddParticipantIsIdempotent(t *testing.T) {
	owner := primitive.NewObjectID()
	member := primitive.NewObjectID()
	room := testRoom(owner, member)
	at := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

	room.AddParticipant(member, "member again", RoleModerator, at)
	require.Len(t, room.Participants, 2, "重複加入不建立第二筆成員")
	assert.Equal(t, RoleParticipant, room.Participant(member).Role, "既有成員的角色不被覆寫")

	newcomer := primitive.NewObjectID()
	room.AddParticipant(newcomer, "newcomer", RoleParticipant, at)
	assert.Len(t, room.Participants, 3)
}

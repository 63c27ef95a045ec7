package services

import (
	"context"
	"testing"
	"time"

	"go-rooms/backend/apperr"
	"go-rooms/backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newModerationFixture(t *testing.T) (*ModerationService, *fakeRoomRepo, *fakeModerationRepo) {
	t.Helper()
	roomRepo := newFakeRoomRepo()
	logRepo := newFakeModerationRepo()
	return NewModerationService(roomRepo, logRepo, stubNotifier(t)), roomRepo, logRepo
}

func TestVerifyModeratorPermissions(t *testing.T) {
	svc, roomRepo, _ := newModerationFixture(t)
	owner := newActor("owner")
	member := newActor("member")
	roomID := seedRoom(t, roomRepo, owner, member)
	ctx := context.Background()

	perm, err := svc.VerifyModeratorPermissions(ctx, roomID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, Permission{CanModerate: true, IsOwner: true}, perm)

	perm, err = svc.VerifyModeratorPermissions(ctx, roomID, member.ID)
	require.NoError(t, err)
	assert.Equal(t, Permission{}, perm)

	roomRepo.rooms[roomID].SetRole(member.ID, models.RoleModerator)
	perm, err = svc.VerifyModeratorPermissions(ctx, roomID, member.ID)
	require.NoError(t, err)
	assert.Equal(t, Permission{CanModerate: true, IsModerator: true}, perm)

	_, err = svc.VerifyModeratorPermissions(ctx, primitive.NewObjectID(), owner.ID)
	assert.ErrorIs(t, err, apperr.ErrRoomNotFound)
}

func TestMuteAuthorizationAndState(t *testing.T) {
	svc, roomRepo, logRepo := newModerationFixture(t)
	owner := newActor("owner")
	member := newActor("member")
	other := newActor("other")
	roomID := seedRoom(t, roomRepo, owner, member, other)
	ctx := context.Background()

	current := baseTime
	svc.now = func() time.Time { return current }

	// 一般成員不能禁言別人
	_, err := svc.Mute(ctx, roomID, member.ID, other.ID, 10, "spam")
	assert.ErrorIs(t, err, apperr.ErrNotAuthorized)

	// 對象不是成員要拒絕
	_, err = svc.Mute(ctx, roomID, owner.ID, primitive.NewObjectID(), 10, "spam")
	assert.ErrorIs(t, err, apperr.ErrNotParticipant)

	// 擁有者不能被禁言
	_, err = svc.Mute(ctx, roomID, owner.ID, owner.ID, 10, "spam")
	assert.ErrorIs(t, err, apperr.ErrNotAuthorized)

	status, err := svc.Mute(ctx, roomID, owner.ID, member.ID, 10, "spam")
	require.NoError(t, err)
	assert.True(t, status.IsMuted)
	require.NotNil(t, status.MutedUntil)
	assert.Equal(t, baseTime.Add(10*time.Minute), *status.MutedUntil)

	p := roomRepo.rooms[roomID].Participant(member.ID)
	require.NotNil(t, p)
	assert.True(t, p.IsMuted)
	assert.Equal(t, owner.ID, *p.MutedBy)
	assert.Equal(t, "spam", p.MuteReason)

	// durationMinutes <= 0 代表無限期
	status, err = svc.Mute(ctx, roomID, owner.ID, other.ID, 0, "")
	require.NoError(t, err)
	assert.True(t, status.IsMuted)
	assert.Nil(t, status.MutedUntil)

	require.Len(t, logRepo.entries, 2)
	assert.Equal(t, models.ActionMute, logRepo.entries[0].Action)
}

func TestCheckMuteStatusLazyExpiry(t *testing.T) {
	svc, roomRepo, _ := newModerationFixture(t)
	owner := newActor("owner")
	member := newActor("member")
	roomID := seedRoom(t, roomRepo, owner, member)
	ctx := context.Background()

	current := baseTime
	svc.now = func() time.Time { return current }

	_, err := svc.Mute(ctx, roomID, owner.ID, member.ID, 1, "one minute")
	require.NoError(t, err)

	status, err := svc.CheckMuteStatus(ctx, roomID, member.ID)
	require.NoError(t, err)
	assert.True(t, status.IsMuted)
	assert.Equal(t, "one minute", status.Reason)

	// 過期後查詢回報未禁言，但不落盤清除
	current = baseTime.Add(2 * time.Minute)
	status, err = svc.CheckMuteStatus(ctx, roomID, member.ID)
	require.NoError(t, err)
	assert.False(t, status.IsMuted)
	assert.True(t, roomRepo.rooms[roomID].Participant(member.ID).IsMuted, "查詢是唯讀的，欄位留給送訊路徑懶清除")
}

func TestUnmuteIsIdempotent(t *testing.T) {
	svc, roomRepo, logRepo := newModerationFixture(t)
	owner := newActor("owner")
	member := newActor("member")
	roomID := seedRoom(t, roomRepo, owner, member)
	ctx := context.Background()

	_, err := svc.Mute(ctx, roomID, owner.ID, member.ID, 0, "")
	require.NoError(t, err)

	require.NoError(t, svc.Unmute(ctx, roomID, owner.ID, member.ID))
	assert.False(t, roomRepo.rooms[roomID].Participant(member.ID).IsMuted)

	// 沒被禁言也能再呼叫一次，不報錯
	require.NoError(t, svc.Unmute(ctx, roomID, owner.ID, member.ID))
	assert.Len(t, logRepo.entries, 3)
}

func TestKick(t *testing.T) {
	svc, roomRepo, _ := newModerationFixture(t)
	owner := newActor("owner")
	member := newActor("member")
	roomID := seedRoom(t, roomRepo, owner, member)
	ctx := context.Background()

	// 擁有者踢不得
	err := svc.Kick(ctx, roomID, owner.ID, owner.ID, "")
	assert.ErrorIs(t, err, apperr.ErrNotAuthorized)

	require.NoError(t, svc.Kick(ctx, roomID, owner.ID, member.ID, "off-topic"))
	room := roomRepo.rooms[roomID]
	assert.False(t, room.IsParticipant(member.ID))
	assert.False(t, room.IsBanned(member.ID), "踢出不是封鎖，不進封鎖名單")

	// 已經不在房裡，再踢一次要報錯
	err = svc.Kick(ctx, roomID, owner.ID, member.ID, "")
	assert.ErrorIs(t, err, apperr.ErrNotParticipant)
}

func TestBanRemovesParticipation(t *testing.T) {
	svc, roomRepo, _ := newModerationFixture(t)
	owner := newActor("owner")
	member := newActor("member")
	roomID := seedRoom(t, roomRepo, owner, member)
	ctx := context.Background()

	require.NoError(t, svc.Ban(ctx, roomID, owner.ID, member.ID, "abuse"))

	// 封鎖與成員資格互斥：上了名單就同時離開成員列表
	room := roomRepo.rooms[roomID]
	assert.True(t, room.IsBanned(member.ID))
	assert.False(t, room.IsParticipant(member.ID))

	err := svc.Ban(ctx, roomID, owner.ID, member.ID, "again")
	assert.ErrorIs(t, err, apperr.ErrAlreadyBanned)

	err = svc.Ban(ctx, roomID, owner.ID, owner.ID, "")
	assert.ErrorIs(t, err, apperr.ErrNotAuthorized)
}

func TestUnbanDoesNotRestoreMembership(t *testing.T) {
	svc, roomRepo, _ := newModerationFixture(t)
	owner := newActor("owner")
	member := newActor("member")
	roomID := seedRoom(t, roomRepo, owner, member)
	ctx := context.Background()

	require.NoError(t, svc.Ban(ctx, roomID, owner.ID, member.ID, "abuse"))
	require.NoError(t, svc.Unban(ctx, roomID, owner.ID, member.ID))

	room := roomRepo.rooms[roomID]
	assert.False(t, room.IsBanned(member.ID))
	assert.False(t, room.IsParticipant(member.ID), "解封不會自動回到成員列表，要自己重新 join")

	// 沒被封鎖的人不能解封
	err := svc.Unban(ctx, roomID, owner.ID, member.ID)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestCheckBanStatus(t *testing.T) {
	svc, roomRepo, _ := newModerationFixture(t)
	owner := newActor("owner")
	member := newActor("member")
	roomID := seedRoom(t, roomRepo, owner, member)
	ctx := context.Background()

	status, err := svc.CheckBanStatus(ctx, roomID, member.ID)
	require.NoError(t, err)
	assert.False(t, status.IsBanned)

	require.NoError(t, svc.Ban(ctx, roomID, owner.ID, member.ID, "abuse"))
	status, err = svc.CheckBanStatus(ctx, roomID, member.ID)
	require.NoError(t, err)
	assert.True(t, status.IsBanned)
	assert.Equal(t, "abuse", status.Reason)
	assert.NotNil(t, status.BannedAt)
}

func TestModeratorAssignment(t *testing.T) {
	svc, roomRepo, _ := newModerationFixture(t)
	owner := newActor("owner")
	mod := newActor("mod")
	member := newActor("member")
	roomID := seedRoom(t, roomRepo, owner, mod, member)
	ctx := context.Background()

	require.NoError(t, svc.AssignModerator(ctx, roomID, owner.ID, mod.ID))
	assert.True(t, roomRepo.rooms[roomID].IsModerator(mod.ID))

	// 管理員可以禁言，但不能再指派別的管理員——那是擁有者專屬
	_, err := svc.Mute(ctx, roomID, mod.ID, member.ID, 5, "spam")
	require.NoError(t, err)
	err = svc.AssignModerator(ctx, roomID, mod.ID, member.ID)
	assert.ErrorIs(t, err, apperr.ErrNotAuthorized)

	// 擁有者的角色不能動
	err = svc.AssignModerator(ctx, roomID, owner.ID, owner.ID)
	assert.ErrorIs(t, err, apperr.ErrNotAuthorized)

	err = svc.AssignModerator(ctx, roomID, owner.ID, primitive.NewObjectID())
	assert.ErrorIs(t, err, apperr.ErrNotParticipant)

	require.NoError(t, svc.RemoveModerator(ctx, roomID, owner.ID, mod.ID))
	assert.False(t, roomRepo.rooms[roomID].IsModerator(mod.ID))
	assert.True(t, roomRepo.rooms[roomID].IsParticipant(mod.ID))
}

func TestModerationLogsAndStats(t *testing.T) {
	svc, roomRepo, _ := newModerationFixture(t)
	owner := newActor("owner")
	member := newActor("member")
	roomID := seedRoom(t, roomRepo, owner, member)
	ctx := context.Background()

	current := baseTime
	svc.now = func() time.Time {
		current = current.Add(time.Second)
		return current
	}

	_, err := svc.Mute(ctx, roomID, owner.ID, member.ID, 5, "spam")
	require.NoError(t, err)
	require.NoError(t, svc.Unmute(ctx, roomID, owner.ID, member.ID))
	require.NoError(t, svc.Ban(ctx, roomID, owner.ID, member.ID, "abuse"))

	// 一般成員（已被封，但就算在房內也一樣）看不到紀錄
	_, err = svc.Logs(ctx, roomID, member.ID, 10, 0)
	assert.ErrorIs(t, err, apperr.ErrNotAuthorized)

	entries, err := svc.Logs(ctx, roomID, owner.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, models.ActionBan, entries[0].Action, "紀錄新到舊排序")

	stats, err := svc.Stats(ctx, roomID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Total)
	assert.Equal(t, int64(1), stats.ByAction[models.ActionMute])
	assert.Equal(t, int64(1), stats.ByAction[models.ActionUnmute])
	assert.Equal(t, int64(1), stats.ByAction[models.ActionBan])
}

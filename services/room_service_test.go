package services

import (
	"context"
	"testing"

	"go-rooms/backend/apperr"
	"go-rooms/backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newRoomFixture(t *testing.T) (*RoomService, *fakeRoomRepo) {
	t.Helper()
	roomRepo := newFakeRoomRepo()
	return NewRoomService(roomRepo, stubNotifier(t)), roomRepo
}

func TestCreateRoomDefaults(t *testing.T) {
	svc, _ := newRoomFixture(t)
	creator := newActor("creator")
	ctx := context.Background()

	room, err := svc.Create(ctx, creator, CreateRoomInput{Name: "  General  "})
	require.NoError(t, err)
	assert.Equal(t, "General", room.Name)
	assert.Equal(t, models.RoomTypeCommunity, room.RoomType)
	assert.Equal(t, models.RoomSettings{MaxParticipants: 100, IsJoinable: true, IsPublic: true}, room.Settings)
	require.Len(t, room.Participants, 1)
	assert.Equal(t, models.RoleOwner, room.Participants[0].Role, "建立者自動成為擁有者")
	assert.True(t, room.CanModerate(creator.ID))

	_, err = svc.Create(ctx, creator, CreateRoomInput{Name: "   "})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestGetRoomPrivacy(t *testing.T) {
	svc, roomRepo := newRoomFixture(t)
	owner := newActor("owner")
	member := newActor("member")
	roomID := seedRoom(t, roomRepo, owner, member)
	ctx := context.Background()

	roomRepo.rooms[roomID].Settings.IsPublic = false

	// 私密聊天室對非成員一律回 404，不暴露存在與否
	_, err := svc.Get(ctx, roomID, primitive.NewObjectID())
	assert.ErrorIs(t, err, apperr.ErrRoomNotFound)

	room, err := svc.Get(ctx, roomID, member.ID)
	require.NoError(t, err)
	assert.Equal(t, roomID, room.ID)
}

func TestJoinRoom(t *testing.T) {
	svc, roomRepo := newRoomFixture(t)
	owner := newActor("owner")
	roomID := seedRoom(t, roomRepo, owner)
	ctx := context.Background()

	joiner := newActor("joiner")
	room, err := svc.Join(ctx, roomID, joiner)
	require.NoError(t, err)
	p := room.Participant(joiner.ID)
	require.NotNil(t, p)
	assert.Equal(t, models.RoleParticipant, p.Role)

	// 已是成員時重複 join 是 no-op
	again, err := svc.Join(ctx, roomID, joiner)
	require.NoError(t, err)
	assert.Len(t, again.Participants, 2)
}

func TestJoinRoomRejections(t *testing.T) {
	svc, roomRepo := newRoomFixture(t)
	owner := newActor("owner")
	roomID := seedRoom(t, roomRepo, owner)
	ctx := context.Background()
	joiner := newActor("joiner")

	roomRepo.rooms[roomID].Settings.IsJoinable = false
	_, err := svc.Join(ctx, roomID, joiner)
	assert.ErrorIs(t, err, apperr.ErrRoomNotJoinable)

	roomRepo.rooms[roomID].Settings.IsJoinable = true
	roomRepo.rooms[roomID].Settings.MaxParticipants = 1
	_, err = svc.Join(ctx, roomID, joiner)
	assert.ErrorIs(t, err, apperr.ErrRoomFull)

	roomRepo.rooms[roomID].Settings.MaxParticipants = 100
	roomRepo.rooms[roomID].IsArchived = true
	_, err = svc.Join(ctx, roomID, joiner)
	assert.ErrorIs(t, err, apperr.ErrRoomNotFound, "封存的聊天室對 join 視同不存在")
}

func TestBanThenUnbanThenRejoin(t *testing.T) {
	roomRepo := newFakeRoomRepo()
	notifier := stubNotifier(t)
	roomSvc := NewRoomService(roomRepo, notifier)
	modSvc := NewModerationService(roomRepo, newFakeModerationRepo(), notifier)

	owner := newActor("owner")
	member := newActor("member")
	roomID := seedRoom(t, roomRepo, owner, member)
	ctx := context.Background()

	require.NoError(t, modSvc.Ban(ctx, roomID, owner.ID, member.ID, "abuse"))

	// 封鎖期間不能重新加入
	_, err := roomSvc.Join(ctx, roomID, member)
	assert.ErrorIs(t, err, apperr.ErrUserBanned)

	require.NoError(t, modSvc.Unban(ctx, roomID, owner.ID, member.ID))

	// 解封後 join 成功，角色回到一般成員
	room, err := roomSvc.Join(ctx, roomID, member)
	require.NoError(t, err)
	p := room.Participant(member.ID)
	require.NotNil(t, p)
	assert.Equal(t, models.RoleParticipant, p.Role)
}

func TestLeaveRoom(t *testing.T) {
	svc, roomRepo := newRoomFixture(t)
	owner := newActor("owner")
	member := newActor("member")
	roomID := seedRoom(t, roomRepo, owner, member)
	ctx := context.Background()

	// 還有其他成員時擁有者不得退出
	err := svc.Leave(ctx, roomID, owner)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	require.NoError(t, svc.Leave(ctx, roomID, member))
	assert.False(t, roomRepo.rooms[roomID].IsParticipant(member.ID))

	err = svc.Leave(ctx, roomID, member)
	assert.ErrorIs(t, err, apperr.ErrNotParticipant)

	// 最後一名成員是擁有者：退出等於封存
	require.NoError(t, svc.Leave(ctx, roomID, owner))
	room := roomRepo.rooms[roomID]
	assert.True(t, room.IsArchived)
	assert.Empty(t, room.Participants)
}

func TestUpdateRoomOwnerOnly(t *testing.T) {
	svc, roomRepo := newRoomFixture(t)
	owner := newActor("owner")
	member := newActor("member")
	roomID := seedRoom(t, roomRepo, owner, member)
	ctx := context.Background()

	name := "Renamed"
	_, err := svc.Update(ctx, roomID, member.ID, UpdateRoomInput{Name: &name})
	assert.ErrorIs(t, err, apperr.ErrNotAuthorized)

	desc := "  fresh description  "
	room, err := svc.Update(ctx, roomID, owner.ID, UpdateRoomInput{Name: &name, Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", room.Name)
	assert.Equal(t, "fresh description", room.Description)

	empty := "  "
	_, err = svc.Update(ctx, roomID, owner.ID, UpdateRoomInput{Name: &empty})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestArchiveRoom(t *testing.T) {
	svc, roomRepo := newRoomFixture(t)
	owner := newActor("owner")
	member := newActor("member")
	roomID := seedRoom(t, roomRepo, owner, member)
	ctx := context.Background()

	err := svc.Archive(ctx, roomID, member)
	assert.ErrorIs(t, err, apperr.ErrNotAuthorized)

	// 平台管理員不是成員也能封存
	admin := Actor{ID: primitive.NewObjectID(), DisplayName: "admin", Role: "admin"}
	require.NoError(t, svc.Archive(ctx, roomID, admin))

	room := roomRepo.rooms[roomID]
	assert.True(t, room.IsArchived)
	require.NotNil(t, room.ArchivedAt)
	assert.Len(t, room.Participants, 2, "封存保留成員與歷史，不做硬刪除")

	// 重複封存是 no-op
	require.NoError(t, svc.Archive(ctx, roomID, owner))
}

func TestListPublicRooms(t *testing.T) {
	svc, roomRepo := newRoomFixture(t)
	owner := newActor("owner")
	ctx := context.Background()

	visible := seedRoom(t, roomRepo, owner)
	hidden := seedRoom(t, roomRepo, owner)
	archived := seedRoom(t, roomRepo, owner)
	roomRepo.rooms[hidden].Settings.IsPublic = false
	roomRepo.rooms[archived].IsArchived = true

	page, err := svc.List(ctx, ListRoomsOptions{})
	require.NoError(t, err)
	require.Len(t, page.Rooms, 1, "只列公開且未封存的聊天室")
	assert.Equal(t, visible, page.Rooms[0].ID)
	assert.Equal(t, int64(1), page.Total)
	assert.Equal(t, 1, page.Page)
}

func TestMineListsOnlyJoinedRooms(t *testing.T) {
	svc, roomRepo := newRoomFixture(t)
	owner := newActor("owner")
	member := newActor("member")
	joined := seedRoom(t, roomRepo, owner, member)
	seedRoom(t, roomRepo, owner)

	rooms, err := svc.Mine(context.Background(), member.ID)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, joined, rooms[0].ID)
}

package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/quocanhngo/tradetalk/internal/model"
	"github.com/quocanhngo/tradetalk/internal/repository"
	"github.com/quocanhngo/tradetalk/internal/testutil"
	"github.com/quocanhngo/tradetalk/pkg/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindOrCreate_IsIdempotentAndOrderInsensitive(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	repo := repository.NewConversationRepository(db)
	alice := testutil.CreateUser(t, db, "alice", model.UserRoleBuyer)
	bob := testutil.CreateUser(t, db, "bob", model.UserRoleSeller)

	first, created, err := repo.FindOrCreate(ctx, alice.ID, bob.ID, nil, model.ConversationTypeDirect, "")
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := repo.FindOrCreate(ctx, bob.ID, alice.ID, nil, model.ConversationTypeDirect, "")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	p1, p2 := model.CanonicalPair(alice.ID, bob.ID)
	assert.Equal(t, p1, second.Participant1ID)
	assert.Equal(t, p2, second.Participant2ID)

	var statuses []model.ReadStatus
	require.NoError(t, db.Where("conversation_id = ?", first.ID).Find(&statuses).Error)
	assert.Len(t, statuses, 2)
	for _, s := range statuses {
		assert.Zero(t, s.UnreadCount)
	}
}

func TestFindOrCreate_ListingScopesConversations(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	repo := repository.NewConversationRepository(db)
	buyer := testutil.CreateUser(t, db, "buyer", model.UserRoleBuyer)
	seller := testutil.CreateUser(t, db, "seller", model.UserRoleSeller)
	bike := testutil.CreateListing(t, db, seller.ID, "bike")
	lamp := testutil.CreateListing(t, db, seller.ID, "lamp")

	direct, _, err := repo.FindOrCreate(ctx, buyer.ID, seller.ID, nil, model.ConversationTypeDirect, "")
	require.NoError(t, err)
	aboutBike, _, err := repo.FindOrCreate(ctx, buyer.ID, seller.ID, &bike.ID, model.ConversationTypeListingInquiry, bike.Title)
	require.NoError(t, err)
	aboutLamp, _, err := repo.FindOrCreate(ctx, buyer.ID, seller.ID, &lamp.ID, model.ConversationTypeListingInquiry, lamp.Title)
	require.NoError(t, err)

	assert.NotEqual(t, direct.ID, aboutBike.ID)
	assert.NotEqual(t, aboutBike.ID, aboutLamp.ID)

	again, created, err := repo.FindOrCreate(ctx, seller.ID, buyer.ID, &bike.ID, model.ConversationTypeListingInquiry, "")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, aboutBike.ID, again.ID)
}

func TestFindOrCreate_RejectsSelfConversation(t *testing.T) {
	db := testutil.NewDB(t)
	repo := repository.NewConversationRepository(db)
	alice := testutil.CreateUser(t, db, "alice", model.UserRoleBuyer)

	_, _, err := repo.FindOrCreate(context.Background(), alice.ID, alice.ID, nil, model.ConversationTypeDirect, "")
	assert.Equal(t, apperror.CodeInvalidParticipants, apperror.CodeOf(err))
}

func TestDeactivate_StartsFreshConversation(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	repo := repository.NewConversationRepository(db)
	alice := testutil.CreateUser(t, db, "alice", model.UserRoleBuyer)
	bob := testutil.CreateUser(t, db, "bob", model.UserRoleSeller)

	old, _, err := repo.FindOrCreate(ctx, alice.ID, bob.ID, nil, model.ConversationTypeDirect, "")
	require.NoError(t, err)
	require.NoError(t, repo.Deactivate(ctx, old.ID))

	fresh, created, err := repo.FindOrCreate(ctx, alice.ID, bob.ID, nil, model.ConversationTypeDirect, "")
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, old.ID, fresh.ID)

	reloaded, err := repo.FindByID(ctx, old.ID)
	require.NoError(t, err)
	assert.False(t, reloaded.IsActive)
}

func TestListForUser_FiltersAndSummaries(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	store := repository.NewStore(db)
	buyer := testutil.CreateUser(t, db, "buyer", model.UserRoleBuyer)
	carol := testutil.CreateUser(t, db, "carol", model.UserRoleSeller)
	dave := testutil.CreateUser(t, db, "dave", model.UserRoleSeller)
	bike := testutil.CreateListing(t, db, carol.ID, "vintage bike")

	withCarol, _, err := store.Conversations.FindOrCreate(ctx, buyer.ID, carol.ID, &bike.ID, model.ConversationTypeListingInquiry, bike.Title)
	require.NoError(t, err)
	withDave, _, err := store.Conversations.FindOrCreate(ctx, buyer.ID, dave.ID, nil, model.ConversationTypeDirect, "")
	require.NoError(t, err)

	// dave writes last, so his conversation sorts first
	base := time.Now()
	require.NoError(t, store.Conversations.TouchOnNewMessage(ctx, withCarol.ID, "is it available?", base))
	require.NoError(t, store.Conversations.TouchOnNewMessage(ctx, withDave.ID, "hi", base.Add(time.Minute)))
	require.NoError(t, store.ReadStatus.Increment(ctx, buyer.ID, withDave.ID))

	page := model.Pagination{Page: 1, Limit: 10}
	all, total, err := store.Conversations.ListForUser(ctx, buyer.ID, model.ConversationFilter{}, page)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.EqualValues(t, 2, total)
	assert.Equal(t, withDave.ID, all[0].ID)
	assert.Equal(t, dave.ID, all[0].OtherParticipant.ID)
	assert.Equal(t, 1, all[0].UnreadCount)
	assert.Nil(t, all[0].Listing)

	assert.Equal(t, carol.ID, all[1].OtherParticipant.ID)
	require.NotNil(t, all[1].Listing)
	assert.Equal(t, "vintage bike", all[1].Listing.Title)

	unread := true
	onlyUnread, total, err := store.Conversations.ListForUser(ctx, buyer.ID, model.ConversationFilter{HasUnread: &unread}, page)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, onlyUnread, 1)
	assert.Equal(t, withDave.ID, onlyUnread[0].ID)

	byListing, _, err := store.Conversations.ListForUser(ctx, buyer.ID, model.ConversationFilter{Search: "VINTAGE"}, page)
	require.NoError(t, err)
	require.Len(t, byListing, 1)
	assert.Equal(t, withCarol.ID, byListing[0].ID)

	byName, _, err := store.Conversations.ListForUser(ctx, buyer.ID, model.ConversationFilter{Search: "dav"}, page)
	require.NoError(t, err)
	require.Len(t, byName, 1)
	assert.Equal(t, withDave.ID, byName[0].ID)

	inquiries, _, err := store.Conversations.ListForUser(ctx, buyer.ID, model.ConversationFilter{Type: model.ConversationTypeListingInquiry}, page)
	require.NoError(t, err)
	require.Len(t, inquiries, 1)

	oldestFirst, _, err := store.Conversations.ListForUser(ctx, buyer.ID, model.ConversationFilter{SortOrder: "asc"}, page)
	require.NoError(t, err)
	require.Len(t, oldestFirst, 2)
	assert.Equal(t, withCarol.ID, oldestFirst[0].ID)

	// carol only sees her own conversation
	carols, total, err := store.Conversations.ListForUser(ctx, carol.ID, model.ConversationFilter{}, page)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, carols, 1)
	assert.Equal(t, buyer.ID, carols[0].OtherParticipant.ID)
}

func TestSummary_HidesConversationFromOutsiders(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	repo := repository.NewConversationRepository(db)
	alice := testutil.CreateUser(t, db, "alice", model.UserRoleBuyer)
	bob := testutil.CreateUser(t, db, "bob", model.UserRoleSeller)
	eve := testutil.CreateUser(t, db, "eve", model.UserRoleBuyer)

	conv, _, err := repo.FindOrCreate(ctx, alice.ID, bob.ID, nil, model.ConversationTypeDirect, "")
	require.NoError(t, err)

	summary, err := repo.Summary(ctx, conv.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, bob.ID, summary.OtherParticipant.ID)
	assert.Equal(t, "bob", summary.OtherParticipant.Name)

	_, err = repo.Summary(ctx, conv.ID, eve.ID)
	assert.Equal(t, apperror.CodeNotFound, apperror.CodeOf(err))
}

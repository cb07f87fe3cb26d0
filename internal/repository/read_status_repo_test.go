package repository_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/quocanhngo/tradetalk/internal/model"
	"github.com/quocanhngo/tradetalk/internal/repository"
	"github.com/quocanhngo/tradetalk/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIncrement_ConcurrentSendsAreNotLost(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture(t)

	const sends = 20
	var wg sync.WaitGroup
	errs := make(chan error, sends)
	for i := 0; i < sends; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- f.store.ReadStatus.Increment(ctx, f.bob.ID, f.conv.ID)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	status, err := f.store.ReadStatus.Get(ctx, f.bob.ID, f.conv.ID)
	require.NoError(t, err)
	assert.Equal(t, sends, status.UnreadCount)

	sender, err := f.store.ReadStatus.Get(ctx, f.alice.ID, f.conv.ID)
	require.NoError(t, err)
	assert.Zero(t, sender.UnreadCount)
}

func TestResetAndSync(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture(t)

	for i := 0; i < 3; i++ {
		require.NoError(t, f.store.ReadStatus.Increment(ctx, f.bob.ID, f.conv.ID))
	}

	watermark := uint64(7)
	require.NoError(t, f.store.ReadStatus.Sync(ctx, f.bob.ID, f.conv.ID, 1, &watermark, time.Now()))
	status, err := f.store.ReadStatus.Get(ctx, f.bob.ID, f.conv.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, status.UnreadCount)
	require.NotNil(t, status.LastReadMessageID)
	assert.EqualValues(t, 7, *status.LastReadMessageID)

	require.NoError(t, f.store.ReadStatus.Reset(ctx, f.bob.ID, f.conv.ID, nil, time.Now()))
	status, err = f.store.ReadStatus.Get(ctx, f.bob.ID, f.conv.ID)
	require.NoError(t, err)
	assert.Zero(t, status.UnreadCount)
	assert.NotNil(t, status.LastReadAt)
}

func TestGet_MissingRowIsZeroValue(t *testing.T) {
	f := newChatFixture(t)
	stranger := uuid.New()

	status, err := f.store.ReadStatus.Get(context.Background(), stranger, f.conv.ID)
	require.NoError(t, err)
	assert.Equal(t, stranger, status.UserID)
	assert.Zero(t, status.UnreadCount)
	assert.Nil(t, status.LastReadMessageID)
}

func TestTotalUnread_SkipsInactiveConversations(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture(t)
	carol := testutil.CreateUser(t, f.db, "carol", model.UserRoleBuyer)

	other, _, err := f.store.Conversations.FindOrCreate(ctx, f.bob.ID, carol.ID, nil, model.ConversationTypeDirect, "")
	require.NoError(t, err)

	require.NoError(t, f.store.ReadStatus.Increment(ctx, f.bob.ID, f.conv.ID))
	require.NoError(t, f.store.ReadStatus.Increment(ctx, f.bob.ID, f.conv.ID))
	require.NoError(t, f.store.ReadStatus.Increment(ctx, f.bob.ID, other.ID))

	total, err := f.store.ReadStatus.TotalUnread(ctx, f.bob.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)

	require.NoError(t, f.store.Conversations.Deactivate(ctx, other.ID))
	total, err = f.store.ReadStatus.TotalUnread(ctx, f.bob.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
}

func TestTransaction_RollsBackEverything(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture(t)
	boom := errors.New("boom")

	err := f.store.Transaction(ctx, func(tx *repository.Store) error {
		conv, err := tx.Conversations.LockByID(ctx, f.conv.ID)
		if err != nil {
			return err
		}
		if _, err := tx.Messages.Append(ctx, conv, f.alice.ID, "lost", model.MessageTypeText, nil); err != nil {
			return err
		}
		if err := tx.ReadStatus.Increment(ctx, f.bob.ID, conv.ID); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	latest, err := f.store.Messages.LatestID(ctx, f.conv.ID)
	require.NoError(t, err)
	assert.Zero(t, latest)

	status, err := f.store.ReadStatus.Get(ctx, f.bob.ID, f.conv.ID)
	require.NoError(t, err)
	assert.Zero(t, status.UnreadCount)
}

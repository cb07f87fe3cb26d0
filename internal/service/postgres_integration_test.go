//go:build integration

package service

import (
	"context"
	"log"
	"os"
	"sync"
	"testing"

	"github.com/quocanhngo/tradetalk/internal/model"
	"github.com/quocanhngo/tradetalk/internal/repository"
	"github.com/quocanhngo/tradetalk/internal/testutil"
	"github.com/quocanhngo/tradetalk/migrations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// pgDB is a migrated Postgres database shared by the integration tests; nil when Docker is unavailable
var pgDB *gorm.DB

func TestMain(m *testing.M) {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("tradetalk"),
		postgres.WithUsername("tradetalk"),
		postgres.WithPassword("password"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		log.Printf("failed to start postgres container: %v", err)
		os.Exit(m.Run())
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		log.Fatalf("failed to get connection string: %v", err)
	}
	if err := migrations.Run(connStr); err != nil {
		log.Fatalf("failed to migrate: %v", err)
	}
	pgDB, err = gorm.Open(gormpostgres.Open(connStr), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		log.Fatalf("failed to open gorm: %v", err)
	}

	code := m.Run()
	if err := container.Terminate(ctx); err != nil {
		log.Printf("failed to terminate container: %v", err)
	}
	os.Exit(code)
}

func newPostgresFixture(t *testing.T) *serviceFixture {
	t.Helper()
	if pgDB == nil {
		t.Skip("postgres container not available")
	}
	store := repository.NewStore(pgDB)
	hub := newFakeHub()
	notifier := &fakeNotifier{calls: make(chan pushCall, 256)}
	return &serviceFixture{
		db:       pgDB,
		store:    store,
		svc:      NewChatService(store, repository.NewUserRepository(pgDB), repository.NewListingRepository(pgDB), hub, notifier),
		hub:      hub,
		notifier: notifier,
		alice:    testutil.CreateUser(t, pgDB, "alice", model.UserRoleBuyer),
		bob:      testutil.CreateUser(t, pgDB, "bob", model.UserRoleSeller),
	}
}

func TestPostgres_ConcurrentCreateYieldsOneConversation(t *testing.T) {
	ctx := context.Background()
	f := newPostgresFixture(t)

	const callers = 8
	ids := make(chan string, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			from, to := f.alice, f.bob
			if i%2 == 1 {
				from, to = f.bob, f.alice
			}
			summary, _, err := f.svc.CreateOrGetConversation(ctx, from.ID, model.CreateConversationRequest{ParticipantID: to.ID})
			if assert.NoError(t, err) {
				ids <- summary.ID.String()
			}
		}(i)
	}
	wg.Wait()
	close(ids)

	distinct := map[string]bool{}
	for id := range ids {
		distinct[id] = true
	}
	assert.Len(t, distinct, 1)
}

func TestPostgres_ConcurrentSendsKeepCountsExact(t *testing.T) {
	ctx := context.Background()
	f := newPostgresFixture(t)
	conv := f.conversation(t)

	const perSide = 15
	var wg sync.WaitGroup
	for _, sender := range []*model.User{f.alice, f.bob} {
		for i := 0; i < perSide; i++ {
			wg.Add(1)
			go func(sender *model.User) {
				defer wg.Done()
				_, err := f.svc.SendMessage(ctx, sender.ID, model.SendMessageRequest{ConversationID: conv.ID, Content: "ping"})
				assert.NoError(t, err)
			}(sender)
		}
	}
	wg.Wait()

	assert.Equal(t, perSide, f.unread(t, f.alice, conv.ID))
	assert.Equal(t, perSide, f.unread(t, f.bob, conv.ID))

	summary, err := f.svc.GetConversation(ctx, f.alice.ID, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, 2*perSide, summary.MessageCount)

	updated, err := f.svc.MarkAsRead(ctx, f.bob.ID, model.MarkReadRequest{ConversationID: conv.ID, MarkAllAsRead: true})
	require.NoError(t, err)
	assert.EqualValues(t, perSide, updated)
	assert.Zero(t, f.unread(t, f.bob, conv.ID))
	assert.Equal(t, perSide, f.unread(t, f.alice, conv.ID))
}

func TestPostgres_PartialReadLeavesExactRemainder(t *testing.T) {
	ctx := context.Background()
	f := newPostgresFixture(t)
	conv := f.conversation(t)

	var ids []uint64
	for i := 0; i < 5; i++ {
		ids = append(ids, f.send(t, f.alice, conv.ID, "offer").ID)
	}

	updated, err := f.svc.MarkAsRead(ctx, f.bob.ID, model.MarkReadRequest{ConversationID: conv.ID, MessageIDs: ids[:2]})
	require.NoError(t, err)
	assert.EqualValues(t, 2, updated)
	assert.Equal(t, 3, f.unread(t, f.bob, conv.ID))

	total, err := f.svc.GetUnreadCount(ctx, f.bob.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
}

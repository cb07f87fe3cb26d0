package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/quocanhngo/tradetalk/internal/config"
	"github.com/quocanhngo/tradetalk/internal/model"
	"github.com/quocanhngo/tradetalk/internal/repository"
	"github.com/quocanhngo/tradetalk/internal/service"
	"github.com/quocanhngo/tradetalk/internal/ws"
	"github.com/quocanhngo/tradetalk/migrations"
	"github.com/quocanhngo/tradetalk/pkg/auth"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type seedUser struct {
	name  string
	email string
	role  model.UserRole
}

var seedUsers = []seedUser{
	{"Alice Buyer", "alice@tradetalk.local", model.UserRoleBuyer},
	{"Bob Buyer", "bob@tradetalk.local", model.UserRoleBuyer},
	{"Sam Seller", "sam@tradetalk.local", model.UserRoleSeller},
	{"Sara Seller", "sara@tradetalk.local", model.UserRoleSeller},
	{"Ada Admin", "admin@tradetalk.local", model.UserRoleAdmin},
}

func main() {
	fresh := flag.Bool("fresh", false, "roll back every migration before seeding")
	flag.Parse()

	cfg := config.Load()

	if *fresh {
		if err := migrations.Reset(cfg.DB.URL()); err != nil {
			log.Fatalf("❌ Failed to reset database: %v", err)
		}
	}
	if err := migrations.Run(cfg.DB.URL()); err != nil {
		log.Fatalf("❌ Failed to migrate database: %v", err)
	}

	// Force DB logging off to avoid noise
	db, err := gorm.Open(postgres.Open(cfg.DB.DSN()), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	log.Println("✅ Connected to Database")

	ctx := context.Background()
	jwtManager := auth.NewJWTManager(cfg.JWT.Secret, cfg.JWT.Expiry)

	log.Printf("🌱 Seeding %d users...", len(seedUsers))
	users := make(map[string]*model.User, len(seedUsers))
	for _, su := range seedUsers {
		user, err := upsertUser(ctx, db, su)
		if err != nil {
			log.Fatalf("❌ Failed to seed user %s: %v", su.email, err)
		}
		users[su.email] = user

		token, err := jwtManager.GenerateToken(user.ID, user.Email, user.Name, string(user.Role))
		if err != nil {
			log.Fatalf("❌ Failed to sign token for %s: %v", su.email, err)
		}
		fmt.Printf("%-24s %-7s %s\n", user.Email, user.Role, token)
	}

	seedConversations(ctx, db, users)

	log.Println("🎉 Seeding completed!")
}

func upsertUser(ctx context.Context, db *gorm.DB, su seedUser) (*model.User, error) {
	var existing model.User
	if err := db.WithContext(ctx).Where("email = ?", su.email).First(&existing).Error; err == nil {
		return &existing, nil
	}

	user := &model.User{
		Name:                  su.name,
		Email:                 su.email,
		Role:                  su.role,
		IsNotificationEnabled: true,
		Avatar:                "https://api.dicebear.com/7.x/avataaars/svg?seed=" + su.email,
	}
	if err := repository.NewUserRepository(db).Create(ctx, user); err != nil {
		return nil, err
	}
	log.Printf("✅ Created user: %s [%s]", user.Email, user.Role)
	return user, nil
}

// seedConversations creates a listing per seller and a buyer inquiry on each.
// It goes through the chat service so conversations, messages and unread counts stay consistent.
func seedConversations(ctx context.Context, db *gorm.DB, users map[string]*model.User) {
	listingRepo := repository.NewListingRepository(db)
	chat := service.NewChatService(
		repository.NewStore(db),
		repository.NewUserRepository(db),
		listingRepo,
		ws.NewHub(nil, nil),
		nil,
	)

	inquiries := []struct {
		seller, buyer, title, message string
	}{
		{"sam@tradetalk.local", "alice@tradetalk.local", "Vintage road bike", "Hi! Is the bike still available?"},
		{"sara@tradetalk.local", "bob@tradetalk.local", "Espresso machine", "Would you take 150 for it?"},
	}

	for _, inq := range inquiries {
		seller, buyer := users[inq.seller], users[inq.buyer]

		var listing model.Listing
		err := db.WithContext(ctx).Where("owner_id = ? AND title = ?", seller.ID, inq.title).First(&listing).Error
		if err == nil {
			log.Printf("🔄 Listing %q already seeded", inq.title)
			continue
		}
		listing = model.Listing{OwnerID: seller.ID, Title: inq.title}
		if err := listingRepo.Create(ctx, &listing); err != nil {
			log.Printf("❌ Failed to create listing %q: %v", inq.title, err)
			continue
		}

		res, err := chat.ContactListing(ctx, buyer.ID, listing.ID, inq.message)
		if err != nil {
			log.Printf("❌ Failed to contact seller for %q: %v", inq.title, err)
			continue
		}
		log.Printf("✅ Conversation %s: %s -> %s about %q", res.Conversation.ID, buyer.Name, seller.Name, inq.title)
	}
}

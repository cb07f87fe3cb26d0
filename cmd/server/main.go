package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/quocanhngo/tradetalk/internal/config"
	"github.com/quocanhngo/tradetalk/internal/handler"
	"github.com/quocanhngo/tradetalk/internal/repository"
	"github.com/quocanhngo/tradetalk/internal/service"
	"github.com/quocanhngo/tradetalk/internal/ws"
	"github.com/quocanhngo/tradetalk/migrations"
	"github.com/quocanhngo/tradetalk/pkg/auth"
	"github.com/quocanhngo/tradetalk/pkg/notification"
	"github.com/quocanhngo/tradetalk/pkg/storage"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// @title           TradeTalk API
// @version         1.0
// @description     Buyer/seller messaging for the marketplace: conversations, messages, read status, presence and push.
// @termsOfService  http://swagger.io/terms/

// @contact.name   API Support
// @contact.url    http://www.swagger.io/support
// @contact.email  support@tradetalk.local

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      api.localhost
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	// ==================== Load Config ====================
	cfg := config.Load()
	log.Printf("🚀 Starting TradeTalk API Server [env=%s]", cfg.App.Env)

	// ==================== Database (PostgreSQL) ====================
	gormLogger := logger.Default.LogMode(logger.Info)
	if cfg.App.IsProduction() {
		gormLogger = logger.Default.LogMode(logger.Warn)
	}

	db, err := gorm.Open(postgres.Open(cfg.DB.DSN()), &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
	})
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	log.Println("✅ Connected to PostgreSQL")

	// ==================== Run Migrations ====================
	if err := migrations.Run(cfg.DB.URL()); err != nil {
		log.Printf("⚠️  Migration warning: %v", err)
		log.Println("📦 Falling back to GORM AutoMigrate...")
		if err := repository.AutoMigrate(db); err != nil {
			log.Fatalf("❌ Failed to migrate database: %v", err)
		}
	}
	log.Println("✅ Database migrated successfully")

	// ==================== Redis ====================
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       0,
	})

	ctx := context.Background()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		log.Fatalf("❌ Failed to connect to Redis: %v", err)
	}
	log.Println("✅ Connected to Redis")

	// ==================== Initialize Layers ====================
	jwtManager := auth.NewJWTManager(cfg.JWT.Secret, cfg.JWT.Expiry)
	authenticator := auth.NewAuthenticator(jwtManager, auth.NewRedisBlacklist(rdb))

	// Repositories
	store := repository.NewStore(db)
	userRepo := repository.NewUserRepository(db)
	listingRepo := repository.NewListingRepository(db)

	// WebSocket Hub (Redis Pub/Sub relays events between instances)
	var relay ws.Relay
	if cfg.Hub.Relay == config.RelayRedis {
		relay = ws.NewRedisRelay(rdb)
	}
	hub := ws.NewHub(relay, func(userID uuid.UUID, online bool) {
		if err := userRepo.UpdateOnlineStatus(context.Background(), userID, online, time.Now()); err != nil {
			log.Printf("⚠️  Failed to store presence for %s: %v", userID, err)
			return
		}
		log.Printf("👤 User %s is now %s", userID, map[bool]string{true: "ONLINE", false: "OFFLINE"}[online])
	})

	hubCtx, hubCancel := context.WithCancel(context.Background())
	defer hubCancel()
	go hub.Run(hubCtx)
	log.Printf("🔌 Hub relay: %s", cfg.Hub.Relay)

	// Push notifications (FCM); a missing credentials file disables push
	var pushSender notification.Sender
	if fcm := notification.NewFCMSender(ctx, cfg.Firebase.CredentialsFile); fcm != nil {
		pushSender = fcm
	}
	bridge := notification.NewBridge(userRepo, pushSender)

	// Services
	chatService := service.NewChatService(store, userRepo, listingRepo, hub, bridge)
	authService := service.NewAuthService(userRepo, authenticator)

	// MinIO Storage
	var attachments storage.Storage
	minioStorage, err := storage.NewMinIO(ctx, storage.Config{
		Endpoint:  cfg.MinIO.Endpoint,
		PublicURL: cfg.MinIO.PublicURL,
		AccessKey: cfg.MinIO.AccessKey,
		SecretKey: cfg.MinIO.SecretKey,
		Bucket:    cfg.MinIO.Bucket,
		UseSSL:    cfg.MinIO.UseSSL,
	})
	if err != nil {
		log.Printf("⚠️  MinIO not available: %v (file upload disabled)", err)
	} else {
		attachments = minioStorage
		log.Println("✅ Connected to MinIO")
	}

	// ==================== Gin Router ====================
	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := handler.NewRouter(handler.RouterDeps{
		ChatService:   chatService,
		AuthService:   authService,
		Hub:           hub,
		Authenticator: authenticator,
		Storage:       attachments,
		CORSOrigins:   cfg.CORS.Origins,
	})

	// ==================== Start Server ====================
	srv := &http.Server{
		Addr:    ":" + cfg.App.Port,
		Handler: router,
	}

	// Graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Server failed: %v", err)
		}
	}()

	log.Printf("🌐 TradeTalk API running on http://0.0.0.0:%s", cfg.App.Port)
	log.Printf("📋 API docs: http://0.0.0.0:%s/swagger/index.html", cfg.App.Port)
	log.Printf("📈 Metrics: http://0.0.0.0:%s/metrics", cfg.App.Port)
	log.Printf("🔌 WebSocket: ws://0.0.0.0:%s/ws?token=<jwt>", cfg.App.Port)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("🛑 Shutting down server...")

	// Give ongoing requests 5 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("❌ Server forced to shutdown: %v", err)
	}

	hubCancel()
	log.Println("✅ Server exited gracefully")
}

package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ad/go-telegram-levelquiz/internal/catalog"
	"github.com/ad/go-telegram-levelquiz/internal/config"
	"github.com/ad/go-telegram-levelquiz/internal/db"
	"github.com/ad/go-telegram-levelquiz/internal/handlers"
	"github.com/ad/go-telegram-levelquiz/internal/services"
	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

// botClient is the slice of the Telegram API the components use.
type botClient interface {
	services.BotAPI
	AnswerCallbackQuery(ctx context.Context, params *bot.AnswerCallbackQueryParams) (bool, error)
}

type app struct {
	queue     *db.DBQueue
	scheduler *services.Scheduler
	handler   *handlers.BotHandler
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	quiz, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		log.Fatalf("Failed to load catalog: %v", err)
	}

	sqlDB, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer sqlDB.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	locker, err := newLocker(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to set up locking: %v", err)
	}

	httpClient := &http.Client{
		Timeout: 30 * time.Second,
	}

	b, err := bot.New(cfg.BotToken, bot.WithHTTPClient(15*time.Second, httpClient))
	if err != nil {
		log.Fatalf("Failed to create bot: %v", err)
	}

	var botInfo *tgmodels.User
	for i := 0; i < 3; i++ {
		log.Printf("Attempting to connect to Telegram API (attempt %d/3)...", i+1)
		getMeCtx, getMeCancel := context.WithTimeout(ctx, 10*time.Second)
		botInfo, err = b.GetMe(getMeCtx)
		getMeCancel()
		if err == nil {
			log.Printf("Successfully connected to Telegram API as @%s", botInfo.Username)
			break
		}
		log.Printf("Failed to get bot info (attempt %d/3): %v", i+1, err)
		if i < 2 {
			log.Printf("Retrying in 2 seconds...")
			time.Sleep(2 * time.Second)
		}
	}
	if err != nil {
		log.Fatalf("Failed to get bot info after 3 attempts: %v", err)
	}

	a, err := newApp(ctx, cfg, quiz, sqlDB, b, locker)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer a.queue.Close()

	b.RegisterHandlerMatchFunc(func(update *tgmodels.Update) bool {
		return true
	}, a.handler.HandleUpdate, handlers.LogMiddleware)

	log.Printf("Bot started. Admin ID: %d, DB: %s, levels: %v", cfg.AdminID, cfg.DBPath, quiz.LevelIDs())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		b.Start(gctx)
		return nil
	})
	g.Go(func() error {
		return a.scheduler.Run(gctx)
	})
	if err := g.Wait(); err != nil {
		log.Printf("Shutdown: %v", err)
	}
	log.Printf("Bot stopped")
}

func newApp(ctx context.Context, cfg *config.Config, quiz *catalog.Catalog, sqlDB *sql.DB, b botClient, locker services.Locker) (*app, error) {
	queue := db.NewDBQueue(sqlDB)

	userRepo := db.NewUserRepository(queue)
	progressRepo := db.NewProgressRepository(queue)
	pollRepo := db.NewPollRepository(queue)
	settingsRepo := db.NewSettingsRepository(queue)

	texts := services.NewTextStore(settingsRepo)
	if err := texts.Load(ctx); err != nil {
		queue.Close()
		return nil, fmt.Errorf("load texts: %w", err)
	}

	errorManager := services.NewErrorManager(b, cfg.AdminID)
	scheduler := services.NewScheduler()
	transport := services.NewTelegramTransport(b, quiz, texts, pollRepo, errorManager, cfg.UpdatesChannelURL)
	controller := services.NewSessionController(progressRepo, quiz, locker, transport, scheduler, errorManager, services.ControllerConfig{
		QuestionDelay:      cfg.QuestionDelay,
		StoreTimeout:       cfg.StoreTimeout,
		SendTimeout:        cfg.SendTimeout,
		MaxConflictRetries: cfg.MaxConflictRetries,
	})

	statsService := services.NewStatisticsService(progressRepo)
	userManager := services.NewUserManager(progressRepo, locker)
	adminHandler := handlers.NewAdminHandler(b, cfg.AdminID, statsService, userManager, texts)
	handler := handlers.NewBotHandler(b, cfg.AdminID, controller, userRepo, pollRepo, texts, errorManager, adminHandler)

	return &app{queue: queue, scheduler: scheduler, handler: handler}, nil
}

// newLocker returns a Redis-backed lock when REDIS_ADDR is set, so several bot replicas
// can share one database. A single replica locks in memory.
func newLocker(ctx context.Context, cfg *config.Config) (services.Locker, error) {
	if cfg.RedisAddr == "" {
		return services.NewKeyedLocker(), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis %s: %w", cfg.RedisAddr, err)
	}
	log.Printf("Using Redis locks at %s", cfg.RedisAddr)
	return services.NewRedisLocker(client, cfg.LockTTL), nil
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ttsreader/credits-api/internal/config"
	"github.com/ttsreader/credits-api/internal/domain/credit"
	"github.com/ttsreader/credits-api/internal/domain/user"
	"github.com/ttsreader/credits-api/internal/pkg/database"
	"github.com/ttsreader/credits-api/internal/pkg/email"
)

// Warning windows around the 30-day and 7-day marks. The windows are two
// days wide so a daily sweep cannot skip a lot; a lot may match on two
// consecutive runs and get the warning twice.
const (
	thirtyDayWindowStart = 29 * 24 * time.Hour
	thirtyDayWindowEnd   = 31 * 24 * time.Hour
	sevenDayWindowStart  = 6 * 24 * time.Hour
	sevenDayWindowEnd    = 8 * 24 * time.Hour
)

// wakeChannel lets operators trigger an immediate sweep via
// `redis-cli publish credits:expire run`.
const wakeChannel = "credits:expire"

func main() {
	cfg := config.Load()
	setupLogger(cfg)

	log.Info().Dur("interval", cfg.ExpirySweepInterval).Msg("Starting credit-worker")

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	rdb, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(rdb)

	creditService := credit.NewService(credit.NewRepository(db), rdb, cfg.StatsCacheTTL)
	userRepo := user.NewRepository(db)
	emailService := email.NewService(email.ResendConfig{
		APIKey:    cfg.ResendAPIKey,
		FromEmail: cfg.FromEmail,
		FromName:  cfg.FromName,
	})
	defer emailService.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Optional: Redis pub/sub wake-up (the ticker still runs)
	wake := make(chan struct{}, 1)
	if rdb != nil {
		go subscribeWakeups(ctx, rdb, wake)
	}

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-sigChan
		log.Info().Msg("Shutdown signal received")
		cancel()
	}()

	ticker := time.NewTicker(cfg.ExpirySweepInterval)
	defer ticker.Stop()

	// First sweep right away; cron-style waiting a full day after deploy
	// would delay already-due expirations.
	runSweep(ctx, creditService, userRepo, emailService, cfg.FrontendURL)

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("credit-worker stopped")
			return
		case <-wake:
		case <-ticker.C:
		}

		runSweep(ctx, creditService, userRepo, emailService, cfg.FrontendURL)
	}
}

// runSweep expires due lots, then sends expiration notices and 30/7-day
// pre-expiry warnings. Notification failures never roll back the ledger;
// an email is best-effort.
func runSweep(ctx context.Context, credits *credit.Service, users user.Repository, emails *email.Service, frontendURL string) {
	now := time.Now().UTC()
	start := now

	expired, err := credits.ExpireDue(ctx, now)
	if err != nil {
		log.Error().Err(err).Msg("Expiry sweep failed")
		return
	}

	for _, e := range expired {
		account, err := users.GetByID(ctx, e.UserID)
		if err != nil {
			log.Error().Err(err).Str("user_id", e.UserID.String()).Msg("Cannot notify user about expired credits")
			continue
		}
		emails.Queue(account.Email, account.Username, email.TemplateCreditsExpired,
			"Your TTS credits have expired",
			map[string]interface{}{
				"Username":       account.Username,
				"CreditsExpired": e.CreditsExpired,
				"PricingURL":     frontendURL + "/pricing",
			})
	}

	thirtyDay := sendWarnings(ctx, credits, users, emails, now, thirtyDayWindowStart, thirtyDayWindowEnd, frontendURL)
	sevenDay := sendWarnings(ctx, credits, users, emails, now, sevenDayWindowStart, sevenDayWindowEnd, frontendURL)

	log.Info().
		Int("expired", len(expired)).
		Int("warnings_30d", thirtyDay).
		Int("warnings_7d", sevenDay).
		Dur("took", time.Since(start)).
		Msg("Sweep completed")
}

func sendWarnings(ctx context.Context, credits *credit.Service, users user.Repository, emails *email.Service, now time.Time, windowStart, windowEnd time.Duration, frontendURL string) int {
	lots, err := credits.ExpiringBetween(ctx, now.Add(windowStart), now.Add(windowEnd))
	if err != nil {
		log.Error().Err(err).Msg("Warning scan failed")
		return 0
	}

	sent := 0
	for i := range lots {
		lot := &lots[i]
		account, err := users.GetByID(ctx, lot.UserID)
		if err != nil {
			log.Error().Err(err).Str("user_id", lot.UserID.String()).Msg("Cannot warn user about expiring credits")
			continue
		}

		days := lot.DaysUntilExpiration(now)
		emails.Queue(account.Email, account.Username, email.TemplateExpiryWarning,
			fmt.Sprintf("Your credits expire in %d days", days),
			map[string]interface{}{
				"Username":      account.Username,
				"Credits":       lot.CreditsRemaining,
				"DaysRemaining": days,
				"ExpiresAt":     lot.ExpiresAt.Format("January 2, 2006"),
				"LoginURL":      frontendURL + "/login",
			})
		sent++
	}

	return sent
}

func subscribeWakeups(ctx context.Context, rdb *redis.Client, wake chan<- struct{}) {
	sub := rdb.Subscribe(ctx, wakeChannel)
	defer func() { _ = sub.Close() }()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.Channel():
			// non-blocking wake-up
			select {
			case wake <- struct{}{}:
			default:
			}
		}
	}
}

func setupLogger(cfg *config.Config) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.IsDevelopment() {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05",
		})
	}
}

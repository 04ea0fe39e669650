package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	discordrouter "github.com/jose-valero/verification-bot/internal/adapters/discord"
	"github.com/jose-valero/verification-bot/internal/adapters/httpapi"
	"github.com/jose-valero/verification-bot/internal/app/service"
	"github.com/jose-valero/verification-bot/internal/infra/config"
	"github.com/jose-valero/verification-bot/internal/infra/logging"
	"github.com/jose-valero/verification-bot/internal/infra/storage"
)

// applicationStore is what both repositories offer: the registry port plus retention.
type applicationStore interface {
	service.ApplicationRepo
	PurgeResolved(ctx context.Context, cutoff time.Time) (int64, error)
}

func main() {
	_ = godotenv.Load()

	cfg := config.Load()

	logger, closeLogs, err := logging.New(logging.Options{Dir: cfg.LogDir, Level: cfg.LogLevel})
	if err != nil {
		logrus.Fatalf("logging: %v", err)
	}
	defer func() { _ = closeLogs() }()
	log := logging.Component(logger, "main")

	// Guild settings
	doc := storage.OpenDocument(cfg.DataFile, logging.Component(logger, "document"))

	// Applications: Postgres when configured, otherwise memory
	var apps applicationStore
	if cfg.DatabaseURL != "" {
		db, err := storage.Open(context.Background(), cfg.DatabaseURL, storage.Pool{})
		if err != nil {
			log.WithError(err).Fatal("db open")
		}
		defer db.Close()
		if err := storage.Migrate(db, logging.Component(logger, "storage")); err != nil {
			log.WithError(err).Fatal("migrate")
		}
		log.Info("✅ DB ready")
		apps = storage.NewApplicationRepo(db)
	} else {
		log.Warn("DATABASE_URL not set: pending applications will not survive a restart")
		apps = storage.NewMemoryApplicationRepo()
	}

	// Discord session; handlers go in before Open so Ready is seen
	s, err := discordgo.New(cfg.BotAuth())
	if err != nil {
		log.WithError(err).Fatal("discord session")
	}
	s.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMembers

	// Services
	platform := discordrouter.NewPlatform(s)
	configs := service.NewConfigStore(doc, logging.Component(logger, "config"))
	notifier := service.NewNotifier(platform, logging.Component(logger, "notifier"))
	flow := service.NewWorkflow(
		configs,
		service.NewRegistry(apps),
		platform,
		notifier,
		logging.Component(logger, "workflow"),
	)

	// Router
	r := discordrouter.NewRouter(
		s,
		cfg.DiscordGuild,
		flow,
		discordrouter.Presence{Type: cfg.ActivityType, Name: cfg.ActivityName},
		logging.Component(logger, "discord"),
	)
	r.Handlers()

	if err := s.Open(); err != nil {
		log.WithError(err).Fatal("discord open")
	}
	defer s.Close()
	log.Infof("✅ Connected as %s (%s)", s.State.User.Username, s.State.User.ID)

	if err := r.Register(); err != nil {
		log.WithError(err).Fatal("registering commands")
	}

	// Ops HTTP
	web := httpapi.New(cfg.HTTPAddr, doc, logging.Component(logger, "http"))
	web.Start()

	// Retention for resolved applications
	retention := time.Duration(cfg.RetentionDays) * 24 * time.Hour
	pruneCtx, stopPrune := context.WithCancel(context.Background())
	defer stopPrune()
	go func() {
		t := time.NewTicker(time.Hour)
		defer t.Stop()
		for {
			select {
			case <-pruneCtx.Done():
				return
			case <-t.C:
			}
			ctx, cancel := context.WithTimeout(pruneCtx, 30*time.Second)
			n, err := apps.PurgeResolved(ctx, time.Now().Add(-retention))
			cancel()
			if err != nil {
				log.WithError(err).Warn("purge resolved applications")
				continue
			}
			if n > 0 {
				log.WithField("purged", n).Info("resolved applications purged")
			}
		}
	}()

	// Wait for a signal
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := web.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
	notifier.Wait()
}

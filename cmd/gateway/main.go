package main

import (
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/stationpay/mpesa-gateway/app/controllers"
	"github.com/stationpay/mpesa-gateway/app/repository"
	"github.com/stationpay/mpesa-gateway/internal/pkg/cache"
	"github.com/stationpay/mpesa-gateway/internal/pkg/database"
	"github.com/stationpay/mpesa-gateway/internal/pkg/env"
	"github.com/stationpay/mpesa-gateway/internal/pkg/mpesa"
	"github.com/stationpay/mpesa-gateway/internal/pkg/notify"
	"github.com/stationpay/mpesa-gateway/internal/pkg/payments"
	"github.com/stationpay/mpesa-gateway/internal/pkg/poller"
	"github.com/stationpay/mpesa-gateway/internal/pkg/router"
)

func main() {
	app, stalePoller := NewApplication()
	stalePoller.Start()
	defer stalePoller.Stop()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() (*fiber.App, *poller.Poller) {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	repos := repository.NewFactory(database.GetDB()).GetRepositories()

	client := mpesa.NewClientFromEnv()
	resolver := mpesa.NewCredentialResolver(repos.Station)
	tokens := mpesa.NewTokenCache(mpesa.NewRedisTokenStore(cache.GetClient()), client)
	notifier := notify.NewPaymentNotifier(notify.NewFCMClientFromEnv(), repos.NotificationLog)

	svc := payments.NewService(repos, client, tokens, resolver,
		payments.WithNotifier(notifier),
		payments.WithConfig(payments.Config{
			StaleAfter: envDuration("POLLER_GRACE_SECONDS", 120) * time.Second,
			FailAfter:  envDuration("POLLER_TIMEOUT_MINUTES", 30) * time.Minute,
			BatchSize:  envInt("POLLER_BATCH_SIZE", 10),
			Pacing:     envDuration("POLLER_PACING_MS", 1000) * time.Millisecond,
		}),
	)

	stalePoller := poller.New(svc, envDuration("POLLER_INTERVAL_SECONDS", 60)*time.Second)

	app := fiber.New(fiber.Config{
		AppName: "mpesa-gateway",
	})
	app.Use(recover.New(), logger.New())

	// fiber metrics
	app.Get("/metrics", basicauth.New(basicauth.Config{
		Users: map[string]string{
			env.GetEnv("METRICS_USER", "admin"): env.GetEnv("METRICS_PASSWORD", "admin"),
		},
	}), monitor.New())

	router.InstallRouter(app, controllers.NewPaymentController(svc))

	return app, stalePoller
}

// envDuration reads a numeric env value as a unitless duration count.
func envDuration(key string, def int64) time.Duration {
	return time.Duration(envInt64(key, def))
}

// envInt reads a plain numeric env value, falling back on absent or
// non-positive input.
func envInt(key string, def int64) int {
	return int(envInt64(key, def))
}

func envInt64(key string, def int64) int64 {
	raw := env.GetEnv(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		return def
	}
	return v
}

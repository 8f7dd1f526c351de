package main

import (
	"crypto/tls"
	"fmt"
	"os"
	"strings"

	"github.com/MicahParks/keyfunc"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"planner-api/api"
	"planner-api/calendar"
	"planner-api/config"
	"planner-api/reconcile"
	"planner-api/remote"
	"planner-api/store"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}
	logger := log.New()
	if cfg.Debug {
		logger.SetLevel(log.DebugLevel)
	}

	entityClient := remote.New(cfg.RemoteAPIURL)

	var redisClient *redis.Client
	var dedupe api.Deduper
	if cfg.RedisConnectionString != "" {
		redisClient = redis.NewClient(parseRedisOptions(cfg.RedisConnectionString))
		dedupe = api.NewRedisDeduper(redisClient, cfg.DeduperTTL)
	}
	entities := remote.NewCache(entityClient, redisClient, cfg.CacheTTL)

	var cal *calendar.Client
	if cfg.CalendarAPIURL != "" {
		cal = calendar.New(cfg.CalendarAPIURL, cfg.CalendarAPIToken)
	} else {
		log.Warn("no calendar API configured, sync disabled")
	}

	var outbox *reconcile.Outbox
	if cfg.OutboxEnabled && cal != nil {
		outboxCfg := reconcile.DefaultOutboxConfig()
		outboxCfg.Workers = cfg.OutboxWorkers
		outboxCfg.Buffer = cfg.OutboxBuffer
		outboxCfg.MaxAttempts = cfg.OutboxMaxAttempts
		outboxCfg.CallTimeout = cfg.OutboxCallTimeout

		var dead reconcile.DeadLetter
		if cfg.DeadLetterConnectionString != "" {
			dead, err = reconcile.NewQueueDeadLetter(cfg.DeadLetterConnectionString, cfg.DeadLetterQueue)
			if err != nil {
				log.Fatalf("dead letter queue: %v", err)
			}
		}
		outbox = reconcile.NewOutbox(cal, outboxCfg, dead, logger)
		defer outbox.Shutdown()
	}

	var syncer store.Syncer
	if cal != nil {
		syncer = reconcile.New(cal, reconcile.Config{
			TitlePrefix:      cfg.EventTitlePrefix,
			DiscoveryCleanup: cfg.DiscoveryCleanup,
		}, outbox, logger)
	}

	tasks := store.NewTasks(entities, syncer, logger)
	subTasks := store.NewSubTasks(entities, tasks, logger)
	projects := store.NewProjects(entities, logger)
	notes := store.NewNotes(entities, logger)

	auth := buildAuth()

	e := echo.New()
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	e.Use(api.GzipRequestMiddleware())

	api.Register(e, api.Stores{
		Tasks:     tasks,
		SubTasks:  subTasks,
		Projects:  projects,
		Notes:     notes,
		Analytics: entities,
	}, auth, dedupe, logger)

	listenAddr := ":8080"
	if val, ok := os.LookupEnv("FUNCTIONS_CUSTOMHANDLER_PORT"); ok {
		listenAddr = ":" + val
	}

	e.Logger.Fatal(e.Start(listenAddr))
}

func buildAuth() *api.Auth {
	if strings.ToLower(os.Getenv("LOCAL_AUTH_MODE")) != "" {
		return api.NewAuth(nil, "", "")
	}
	jwtAudience := os.Getenv("AUTH0_AUDIENCE")
	domain := os.Getenv("AUTH0_DOMAIN")
	if jwtAudience == "" || domain == "" {
		log.Fatal("missing Auth0 config")
	}
	jwksURL := fmt.Sprintf("https://%s/.well-known/jwks.json", domain)
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{})
	if err != nil {
		log.Fatalf("jwks: %v", err)
	}
	return api.NewAuth(jwks, jwtAudience, "https://"+domain+"/")
}

// Accepts either a redis URL or the comma-separated host,key=value form used
// by managed cache connection strings.
func parseRedisOptions(connStr string) *redis.Options {
	opts, err := redis.ParseURL(connStr)
	if err == nil {
		return opts
	}
	parts := strings.Split(connStr, ",")
	opts = &redis.Options{Addr: parts[0]}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(kv[0]) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.ToLower(kv[1]) == "true" {
				opts.TLSConfig = &tls.Config{}
			}
		}
	}
	return opts
}

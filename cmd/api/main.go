package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shotaf-bot/shotaf/internal/api"
	"github.com/shotaf-bot/shotaf/internal/auth"
	"github.com/shotaf-bot/shotaf/internal/clock"
	"github.com/shotaf-bot/shotaf/internal/config"
	"github.com/shotaf-bot/shotaf/internal/database"
	"github.com/shotaf-bot/shotaf/internal/embedding"
	"github.com/shotaf-bot/shotaf/internal/intent"
	"github.com/shotaf-bot/shotaf/internal/middleware"
	inats "github.com/shotaf-bot/shotaf/internal/nats"
	"github.com/shotaf-bot/shotaf/internal/notes"
	"github.com/shotaf-bot/shotaf/internal/orchestrator"
	iredis "github.com/shotaf-bot/shotaf/internal/redis"
	"github.com/shotaf-bot/shotaf/internal/retrieval"
	"github.com/shotaf-bot/shotaf/internal/scheduler"
	"github.com/shotaf-bot/shotaf/internal/server"
	"github.com/shotaf-bot/shotaf/internal/tasks"
	"github.com/shotaf-bot/shotaf/internal/usermemory"
	"github.com/shotaf-bot/shotaf/internal/users"
	"github.com/shotaf-bot/shotaf/internal/whatsapp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.Log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loc, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		slog.Error("loading timezone", "error", err, "timezone", cfg.Scheduler.Timezone)
		os.Exit(1)
	}
	resolver := clock.NewResolver(loc)

	// PostgreSQL
	if err := database.RunMigrations(cfg.DB.DSN(), "migrations"); err != nil {
		slog.Error("running migrations", "error", err)
		os.Exit(1)
	}
	pool, err := database.NewPostgresPool(ctx, cfg.DB)
	if err != nil {
		slog.Error("connecting to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Redis
	redisClient, err := iredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		slog.Error("connecting to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	// NATS JetStream
	natsClient, err := inats.NewClient(ctx, cfg.NATS)
	if err != nil {
		slog.Error("connecting to NATS", "error", err)
		os.Exit(1)
	}
	defer natsClient.Close()

	publisher := inats.NewPublisher(natsClient.JetStream())
	consumers := inats.NewConsumerManager(natsClient.JetStream())

	webhookHandler := whatsapp.NewWebhookHandler(publisher)

	// Users + auth
	encryptor, err := auth.NewEncryptor(cfg.Encryption.Key)
	if err != nil {
		slog.Error("creating encryptor", "error", err)
		os.Exit(1)
	}
	userRepo := users.NewPostgresRepository(pool)
	userSvc := users.NewService(userRepo, encryptor)
	userHandler := users.NewHandler(userSvc)
	authorizer := users.NewAuthorizer(userRepo, users.DefaultAuthorizationTTL)

	// WhatsApp channel: users with a linked Green API instance are
	// messaged through it, everyone else through the bot instance.
	botSender := whatsapp.NewGreenAPISender(cfg.WhatsApp.BaseURL, cfg.WhatsApp.InstanceID, cfg.WhatsApp.Token)
	sender := whatsapp.NewPerUserSender(cfg.WhatsApp.BaseURL, botSender, userSvc)

	jwtManager := auth.NewJWTManager(
		cfg.JWT.AccessSecret,
		cfg.JWT.RefreshSecret,
		cfg.JWT.AccessExpiry,
		cfg.JWT.RefreshExpiry,
	)
	authSvc := auth.NewService(jwtManager, redisClient, sender, userSvc)
	authHandler := auth.NewHandler(authSvc)

	// Domain services
	taskRepo := tasks.NewPostgresRepository(pool)
	taskSvc := tasks.NewService(taskRepo, resolver)
	taskHandler := tasks.NewHandler(taskSvc)

	noteRepo := notes.NewPostgresRepository(pool)
	noteSvc := notes.NewService(noteRepo)
	noteHandler := notes.NewHandler(noteSvc)

	memoryRepo := usermemory.NewPostgresRepository(pool)
	memorySvc := usermemory.NewService(memoryRepo)
	memoryHandler := usermemory.NewHandler(memorySvc)
	shortTerm := usermemory.NewShortTermStore(redisClient)

	embedder := embedding.NewOpenAIClient(cfg.OpenAI.APIKey, cfg.OpenAI.EmbedModel)
	vectorRepo := retrieval.NewPostgresRepository(pool)
	contextSvc := retrieval.NewService(embedder, vectorRepo, &docSource{tasks: taskSvc, notes: noteSvc})

	classifier := intent.NewOpenAIClassifier(cfg.OpenAI.APIKey, cfg.OpenAI.ChatModel)

	// Reminder scheduler
	composer := scheduler.NewLLMComposer(cfg.OpenAI.APIKey, cfg.OpenAI.ChatModel)
	sched := scheduler.New(taskRepo, sender, composer, publisher, loc, cfg.Scheduler.SweepInterval)
	go sched.Run(ctx)

	// Inbound pipeline
	inboundConsumer, err := consumers.EnsureConsumer(ctx, inats.StreamMessages, "orchestrator", inats.SubjectInboundMessage)
	if err != nil {
		slog.Error("creating inbound consumer", "error", err)
		os.Exit(1)
	}
	orch := orchestrator.New(orchestrator.Config{
		Consumer:   inboundConsumer,
		Classifier: classifier,
		Resolver:   resolver,
		Users:      userSvc,
		Authorizer: authorizer,
		Tasks:      taskSvc,
		Notes:      noteSvc,
		Memory:     memorySvc,
		Context:    contextSvc,
		Conv:       shortTerm,
		Replier:    publisher,
	})
	go orch.Run(ctx)

	// Outbound delivery
	outboundConsumer, err := consumers.EnsureConsumer(ctx, inats.StreamMessages, "outbound-delivery", inats.SubjectOutboundMessage)
	if err != nil {
		slog.Error("creating outbound consumer", "error", err)
		os.Exit(1)
	}
	go whatsapp.NewOutboundWorker(outboundConsumer, sender).Run(ctx)

	// Router
	webhookLimiter := middleware.NewRateLimiter(redisClient, 120, time.Minute)
	router := api.NewRouter(pool, natsClient, api.RouterConfig{
		CORSAllowedOrigins: cfg.CORS.AllowedOrigins,
		WebhookRateLimiter: webhookLimiter.Middleware,
	}, api.HandlerSet{
		Webhook: webhookHandler.Handle,

		RequestCode: authHandler.RequestCode,
		Verify:      authHandler.Verify,
		Refresh:     authHandler.Refresh,
		Logout:      authHandler.Logout,

		ListTasks:  taskHandler.List,
		GetTask:    taskHandler.Get,
		DeleteTask: taskHandler.Delete,

		ListNotes:  noteHandler.List,
		GetNote:    noteHandler.Get,
		DeleteNote: noteHandler.Delete,

		GetMemory: memoryHandler.Get,

		UpdateChannel: userHandler.UpdateChannel,

		AuthMiddleware: auth.Middleware(authSvc),
	})

	// Start server
	srv := server.New(cfg.Server, router)
	if err := srv.Start(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

// docSource feeds the retrieval service from tasks and notes.
type docSource struct {
	tasks *tasks.Service
	notes *notes.Service
}

func (d *docSource) ListDocuments(ctx context.Context, userID string) ([]retrieval.Document, error) {
	var docs []retrieval.Document

	taskList, err := d.tasks.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, t := range taskList {
		docs = append(docs, retrieval.Document{ID: t.ID, Kind: "task", Title: t.Name})
	}

	noteList, err := d.notes.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, n := range noteList {
		docs = append(docs, retrieval.Document{ID: n.ID, Kind: "note", Title: n.Title, Body: n.Body})
	}
	return docs, nil
}

func setupLogger(cfg config.LogConfig) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "info":
		opts.Level = slog.LevelInfo
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}

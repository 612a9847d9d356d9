package main

import (
	"context"
	"log"
	"os"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"

	"github.com/example/room-relay/config"
	"github.com/example/room-relay/modules/activity"
	"github.com/example/room-relay/modules/api"
	"github.com/example/room-relay/modules/broadcast"
	"github.com/example/room-relay/modules/chat"
	"github.com/example/room-relay/modules/wsserver"
)

func main() {
	log.Println("=== Room Relay - Fiber WebSocket + EventBus ===")

	cfg := config.Load()

	// Create mono application
	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(cfg.ShutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
		mono.WithLogFormat(mono.LogFormatText),
	)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}
	logger := app.Logger()

	// Create modules
	broadcastModule := broadcast.NewModule(cfg.OutboxSize, logger)

	chatModule, err := chat.NewModule(chat.Config{
		MaxHistory:    cfg.HistoryLimit,
		JoinHistory:   cfg.JoinHistoryLimit,
		RatePerSecond: cfg.RatePerSecond,
		RateBurst:     cfg.RateBurst,
	}, broadcastModule.GetHub(), logger)
	if err != nil {
		log.Fatalf("Failed to create chat module: %v", err)
	}

	activityModule := activity.NewModule(logger)

	wsCfg := wsserver.DefaultConfig()
	wsCfg.MaxFrameSize = cfg.MaxFrameSize
	apiModule := api.NewModule(api.Config{
		Port:               cfg.Port,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		WebSocket:          wsCfg,
	}, logger)

	// The hub and relay are shared in-process objects, not services,
	// so they are injected directly.
	apiModule.SetHub(broadcastModule.GetHub())
	apiModule.SetRelay(chatModule.Relay())

	// Register modules with the framework.
	// Order: independent modules first, then modules with dependencies
	// - broadcast: client outboxes (written by the relay, drained by sessions)
	// - chat: relay worker (ServiceProviderModule + EventEmitterModule)
	// - activity: event consumer keeping room counters
	// - api: Fiber HTTP/WebSocket server, depends on chat and activity
	app.Register(broadcastModule)
	app.Register(chatModule)
	app.Register(activityModule)
	app.Register(apiModule)

	// Start application
	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	printStartupInfo(cfg)

	// Graceful shutdown
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				return app.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}

func printStartupInfo(cfg config.Config) {
	log.Println("")
	log.Println("Application started successfully!")
	log.Println("")
	log.Println("Relay:")
	log.Printf("  - History per room: %d (sent on join: %d)", cfg.HistoryLimit, cfg.JoinHistoryLimit)
	log.Printf("  - Outbox size: %d frames", cfg.OutboxSize)
	if cfg.RateBurst > 0 {
		log.Printf("  - Post rate limit: %.1f/s (burst %d)", cfg.RatePerSecond, cfg.RateBurst)
	} else {
		log.Println("  - Post rate limit: disabled")
	}
	log.Println("")
	log.Println("Domain events (EventBus -> activity module):")
	log.Println("  - RoomCreated, UserJoined, UserLeft, MessagePosted")
	log.Println("")
	log.Printf("REST API Endpoints (http://localhost:%s):", cfg.Port)
	log.Println("  GET    /health                     - Health check")
	log.Println("  GET    /api/v1/rooms               - List all rooms")
	log.Println("  GET    /api/v1/rooms/:id           - Get room details")
	log.Println("  GET    /api/v1/rooms/:id/history   - Get message history")
	log.Println("  GET    /api/v1/rooms/:id/users     - Get room presence")
	log.Println("  GET    /api/v1/activity            - Activity counters")
	log.Println("  GET    /api/v1/rooms/:id/activity  - Counters for one room")
	log.Println("")
	log.Printf("WebSocket Endpoint (ws://localhost:%s/ws):", cfg.Port)
	log.Println("  Client events: set-identity, join-room, post-message, typing-start, typing-stop")
	log.Println("  Server events: connected, user-joined, user-left, new-message,")
	log.Println("                 room-users-updated, user-typing, ack, error")
	log.Println("")
	log.Println("Press Ctrl+C to shutdown gracefully")
}

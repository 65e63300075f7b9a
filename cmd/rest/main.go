package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"ai-chatbot-be/internal/bootstrap"
	"ai-chatbot-be/internal/config"
	"ai-chatbot-be/internal/server"
	"ai-chatbot-be/internal/tracer"
	"ai-chatbot-be/pkg/database"
	"ai-chatbot-be/pkg/events"

	"gorm.io/gorm"
)

func main() {
	// 0. Initialize Tracer (no-op unless OTEL_ENABLED=true)
	shutdownTracer := tracer.InitTracer()
	defer shutdownTracer(context.Background())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Load Configuration
	cfg := config.Load()

	// 2. Initialize Database (only the postgres vector store needs it)
	var gormDB *gorm.DB
	if cfg.Store.Backend == "postgres" {
		var err error
		gormDB, err = database.NewGormDBFromDSN(cfg.Database.Connection, cfg.Database.Debug)
		if err != nil {
			log.Panicf("Unable to connect to GORM DB: %v", err)
		}
	}

	// 3. Bootstrap Dependencies (Container)
	container, err := bootstrap.NewContainer(gormDB, cfg)
	if err != nil {
		log.Fatalf("Failed to bootstrap: %v", err)
	}
	defer container.Close()

	// 4. Start Background Services
	if err := container.ConsumerService.Consume(ctx); err != nil {
		log.Printf("Background Consumer Error: %v", err)
	}
	if container.NatsSubscriber != nil {
		err := container.NatsSubscriber.Subscribe(ctx, events.TypeDocumentIngested, "chatbot-ingest-audit",
			func(ctx context.Context, event events.Event) error {
				container.Logger.Info("EVENTS", "Document ingested (cluster)", event.Payload())
				return nil
			})
		if err != nil {
			log.Printf("NATS Subscribe Error: %v", err)
		}
	}
	go container.WebSocketHub.Run(ctx)
	container.SessionRegistry.StartJanitor(ctx, cfg.Rag.JanitorInterval, cfg.Rag.SessionIdleTTL)

	// 5. Initialize Server
	srv := server.New(cfg, container)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}()

	// 6. Run Server
	if err := srv.Run(); err != nil {
		log.Printf("Server stopped: %v", err)
	}
}

package bootstrap

import (
	"context"
	"fmt"
	"log"

	"ai-chatbot-be/internal/config"
	"ai-chatbot-be/internal/controller"
	"ai-chatbot-be/internal/pkg/logger"
	"ai-chatbot-be/internal/repository/memory"
	"ai-chatbot-be/internal/service"
	"ai-chatbot-be/internal/websocket"
	"ai-chatbot-be/pkg/embedding"
	"ai-chatbot-be/pkg/embedding/hash"
	"ai-chatbot-be/pkg/embedding/jina"
	embedopenai "ai-chatbot-be/pkg/embedding/openai"
	"ai-chatbot-be/pkg/events"
	"ai-chatbot-be/pkg/llm"
	"ai-chatbot-be/pkg/llm/factory"
	pktNats "ai-chatbot-be/pkg/nats"
	"ai-chatbot-be/pkg/rag/history"
	"ai-chatbot-be/pkg/rag/ingest"
	ragmemory "ai-chatbot-be/pkg/rag/memory"
	"ai-chatbot-be/pkg/rag/response"
	"ai-chatbot-be/pkg/rag/search"
	"ai-chatbot-be/pkg/rag/session"
	"ai-chatbot-be/pkg/retry"
	"ai-chatbot-be/pkg/vectorstore"
	"ai-chatbot-be/pkg/vectorstore/chromem"
	vsmemory "ai-chatbot-be/pkg/vectorstore/memory"
	"ai-chatbot-be/pkg/vectorstore/postgres"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// maxUploadBytes caps a single uploaded document
const maxUploadBytes = 20 * 1024 * 1024

type Container struct {
	// Controllers
	ChatbotController controller.IChatbotController
	WebSocketHandler  *websocket.Handler

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService
	SessionRegistry *session.Registry
	WebSocketHub    *websocket.Hub
	NatsSubscriber  *pktNats.Subscriber

	Logger logger.ILogger

	closers []func()
}

// NewContainer wires every component. db is only required when the postgres
// vector store is selected.
func NewContainer(db *gorm.DB, cfg *config.Config) (*Container, error) {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	c := &Container{Logger: sysLogger}

	policy := retry.DefaultPolicy()
	policy.MaxAttempts = uint(cfg.Rag.RetryMaxAttempts)

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)
	c.closers = append(c.closers, func() { pubSub.Close() })
	publishers := events.FanOut{events.NewBusPublisher(pubSub, cfg.App.EventsTopic)}

	// NATS
	if cfg.App.NatsURL != "" {
		natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL, sysLogger)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
		} else {
			publishers = append(publishers, natsPub)
			c.closers = append(c.closers, natsPub.Close)
		}
		natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL, sysLogger)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS Subscriber: %v", err)
		} else {
			c.NatsSubscriber = natsSub
			c.closers = append(c.closers, natsSub.Close)
		}
	}

	// Redis
	var rdb *redis.Client
	var archive history.Archive = history.NopArchive{}
	if cfg.App.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.App.RedisURL)
		if err != nil {
			log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
			opt = &redis.Options{
				Addr: cfg.App.RedisURL,
			}
		}
		rdb = redis.NewClient(opt)
		if _, err := rdb.Ping(context.Background()).Result(); err != nil {
			log.Printf("[WARN] Failed to connect to Redis: %v", err)
		}
		archive = history.NewRedisArchive(rdb, cfg.Rag.HistoryMaxTurns, cfg.Rag.HistoryTTL)
		c.closers = append(c.closers, func() { rdb.Close() })
	}

	// 3. AI Providers
	embeddingProvider, err := newEmbeddingProvider(cfg, policy, sysLogger)
	if err != nil {
		return nil, err
	}
	log.Printf("[INFO] Using Embedding Provider: %s (%s)", cfg.Ai.EmbeddingProvider, cfg.Ai.EmbeddingModel)

	baseLLM, err := factory.NewLLMProvider(
		cfg.Ai.LLMProvider,
		cfg.Ai.LLMModel,
		cfg.Ai.LLMBaseURL,
		cfg.Ai.LLMAPIKey,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM provider: %w", err)
	}
	llmProvider := llm.NewRetryingProvider(baseLLM, policy, sysLogger)
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	vectorStore, err := newVectorStore(db, cfg)
	if err != nil {
		return nil, err
	}
	c.closers = append(c.closers, func() { vectorStore.Close() })
	log.Printf("[INFO] Using Vector Store: %s", cfg.Store.Backend)

	// 4. Domain Components
	registry := session.NewRegistry(memory.NewSessionRepository(), cfg.Rag.DefaultSessionID, sysLogger)
	catalog := memory.NewDocumentRepository()

	memoryManager := ragmemory.NewManager(llmProvider, ragmemory.Config{
		ShortTermSize:    cfg.Rag.ShortTermSize,
		MinFold:          cfg.Rag.MinFold,
		SummaryMaxTokens: cfg.Rag.SummaryMaxTokens,
		SummaryTimeout:   cfg.Rag.CompletionTimeout,
	}, sysLogger)

	orchestrator := search.NewOrchestrator(embeddingProvider, vectorStore, sysLogger)

	generator := response.NewGenerator(registry, memoryManager, orchestrator, llmProvider, archive, response.Config{
		TopK:        cfg.Rag.RetrievalTopK,
		MinScore:    cfg.Rag.RetrievalMinScore,
		MaxTokens:   cfg.Rag.CompletionMaxTokens,
		Temperature: cfg.Rag.CompletionTemperature,
		Timeout:     cfg.Rag.CompletionTimeout,
	}, sysLogger)

	pipeline := ingest.NewPipeline(registry, embeddingProvider, vectorStore, catalog, publishers, ingest.Config{
		ChunkSize:      cfg.Rag.ChunkSize,
		ChunkOverlap:   cfg.Rag.ChunkOverlap,
		EmbedBatchSize: cfg.Rag.EmbedBatchSize,
		Concurrency:    cfg.Rag.EmbedConcurrency,
		Dimensions:     cfg.Rag.EmbedDimensions,
		Timeout:        cfg.Rag.IngestTimeout,
	}, sysLogger)

	// 5. Services
	consumerService := service.NewConsumerService(pubSub, cfg.App.EventsTopic, sysLogger)
	chatbotService := service.NewChatbotService(
		registry,
		generator,
		pipeline,
		archive,
		catalog,
		publishers,
		consumerService,
		sysLogger,
	)

	// WebSocket Hub
	wsLogger := logger.NewIsolatedLogger("logs/websocket.log")
	wsHub := websocket.NewHub(rdb, wsLogger)

	// 6. Controllers
	c.ChatbotController = controller.NewChatbotController(chatbotService, maxUploadBytes)
	c.WebSocketHandler = websocket.NewHandler(wsHub, chatbotService, cfg.Rag.DefaultSessionID)
	c.ConsumerService = consumerService
	c.SessionRegistry = registry
	c.WebSocketHub = wsHub

	return c, nil
}

// Close releases connections in reverse order of creation.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.Logger.Sync()
}

func newEmbeddingProvider(cfg *config.Config, policy retry.Policy, log logger.ILogger) (embedding.EmbeddingProvider, error) {
	dims := cfg.Rag.EmbedDimensions

	var base embedding.EmbeddingProvider
	switch cfg.Ai.EmbeddingProvider {
	case "ollama":
		base = embedding.NewOllamaProvider(cfg.Ai.EmbeddingBaseURL, cfg.Ai.EmbeddingModel, dims)
	case "openai":
		base = embedopenai.NewOpenAIProvider(cfg.Ai.EmbeddingAPIKey, cfg.Ai.EmbeddingBaseURL, cfg.Ai.EmbeddingModel, dims)
	case "gemini":
		base = embedding.NewGeminiProvider(cfg.Ai.EmbeddingAPIKey, dims)
	case "jina":
		base = jina.NewJinaProvider(cfg.Ai.EmbeddingAPIKey, cfg.Ai.EmbeddingBaseURL, dims)
	case "hash":
		base = hash.NewProvider(dims)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Ai.EmbeddingProvider)
	}

	retrying := embedding.NewRetryingProvider(base, policy, log)
	if cfg.Ai.EmbedCacheSize <= 0 {
		return retrying, nil
	}
	cached, err := embedding.NewCachedProvider(retrying, cfg.Ai.EmbedCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding cache: %w", err)
	}
	return cached, nil
}

func newVectorStore(db *gorm.DB, cfg *config.Config) (vectorstore.Store, error) {
	switch cfg.Store.Backend {
	case "memory":
		return vsmemory.NewStorage(cfg.Rag.EmbedDimensions), nil
	case "chromem":
		return chromem.New(cfg.Store.ChromemPath, cfg.Store.ChromemCollection)
	case "postgres":
		if db == nil {
			return nil, fmt.Errorf("postgres vector store needs DB_CONNECTION_STRING")
		}
		pg := postgres.New(db)
		if err := pg.Migrate(context.Background()); err != nil {
			return nil, fmt.Errorf("failed to migrate vector store: %w", err)
		}
		return pg, nil
	default:
		return nil, fmt.Errorf("unsupported vector store: %s", cfg.Store.Backend)
	}
}

package bootstrap

import (
	"context"
	"log"

	"metabolite-assistant-be/internal/config"
	"metabolite-assistant-be/internal/constant"
	"metabolite-assistant-be/internal/controller"
	"metabolite-assistant-be/internal/handler"
	"metabolite-assistant-be/internal/model"
	"metabolite-assistant-be/internal/pkg/logger"
	"metabolite-assistant-be/internal/repository/contract"
	"metabolite-assistant-be/internal/repository/implementation"
	"metabolite-assistant-be/internal/repository/memory"
	"metabolite-assistant-be/internal/service"
	"metabolite-assistant-be/internal/websocket"
	"metabolite-assistant-be/pkg/assistant"
	"metabolite-assistant-be/pkg/chat"
	"metabolite-assistant-be/pkg/database"
	"metabolite-assistant-be/pkg/events"
	pktNats "metabolite-assistant-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	AssistantController   controller.IAssistantController
	DiagnosticsController controller.IDiagnosticsController

	// Background services, started by Start
	ConsumerService      service.IConsumerService
	SessionEventService  service.ISessionEventService
	ExchangeEventService service.IExchangeEventService
	AssistantService     service.IAssistantService
	WebSocketHub         *websocket.Hub

	Logger logger.ILogger

	natsPub *pktNats.Publisher
	natsSub *pktNats.Subscriber
	rdb     *redis.Client
	pubSub  *gochannel.GoChannel
	cancel  context.CancelFunc
	ctx     context.Context
	workers *errgroup.Group
}

func NewContainer(cfg *config.Config) *Container {
	ctx, cancel := context.WithCancel(context.Background())

	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())
	wsLogger := logger.NewIsolatedLogger(cfg.App.WebSocketLogPath)

	// 2. Persistence
	var exchangeRepo contract.ExchangeRepository
	if db := openDatabase(cfg); db != nil {
		exchangeRepo = implementation.NewExchangeRepository(db)
		log.Printf("[INFO] Exchange archive: POSTGRES")
	} else {
		exchangeRepo = memory.NewExchangeRepository(cfg.Assistant.SessionTTL)
		log.Printf("[INFO] Exchange archive: IN-MEMORY")
	}
	sessionRepo := memory.NewSessionRepository(cfg.Assistant.SessionTTL)

	// 3. Infrastructure
	var natsPub *pktNats.Publisher
	var natsSub *pktNats.Subscriber
	var publisher events.Publisher = events.NopPublisher{}
	if cfg.App.NatsURL != "" {
		var err error
		natsPub, err = pktNats.NewPublisher(cfg.App.NatsURL)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
		} else {
			publisher = natsPub
		}
		natsSub, err = pktNats.NewSubscriber(cfg.App.NatsURL)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS Subscriber: %v", err)
		}
	}

	rdb := openRedis(cfg.App.RedisURL)

	// In-process event bus: orchestrator -> websocket hub
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 256, BlockPublishUntilSubscriberAck: true},
		watermill.NewStdLogger(false, false),
	)

	wsHub := websocket.NewHub(rdb, wsLogger)
	sessionRepo.OnEvicted(func(id uuid.UUID) {
		wsHub.Send(id, constant.FrameSessionEnded, map[string]string{"session_id": id.String()})
		wsHub.CloseSession(id)
	})

	// 4. Assistant client
	client, err := assistant.NewClient(assistant.Options{
		Provider:   cfg.Assistant.Provider,
		Endpoint:   cfg.Assistant.Endpoint,
		Timeout:    cfg.Assistant.RequestTimeout,
		LLMBaseURL: cfg.Assistant.LLMBaseURL,
		LLMAPIKey:  cfg.Assistant.LLMAPIKey,
		Model:      cfg.Assistant.LLMModel,
		MaxTokens:  cfg.Assistant.MaxTokens,
		RateLimit:  cfg.Assistant.RateLimit,
		RateBurst:  cfg.Assistant.RateBurst,
	}, sysLogger)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize assistant client: %v", err)
	}
	log.Printf("[INFO] Using assistant provider: %s", cfg.Assistant.Provider)

	// 5. Services
	sessionEventService := service.NewSessionEventService(
		service.NewPublisherService(constant.SessionEventTopic, pubSub),
		sysLogger,
	)
	consumerService := service.NewConsumerService(pubSub, constant.SessionEventTopic, wsHub, sysLogger)
	exchangeEventService := service.NewExchangeEventService(publisher, sysLogger)

	orchestrator := chat.NewOrchestrator(client, sessionEventService)
	assistantService := service.NewAssistantService(
		ctx,
		sessionRepo,
		exchangeRepo,
		orchestrator,
		exchangeEventService,
		sysLogger,
	)
	diagnosticsService := service.NewDiagnosticsService(sysLogger)

	// 6. Controllers
	streamHandler := handler.NewSessionStreamHandler(assistantService, wsHub, cfg.App.JwtSecret, wsLogger)

	return &Container{
		AssistantController:   controller.NewAssistantController(assistantService, streamHandler.ServeWs),
		DiagnosticsController: controller.NewDiagnosticsController(diagnosticsService),

		ConsumerService:      consumerService,
		SessionEventService:  sessionEventService,
		ExchangeEventService: exchangeEventService,
		AssistantService:     assistantService,
		WebSocketHub:         wsHub,
		Logger:               sysLogger,

		natsPub: natsPub,
		natsSub: natsSub,
		rdb:     rdb,
		pubSub:  pubSub,
		cancel:  cancel,
		ctx:     ctx,
	}
}

// Start launches the background workers.
func (c *Container) Start() error {
	c.workers = new(errgroup.Group)
	c.workers.Go(func() error {
		c.WebSocketHub.Run(c.ctx)
		return nil
	})
	c.workers.Go(func() error {
		c.SessionEventService.Run(c.ctx)
		return nil
	})

	if err := c.ConsumerService.Consume(c.ctx); err != nil {
		return err
	}

	if c.natsSub != nil {
		if err := c.ExchangeEventService.Audit(c.ctx, c.natsSub); err != nil {
			log.Printf("[WARN] Failed to start exchange audit: %v", err)
		}
	}
	return nil
}

// Shutdown waits for background exchanges, then stops workers and closes
// connections.
func (c *Container) Shutdown(ctx context.Context) {
	if err := c.AssistantService.Shutdown(ctx); err != nil {
		log.Printf("[WARN] Background exchanges still running at shutdown: %v", err)
	}
	c.cancel()
	if c.workers != nil {
		c.workers.Wait()
	}

	if c.natsSub != nil {
		c.natsSub.Close()
	}
	if c.natsPub != nil {
		c.natsPub.Close()
	}
	if c.rdb != nil {
		c.rdb.Close()
	}
	c.pubSub.Close()
	c.Logger.Sync()
}

func openDatabase(cfg *config.Config) *gorm.DB {
	if cfg.Database.Connection == "" {
		return nil
	}

	db, err := database.NewGormDBFromDSN(cfg.Database.Connection, cfg.IsProduction())
	if err != nil {
		log.Printf("[WARN] Unable to connect to database, falling back to memory: %v", err)
		return nil
	}
	if err := database.Migrate(db, &model.AssistantExchange{}); err != nil {
		log.Printf("[WARN] Failed to migrate exchange archive, falling back to memory: %v", err)
		return nil
	}
	return db
}

func openRedis(url string) *redis.Client {
	if url == "" {
		return nil
	}

	opt, err := redis.ParseURL(url)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{Addr: url}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v. Websocket fan-out stays local", err)
		rdb.Close()
		return nil
	}
	return rdb
}

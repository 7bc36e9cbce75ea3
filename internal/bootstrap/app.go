package bootstrap

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"docinsight/internal/ai"
	"docinsight/internal/app"
	"docinsight/internal/cache"
	"docinsight/internal/config"
	"docinsight/internal/model"
	mysqlClient "docinsight/internal/platform/mysql"
	rabbitmqClient "docinsight/internal/platform/rabbitmq"
	redisClient "docinsight/internal/platform/redis"
	"docinsight/internal/pkg/logging"
	"docinsight/internal/repository"
	"docinsight/internal/storage"
	"docinsight/internal/worker"
)

type App struct {
	Config         *config.Config
	MySQL          *gorm.DB
	Redis          *redis.Client
	MQConn         *amqp.Connection
	AnalysisWorker *worker.AnalysisWorker

	Auth          *app.AuthService
	Documents     *app.DocumentService
	Conversations *app.ConversationService
	Analysis      *app.AnalysisService

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Pretty)

	mysqlDB, err := mysqlClient.New(ctx, cfg.MySQLDSN(), mysqlClient.Options{
		MaxOpenConns:  cfg.MySQL.MaxOpenConns,
		MaxIdleConns:  cfg.MySQL.MaxIdleConns,
		SlowThreshold: time.Duration(cfg.MySQL.SlowQueryMillis) * time.Millisecond,
	})
	if err != nil {
		return nil, err
	}
	if err := mysqlDB.AutoMigrate(model.All()...); err != nil {
		return nil, fmt.Errorf("auto migrate tables failed: %w", err)
	}

	redisCli, err := redisClient.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}

	mqConn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL, cfg.RabbitMQ.AnalysisQueue)
	if err != nil {
		return nil, err
	}

	blobs, err := storage.NewLocalStore(cfg.Storage.UploadDir)
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:    cfg,
		MySQL:     mysqlDB,
		Redis:     redisCli,
		MQConn:    mqConn,
		StartedAt: time.Now(),
	}
	a.wire(blobs)

	a.AnalysisWorker = worker.NewAnalysisWorker(mqConn, a.Analysis, cfg.RabbitMQ.AnalysisQueue, cfg.RabbitMQ.WorkerConcurrency)
	if err := a.AnalysisWorker.Start(ctx); err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("start analysis worker failed: %w", err)
	}

	log.Info().Str("env", cfg.App.Env).Str("model", cfg.LLM.Model).Msg("application initialized")
	return a, nil
}

func (a *App) wire(blobs *storage.LocalStore) {
	cfg := a.Config

	users := repository.NewUserRepository(a.MySQL)
	docs := repository.NewDocumentRepository(a.MySQL)
	chunks := repository.NewChunkRepository(a.MySQL)
	analyses := repository.NewAnalysisRepository(a.MySQL)
	reports := repository.NewReportRepository(a.MySQL)
	conversations := repository.NewConversationRepository(a.MySQL)
	messages := repository.NewMessageRepository(a.MySQL)

	llm := ai.NewOpenAICompatibleClient(ai.Config{
		BaseURL:        cfg.LLM.BaseURL,
		APIKey:         cfg.LLM.APIKey,
		Model:          cfg.LLM.Model,
		EmbeddingModel: cfg.LLM.EmbeddingModel,
		Timeout:        time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
	})
	provider := ai.NewProvider(llm)
	questionEmbedder := ai.NewCachedEmbedder(provider, cfg.LLM.EmbeddingModel, cfg.LLM.EmbeddingCacheSize)

	historyCache := cache.NewHistoryCache(a.Redis, time.Duration(cfg.Redis.HistoryTTLSeconds)*time.Second)
	runLock := cache.NewRunLock(a.Redis, time.Duration(cfg.Redis.RunLockTTLSeconds)*time.Second)
	publisher := rabbitmqClient.NewJobPublisher(a.MQConn, cfg.RabbitMQ.AnalysisQueue)

	a.Auth = app.NewAuthService(users, cfg.Auth.JWTSecret, time.Duration(cfg.Auth.JWTExpireMinute)*time.Minute)
	a.Documents = app.NewDocumentService(docs, reports, blobs, publisher, cfg.Storage.MaxUploadBytes)
	a.Conversations = app.NewConversationService(docs, conversations, messages, chunks, questionEmbedder, provider, historyCache)
	a.Analysis = app.NewAnalysisService(docs, chunks, analyses, reports, blobs, provider, runLock)
}

func (a *App) Close() error {
	var closeErr error
	if a.AnalysisWorker != nil {
		a.AnalysisWorker.Close()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MySQL != nil {
		sqlDB, err := a.MySQL.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	return closeErr
}

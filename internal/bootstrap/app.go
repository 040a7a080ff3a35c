package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"contract-analyzer/internal/analyses"
	googleauth "contract-analyzer/internal/auth"
	"contract-analyzer/internal/documents"
	"contract-analyzer/internal/llm"
	"contract-analyzer/internal/llm/gemini"
	"contract-analyzer/internal/llm/openai"
	"contract-analyzer/internal/queue"
	"contract-analyzer/internal/services/health"
	"contract-analyzer/internal/shared/config"
	"contract-analyzer/internal/shared/lock"
	"contract-analyzer/internal/shared/server"
	"contract-analyzer/internal/shared/server/middleware"
	"contract-analyzer/internal/shared/storage/db"
	"contract-analyzer/internal/shared/storage/object"
	localstore "contract-analyzer/internal/shared/storage/object/local"
	miniostore "contract-analyzer/internal/shared/storage/object/minio"
	s3store "contract-analyzer/internal/shared/storage/object/s3"
	"contract-analyzer/internal/shared/telemetry"
	"contract-analyzer/internal/users"
)

// lockSlack is added to the pipeline timeouts to size the Redis lock TTL.
const lockSlack = 30 * time.Second

// App holds shared dependencies.
type App struct {
	Config           config.Config
	Router           *gin.Engine
	DB               *sql.DB
	Redis            *redis.Client
	Store            object.ObjectStore
	Queue            queue.Client
	LLM              llm.Client
	Locker           lock.Locker
	DocumentsRepo    documents.DocumentsRepo
	AnalysesRepo     analyses.Repo
	UsersRepo        users.Repo
	DocumentsService *documents.Service
	AnalysesService  *analyses.Service
	UsersService     *users.Service
	DocumentsHandler *documents.Handler
	AnalysisHandler  *analyses.Handler
	UsersHandler     *users.Handler
	GoogleAuth       *googleauth.GoogleService

	asynqClient *asynq.Client
}

// Build prepares shared dependencies and the router for the API.
func Build(cfg config.Config) (*App, error) {
	return build(cfg, db.DefaultServerOptions())
}

// BuildWorker prepares dependencies for cmd/worker. Queued jobs look documents
// up by id, so the worker must share the API's database and Redis; the dev
// fallback to in-memory repos would make every job fail with not found.
func BuildWorker(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil, errors.New("worker requires REDIS_ADDR")
	}
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, errors.New("worker requires DATABASE_URL")
	}
	app, err := build(cfg, db.DefaultWorkerOptions(cfg.WorkerConcurrency))
	if err != nil {
		return nil, err
	}
	if app.DB == nil {
		app.Close()
		return nil, errors.New("worker requires a reachable database")
	}
	return app, nil
}

func build(cfg config.Config, dbOpts db.Options) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	if strings.TrimSpace(cfg.AnalysisMode) == "" {
		cfg.AnalysisMode = config.AnalysisModeSync
	}
	ctx := context.Background()

	app := &App{Config: cfg}

	sqlDB, err := buildDB(ctx, cfg, dbOpts)
	if err != nil {
		return nil, err
	}
	app.DB = sqlDB

	if app.Store, err = buildStore(ctx, cfg); err != nil {
		return nil, err
	}
	if app.LLM, err = NewLLM(ctx, cfg); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.RedisAddr) != "" {
		app.Redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		app.Locker = lock.NewRedis(app.Redis, lockTTL(cfg))
	} else {
		app.Locker = lock.NewMemory()
	}

	if cfg.AnalysisMode == config.AnalysisModeAsync {
		if strings.TrimSpace(cfg.RedisAddr) == "" {
			return nil, errors.New("ANALYSIS_MODE=async requires REDIS_ADDR")
		}
		app.Queue, app.asynqClient = queue.NewAsynqClient(cfg.RedisAddr, cfg.RedisDB)
	}

	buildServices(app)

	app.Router = server.NewRouter(server.RouterDeps{
		Config:          app.Config,
		UserHandler:     app.UsersHandler,
		DocumentHandler: app.DocumentsHandler,
		AnalysisHandler: app.AnalysisHandler,
		GoogleAuth:      app.GoogleAuth,
		RateLimiter:     middleware.NewRateLimiter(nil),
		Health:          buildHealth(app),
	})

	return app, nil
}

// Close releases connections held by the app.
func (a *App) Close() {
	if a.asynqClient != nil {
		_ = a.asynqClient.Close()
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.DB != nil {
		_ = a.DB.Close()
	}
}

func buildDB(ctx context.Context, cfg config.Config, opts db.Options) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.db.memory", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	sqlDB, err := db.Shared(ctx, cfg.DatabaseURL, db.OptionsFromEnv(opts))
	if err != nil {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.db.memory", map[string]any{"reason": "connect failed", "error": err})
			return nil, nil
		}
		return nil, err
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	case "minio":
		return miniostore.New(ctx, miniostore.Options{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

// NewLLM selects the model provider named by cfg.LLMProvider.
func NewLLM(ctx context.Context, cfg config.Config) (llm.Client, error) {
	switch cfg.LLMProvider {
	case "openai":
		return openai.NewClient(cfg.OpenAIAPIKey, cfg.LLMModel, aiTimeout(cfg))
	case "placeholder":
		return llm.PlaceholderClient{}, nil
	default:
		if strings.TrimSpace(cfg.GoogleAPIKey) == "" {
			if isDevLike(cfg.Env) {
				telemetry.Warn("bootstrap.llm.placeholder", map[string]any{"reason": "GOOGLE_API_KEY empty"})
				return llm.PlaceholderClient{}, nil
			}
			return nil, fmt.Errorf("GOOGLE_API_KEY is required for LLM_PROVIDER=gemini")
		}
		return gemini.NewClient(ctx, cfg.GoogleAPIKey, cfg.LLMModel)
	}
}

func buildServices(app *App) {
	var docRepo documents.DocumentsRepo
	var analysisRepo analyses.Repo
	var userRepo users.Repo

	if app.DB != nil {
		docRepo = &documents.PGRepo{DB: app.DB}
		analysisRepo = &analyses.PGRepo{DB: app.DB}
		userRepo = &users.PGRepo{DB: app.DB}
	} else {
		docRepo = documents.NewMemoryRepo()
		analysisRepo = analyses.NewMemoryRepo()
		userRepo = users.NewMemoryRepo()
	}

	docSvc := &documents.Service{
		Store:           app.Store,
		Repo:            docRepo,
		StorageProvider: app.Config.ObjectStoreType,
	}

	analysisSvc := &analyses.Service{
		Repo:              analysisRepo,
		DocRepo:           docRepo,
		Store:             app.Store,
		Analyzer:          llm.Analyzer{Client: app.LLM},
		Locker:            app.Locker,
		Queue:             app.Queue,
		StorageTimeout:    time.Duration(app.Config.StorageTimeoutSecs) * time.Second,
		AITimeout:         aiTimeout(app.Config),
		RejectUnsupported: app.Config.RejectUnsupported,
	}

	userSvc := users.NewService(userRepo)

	app.DocumentsRepo = docRepo
	app.AnalysesRepo = analysisRepo
	app.UsersRepo = userRepo
	app.DocumentsService = docSvc
	app.AnalysesService = analysisSvc
	app.UsersService = userSvc
	app.DocumentsHandler = documents.NewHandler(docSvc)
	app.AnalysisHandler = analyses.NewHandler(analysisSvc, docRepo, app.Config.AnalysisMode == config.AnalysisModeAsync)
	app.UsersHandler = users.NewHandler(userSvc)
	app.GoogleAuth = googleauth.NewGoogleService(
		app.Config.GoogleClientID,
		app.Config.GoogleClientSecret,
		app.Config.GoogleRedirectURL,
		app.Config.UIRedirectURL,
		userSvc,
	)
}

func buildHealth(app *App) *health.Service {
	svc := health.NewService()
	if app.DB != nil {
		svc.Register("database", app.DB.PingContext)
	}
	if app.Redis != nil {
		svc.Register("redis", func(ctx context.Context) error {
			return app.Redis.Ping(ctx).Err()
		})
	}
	return svc
}

func aiTimeout(cfg config.Config) time.Duration {
	if cfg.AITimeoutSeconds <= 0 {
		return 120 * time.Second
	}
	return time.Duration(cfg.AITimeoutSeconds) * time.Second
}

func lockTTL(cfg config.Config) time.Duration {
	return aiTimeout(cfg) + time.Duration(cfg.StorageTimeoutSecs)*time.Second + lockSlack
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}

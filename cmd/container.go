// Composition root. Owns infrastructure (DB, Redis, file storage, the
// extraction provider) and wires the template and session modules.
package main

import (
	"context"
	"strings"
	"time"

	"github.com/Abraxas-365/docfill/pkg/ai/ocr"
	"github.com/Abraxas-365/docfill/pkg/asyncx"
	"github.com/Abraxas-365/docfill/pkg/auth"
	"github.com/Abraxas-365/docfill/pkg/config"
	"github.com/Abraxas-365/docfill/pkg/fsx"
	"github.com/Abraxas-365/docfill/pkg/fsx/fsxlocal"
	"github.com/Abraxas-365/docfill/pkg/fsx/fsxs3"
	"github.com/Abraxas-365/docfill/pkg/logx"
	"github.com/Abraxas-365/docfill/pkg/refinex"
	"github.com/Abraxas-365/docfill/pkg/sessionx"
	"github.com/Abraxas-365/docfill/pkg/sessionx/sessionxapi"
	"github.com/Abraxas-365/docfill/pkg/sessionx/sessionxredis"
	"github.com/Abraxas-365/docfill/pkg/templatex"
	"github.com/Abraxas-365/docfill/pkg/templatex/templatexapi"
	"github.com/Abraxas-365/docfill/pkg/templatex/templatexpg"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
)

// Container holds shared infrastructure and the composed modules.
type Container struct {
	Config *config.Config

	// Infrastructure
	DB         *sqlx.DB
	Redis      *redis.Client
	FileSystem fsx.FileSystem
	S3Client   *s3.Client
	Extractor  ocr.FieldExtractor

	// Modules
	TemplateService  *templatex.Service
	TemplateHandlers *templatexapi.Handlers
	RefineEngine     *refinex.Engine
	SessionManager   *sessionx.Manager
	SessionHandlers  *sessionxapi.Handlers

	// AuthMiddleware is nil when AUTH_JWT_SECRET is unset.
	AuthMiddleware *auth.Middleware
}

func NewContainer(ctx context.Context, cfg *config.Config) *Container {
	logx.Info("Initializing application container...")

	c := &Container{Config: cfg}
	c.initInfrastructure(ctx)
	c.initExtractor(ctx)
	c.initModules(ctx)

	logx.Info("Application container initialized")
	return c
}

func (c *Container) initInfrastructure(ctx context.Context) {
	db, err := sqlx.Connect("postgres", c.Config.Database.DSN())
	if err != nil {
		logx.Fatalf("Failed to connect to database: %v", err)
	}
	db.SetMaxOpenConns(c.Config.Database.MaxOpenConns)
	db.SetMaxIdleConns(c.Config.Database.MaxIdleConns)
	db.SetConnMaxLifetime(c.Config.Database.ConnMaxLifetime)
	c.DB = db
	logx.Info("  database connected")

	c.Redis = redis.NewClient(&redis.Options{
		Addr:     c.Config.Redis.Address(),
		Password: c.Config.Redis.Password,
		DB:       c.Config.Redis.DB,
	})
	if _, err := asyncx.RetryWithBackoff(ctx, 5, 200*time.Millisecond, func(ctx context.Context) (string, error) {
		return c.Redis.Ping(ctx).Result()
	}); err != nil {
		logx.Fatalf("Failed to connect to Redis at %s: %v", c.Config.Redis.Address(), err)
	}
	logx.Info("  redis connected")

	c.initFileStorage(ctx)
}

func (c *Container) initFileStorage(ctx context.Context) {
	st := c.Config.Storage
	switch st.Mode {
	case "s3":
		awsCfg, err := awsConfig.LoadDefaultConfig(ctx, awsConfig.WithRegion(st.AWSRegion))
		if err != nil {
			logx.Fatalf("Unable to load AWS SDK config: %v", err)
		}
		c.S3Client = s3.NewFromConfig(awsCfg)
		c.FileSystem = fsxs3.NewS3FileSystem(c.S3Client, st.AWSBucket, st.S3Prefix)
		logx.Infof("  s3 file system configured (bucket: %s, region: %s)", st.AWSBucket, st.AWSRegion)

	case "local":
		localFS, err := fsxlocal.NewLocalFileSystem(st.UploadDir)
		if err != nil {
			logx.Fatalf("Failed to initialize local file system: %v", err)
		}
		c.FileSystem = localFS
		logx.Infof("  local file system configured (path: %s)", localFS.GetBasePath())

	default:
		logx.Fatalf("Unknown STORAGE_MODE: %s (use 'local' or 's3')", st.Mode)
	}
}

func (c *Container) initExtractor(ctx context.Context) {
	ai := c.Config.AI
	names := append([]string{ai.Provider}, ai.FallbackProviders...)

	var chain ocr.Chain
	for i, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		provider, err := newProvider(ctx, name, ai)
		if err != nil {
			if i == 0 {
				logx.Fatalf("Failed to initialize AI provider %q: %v", name, err)
			}
			logx.WithError(err).WithField("provider", name).Warn("fallback provider skipped")
			continue
		}

		defaults := []ocr.Option{ocr.WithMaxTokens(ai.MaxTokens)}
		if i == 0 && ai.Model != "" {
			defaults = append(defaults, ocr.WithModel(ai.Model))
		}
		chain = append(chain, ocr.NewClient(provider,
			ocr.WithName(name),
			ocr.WithRetries(ai.Retries, ai.RetryDelay),
			ocr.WithTimeout(ai.Timeout),
			ocr.WithDefaultOptions(defaults...),
		))
		logx.Infof("  extraction provider %q ready", name)
	}

	if len(chain) == 1 {
		c.Extractor = chain[0]
		return
	}
	c.Extractor = chain
}

func (c *Container) initModules(ctx context.Context) {
	repo := templatexpg.NewPostgresTemplateRepository(c.DB)
	if err := repo.Migrate(ctx); err != nil {
		logx.Fatalf("Failed to migrate templates: %v", err)
	}
	c.TemplateService = templatex.NewService(repo, logx.GetDefaultLogger())
	c.TemplateHandlers = templatexapi.NewHandlers(c.TemplateService)

	rc := c.Config.Refine
	c.RefineEngine = refinex.NewEngine(c.Extractor, refinex.WithConfig(refinex.Config{
		Padding:    rc.Padding,
		Confidence: rc.Confidence,
		MinArea:    rc.MinArea,
	}))

	c.SessionManager = sessionx.NewManager(c.TemplateService, c.Extractor,
		sessionx.WithEngine(c.RefineEngine),
		sessionx.WithStore(sessionxredis.NewRedisStore(c.Redis, sessionxredis.WithTTL(c.Config.Redis.SessionTTL))),
		sessionx.WithFiles(c.FileSystem),
		sessionx.WithDebounce(rc.Debounce),
		sessionx.WithRefineConcurrency(rc.Concurrency),
		sessionx.WithMaxImageSide(c.Config.AI.MaxImageSide),
	)
	c.SessionHandlers = sessionxapi.NewHandlers(c.SessionManager)

	if c.Config.Auth.Enabled() {
		jwtSvc := auth.NewJWTService(c.Config.Auth.JWTSecret, 0, c.Config.Auth.Issuer)
		c.AuthMiddleware = auth.NewMiddleware(jwtSvc)
		logx.Info("  bearer token auth enabled")
	} else {
		logx.Warn("  AUTH_JWT_SECRET not set, API is unauthenticated")
	}
}

// routeMiddleware returns the handlers guarding API routes, optionally
// requiring scope.
func (c *Container) routeMiddleware(scope string) []fiber.Handler {
	if c.AuthMiddleware == nil {
		return nil
	}
	mw := []fiber.Handler{c.AuthMiddleware.Authenticate()}
	if scope != "" {
		mw = append(mw, c.AuthMiddleware.RequireScope(scope))
	}
	return mw
}

func (c *Container) Cleanup() {
	logx.Info("Cleaning up resources...")

	if c.SessionManager != nil {
		c.SessionManager.Shutdown()
	}
	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			logx.Errorf("Error closing database: %v", err)
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			logx.Errorf("Error closing Redis: %v", err)
		}
	}

	logx.Info("Cleanup complete")
}

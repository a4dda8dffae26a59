package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"

	"github.com/gin-gonic/gin"

	"articles-backend/internal/articles"
	"articles-backend/internal/attachments"
	googleauth "articles-backend/internal/auth"
	"articles-backend/internal/resources"
	sharedauth "articles-backend/internal/shared/auth"
	"articles-backend/internal/shared/config"
	"articles-backend/internal/shared/server"
	"articles-backend/internal/shared/storage/db"
	"articles-backend/internal/shared/storage/object"
	localstore "articles-backend/internal/shared/storage/object/local"
	s3store "articles-backend/internal/shared/storage/object/s3"
	"articles-backend/internal/uploads"
	"articles-backend/internal/users"
)

// App holds the wired application dependencies.
type App struct {
	Config          config.Config
	Router          *gin.Engine
	DB              *sql.DB
	Store           object.Store
	Attachments     *attachments.Store
	Coordinator     *resources.Coordinator
	Issuer          *sharedauth.TokenIssuer
	UsersRepo       users.Repo
	ArticlesRepo    articles.Repo
	UsersService    *users.Service
	ArticlesService *articles.Service
	UsersHandler    *users.Handler
	ArticlesHandler *articles.Handler
	UploadsHandler  *uploads.Handler
	GoogleAuth      *googleauth.GoogleService
}

// Build prepares shared dependencies and wires the router.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	issuer, err := sharedauth.NewTokenIssuer(cfg.JWTSecret)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Store:  store,
		Issuer: issuer,
	}
	buildServices(app)

	app.Router = server.NewRouter(server.RouterDeps{
		Config:          app.Config,
		Issuer:          app.Issuer,
		UsersHandler:    app.UsersHandler,
		ArticlesHandler: app.ArticlesHandler,
		UploadsHandler:  app.UploadsHandler,
		GoogleAuth:      app.GoogleAuth,
	})
	return app, nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory repositories")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	opts := db.OptionsFromEnv(db.DefaultServerOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}

	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.Store, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildServices(app *App) {
	app.Attachments = attachments.NewStore(app.Store)
	app.Coordinator = resources.NewCoordinator(app.Attachments)

	var userRepo users.Repo
	var articleRepo articles.Repo
	if app.DB != nil {
		userRepo = &users.PGRepo{DB: app.DB}
		articleRepo = &articles.PGRepo{DB: app.DB}
	} else {
		memUsers := users.NewMemoryRepo()
		userRepo = memUsers
		articleRepo = articles.NewMemoryRepo(func(ctx context.Context, id int64) (string, error) {
			author, err := memUsers.GetByID(ctx, id)
			if err != nil {
				return "", err
			}
			return author.Name, nil
		})
	}

	userSvc := users.NewService(userRepo, app.Coordinator, app.Issuer)
	articleSvc := articles.NewService(articleRepo, app.Attachments, app.Coordinator)

	app.UsersRepo = userRepo
	app.ArticlesRepo = articleRepo
	app.UsersService = userSvc
	app.ArticlesService = articleSvc
	app.UsersHandler = users.NewHandler(userSvc, app.Attachments, app.Config.PublicBaseURL)
	app.ArticlesHandler = articles.NewHandler(articleSvc, app.Config.PublicBaseURL)
	app.UploadsHandler = uploads.NewHandler(app.Attachments, app.Config.PublicBaseURL)
	app.GoogleAuth = googleauth.NewGoogleService(
		app.Config.GoogleClientID,
		app.Config.GoogleClientSecret,
		app.Config.GoogleRedirectURL,
		app.Config.UIRedirectURL,
		userSvc,
	)
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}

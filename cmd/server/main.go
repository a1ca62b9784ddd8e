package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-router"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	booknetwork "github.com/aaronwittchen/book-network"
	"github.com/aaronwittchen/book-network/middleware/jwtware"
)

func main() {
	cfg := LoadConfig()

	lgr := glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithLevel(glog.Trace),
		glog.WithName("booknet"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(errors.ToSlogAttributes),
	)

	ctx := context.Background()

	db, err := openDatabase(ctx, cfg.DSN)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	repo := booknetwork.NewRepositoryManager(db)
	repo.MustValidate()

	if err := repo.Roles().EnsureSeeded(ctx, booknetwork.DefaultRoleName); err != nil {
		log.Fatal(err)
	}

	mailer := buildMailer(cfg, lgr)

	provider := booknetwork.NewUserProvider(repo.Users()).
		WithLogger(lgr.GetLogger("auth:prv"))

	authenticator := booknetwork.NewAuthenticator(provider, cfg).
		WithLogger(lgr.GetLogger("auth:authz"))

	registerUser := booknetwork.NewRegisterUserHandler(repo, mailer, cfg).
		WithLogger(lgr.GetLogger("auth:register"))

	activateAccount := booknetwork.NewActivateAccountHandler(repo, mailer, cfg).
		WithLogger(lgr.GetLogger("auth:activate"))

	lending := booknetwork.NewLendingService(repo).
		WithLogger(lgr.GetLogger("lending")).
		WithFileStorage(booknetwork.NewDiskStorage(cfg.UploadsDir))

	srv := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New(fiber.Config{
			UnescapePath:  true,
			StrictRouting: false,
			AppName:       "book-network",
		}))
	})

	srv.Router().WithLogger(lgr.GetLogger("router"))

	gateLogger := lgr.GetLogger("gate")
	srv.Router().Use(jwtware.New(jwtware.Config{
		Filter: func(ctx router.Context) bool {
			// auth endpoints stay public
			return strings.HasPrefix(ctx.Path(), "/auth")
		},
		SigningKey: jwtware.SigningKey{
			JWTAlg: cfg.GetSigningMethod(),
			Key:    []byte(cfg.GetSigningKey()),
		},
		ContextKey:     cfg.GetContextKey(),
		TokenLookup:    cfg.GetTokenLookup(),
		AuthScheme:     cfg.GetAuthScheme(),
		TokenValidator: tokenValidatorAdapter{svc: authenticator.TokenService()},
		IdentityResolver: func(ctx context.Context, subject string) (any, error) {
			return provider.FindIdentityByIdentifier(ctx, subject)
		},
		OnAnonymous: func(_ router.Context, err error) {
			gateLogger.Debug("request degraded to anonymous", "reason", err)
		},
	}))

	booknetwork.RegisterRoutes(srv.Router(),
		booknetwork.WithControllerLogger(lgr.GetLogger("http")),
		booknetwork.WithRegisterHandler(registerUser),
		booknetwork.WithActivateHandler(activateAccount),
		booknetwork.WithAuthenticator(authenticator),
		booknetwork.WithLendingService(lending),
		booknetwork.WithContextKey(cfg.GetContextKey()),
	)

	srv.Serve(cfg.ServerAddr)

	lgr.GetLogger("app").Info("server listening", "addr", cfg.ServerAddr)

	WaitExitSignal()
}

func openDatabase(ctx context.Context, dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, err
	}

	db := bun.NewDB(sqldb, sqlitedialect.New())

	// m2m join models must be registered before queries reference them
	db.RegisterModel((*booknetwork.UserRole)(nil))

	models := []any{
		(*booknetwork.User)(nil),
		(*booknetwork.Role)(nil),
		(*booknetwork.UserRole)(nil),
		(*booknetwork.ActivationToken)(nil),
		(*booknetwork.Book)(nil),
		(*booknetwork.BookTransaction)(nil),
	}

	for _, model := range models {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return nil, err
		}
	}

	return db, nil
}

func buildMailer(cfg *AppConfig, lgr *glog.BaseLogger) booknetwork.Mailer {
	if cfg.SMTPAddr == "" {
		return booknetwork.NewLogMailer(lgr.GetLogger("mail"))
	}

	mailer, err := booknetwork.NewSMTPMailer(cfg.SMTPAddr, cfg.SMTPFrom, cfg.TemplatesDir)
	if err != nil {
		log.Fatal(err)
	}
	return mailer.WithLogger(lgr.GetLogger("mail"))
}

// tokenValidatorAdapter bridges the root TokenService to the middleware's
// local validator interface.
type tokenValidatorAdapter struct {
	svc booknetwork.TokenService
}

func (a tokenValidatorAdapter) Validate(tokenString string) (jwtware.AuthClaims, error) {
	claims, err := a.svc.Validate(tokenString)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func WaitExitSignal() os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return <-ch
}

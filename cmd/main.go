package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-playground/validator/v10"

	"mysterymsg/internal/account"
	"mysterymsg/internal/config"
	acceptmsgs "mysterymsg/internal/http_server/handlers/acceptmessages"
	deletemsg "mysterymsg/internal/http_server/handlers/deletemessage"
	listmsgs "mysterymsg/internal/http_server/handlers/listmessages"
	"mysterymsg/internal/http_server/handlers/login"
	"mysterymsg/internal/http_server/handlers/logout"
	"mysterymsg/internal/http_server/handlers/refresh"
	"mysterymsg/internal/http_server/handlers/register"
	resendcode "mysterymsg/internal/http_server/handlers/resend_code"
	sendmsg "mysterymsg/internal/http_server/handlers/sendmessage"
	suggestmsgs "mysterymsg/internal/http_server/handlers/suggestmessages"
	"mysterymsg/internal/http_server/handlers/verify"
	"mysterymsg/internal/messages"
	authmw "mysterymsg/internal/middleware/auth"
	ratelimit "mysterymsg/internal/middleware/ratelimit"
	"mysterymsg/internal/rabbitmq"
	"mysterymsg/internal/storage/postgres"
	redisrepo "mysterymsg/internal/storage/redis"
	"mysterymsg/internal/suggest"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	cfg := config.MustLoad("./config/config.yaml")

	log := setupLogger(cfg.Env)

	log.Info("starting mysterymsg api", slog.String("env", cfg.Env))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		log.Info("Shutdown signal received")
		cancel()
	}()

	storage, err := postgres.New(ctx, cfg)
	if err != nil {
		log.Error("failed to connect postgres", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer storage.Close()

	cooldowns, err := redisrepo.New(ctx, cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Error("failed to connect redis", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer cooldowns.Close()

	msgBroker, err := rabbitmq.New(cfg.RabbitMQ.URL, cfg.RabbitMQ.QueueName)
	if err != nil {
		log.Error("failed to connect rabbitmq", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer msgBroker.Close()

	accounts := account.New(
		log,
		storage,
		storage,
		cfg.Verification.CodeTTL,
		cfg.Tokens.AccessTokenTTL,
		cfg.Tokens.RefreshTokenTTL,
		cfg.Tokens.Secret,
	)

	inbox := messages.New(log, storage)

	suggester := suggest.NewClient(
		cfg.Suggest.BaseURL,
		cfg.Suggest.APIKey,
		cfg.Suggest.Model,
		cfg.Suggest.Timeout,
	)

	router := setupRouter(log, cfg, accounts, inbox, suggester, msgBroker, cooldowns)

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server is running")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed", slog.String("err", err.Error()))
			cancel()
		}
	}()

	<-ctx.Done()

	log.Info("Shutting down HTTP server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown error", slog.String("err", err.Error()))
	} else {
		log.Info("Server stopped gracefully")
	}

	log.Info("Main service stopped")
}

func setupRouter(
	log *slog.Logger,
	cfg *config.Config,
	accounts *account.Accounts,
	inbox *messages.Service,
	suggester *suggest.Client,
	msgBroker *rabbitmq.RabbitMQClient,
	cooldowns *redisrepo.RedisRepo,
) *chi.Mux {
	validate := validator.New()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.With(ratelimit.Register()).Post("/register",
			register.New(log, validate, accounts, msgBroker),
		)
		r.With(ratelimit.Verify()).Post("/verify",
			verify.New(log, validate, accounts),
		)
		r.With(ratelimit.ResendCode()).Post("/resend-code",
			resendcode.New(log, validate, accounts, msgBroker, cooldowns, cfg.Verification.ResendCooldown),
		)
		r.With(ratelimit.Login()).Post("/login",
			login.New(log, validate, accounts),
		)
		r.With(ratelimit.Refresh()).Post("/refresh",
			refresh.New(log, validate, accounts),
		)
		r.With(ratelimit.Logout()).Post("/logout",
			logout.New(log, validate, accounts),
		)

		// Public anonymous surface.
		r.With(ratelimit.SubmitMessage()).Post("/u/{username}/messages",
			sendmsg.New(log, validate, inbox),
		)
		r.With(ratelimit.Suggest()).Post("/suggest-messages",
			suggestmsgs.New(log, suggester),
		)

		// Owner surface.
		r.Group(func(r chi.Router) {
			r.Use(authmw.New(cfg.Tokens.Secret))

			r.Get("/accept-messages", acceptmsgs.NewGet(log, accounts))
			r.Post("/accept-messages", acceptmsgs.NewSet(log, validate, accounts))
			r.Get("/messages", listmsgs.New(log, inbox))
			r.Delete("/messages/{id}", deletemsg.New(log, inbox))
		})
	})

	return r
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}

	return log
}

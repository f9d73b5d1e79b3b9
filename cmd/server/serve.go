package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"

	"github.com/iliyamo/restaurant-reservation/internal/config"
	"github.com/iliyamo/restaurant-reservation/internal/connection"
	"github.com/iliyamo/restaurant-reservation/internal/handler"
	"github.com/iliyamo/restaurant-reservation/internal/protocol"
	"github.com/iliyamo/restaurant-reservation/internal/queue"
	"github.com/iliyamo/restaurant-reservation/internal/ratelimit"
	"github.com/iliyamo/restaurant-reservation/internal/repository"
	"github.com/iliyamo/restaurant-reservation/internal/router"
	"github.com/iliyamo/restaurant-reservation/internal/server"
	"github.com/iliyamo/restaurant-reservation/internal/service"
	"github.com/iliyamo/restaurant-reservation/internal/timewindow"
)

func newServeCmd(g *globalFlags) *cobra.Command {
	var (
		migrate  bool
		tcpAddr  string
		httpAddr string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the line protocol server and the operator API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			cmd.SetContext(ctx)

			cfg, st, err := g.open(cmd, migrate)
			if err != nil {
				return err
			}
			defer st.Close()
			if tcpAddr != "" {
				cfg.TCPAddr = tcpAddr
			}
			if httpAddr != "" {
				cfg.HTTPAddr = httpAddr
			}

			policy, err := cfg.Policy()
			if err != nil {
				return err
			}
			calc := cfg.Billing()
			reg := connection.NewRegistry()
			events := service.MultiEvents{protocol.Broadcaster{Registry: reg}}
			if cfg.NotifyEnabled {
				url := cfg.RabbitURL
				if url == "" {
					url = queue.BrokerURL()
				}
				events = append(events, queue.NewNotifier(url))
			}
			eng := service.NewEngine(st, service.Options{
				Policy:  &policy,
				Billing: &calc,
				Clock:   timewindow.RealClock{},
				Events:  events,
			})
			eng.StartExpirationWorker(ctx, cfg.SweepInterval)

			limiter := newLimiter(cfg)
			auth := &service.Auth{Users: repository.NewUserRepo(st), Secret: cfg.JWTSecret, TTLMin: cfg.AccessTTLMin}

			e := echo.New()
			e.HideBanner = true
			router.RegisterRoutes(e, st.Ready)
			router.RegisterAuth(e, handler.NewAuthHandler(auth), cfg.JWTSecret, limiter)
			router.RegisterAdmin(e, handler.NewAdminHandler(eng, reg), cfg.JWTSecret, limiter)
			go func() {
				log.Printf("http: listening on %s (env=%s)", cfg.HTTPAddr, cfg.Env)
				if err := e.Start(cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Printf("http: %v", err)
					cancel()
				}
			}()

			srv := &server.Server{
				Addr:         cfg.TCPAddr,
				Dispatcher:   &protocol.Dispatcher{Engine: eng, Auth: auth, Registry: reg, SuggestionCount: cfg.SuggestionCount},
				Registry:     reg,
				Limiter:      limiter,
				WriteTimeout: 10 * time.Second,
			}
			serveErr := srv.ListenAndServe(ctx)
			cancel()

			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			if err := e.Shutdown(shutdownCtx); err != nil {
				log.Printf("http: shutdown: %v", err)
			}
			return serveErr
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", true, "run database migrations on startup")
	cmd.Flags().StringVar(&tcpAddr, "tcp-addr", "", "line protocol listen address (overrides TCP_ADDR)")
	cmd.Flags().StringVar(&httpAddr, "http-addr", "", "operator API listen address (overrides HTTP_ADDR)")
	return cmd
}

// newLimiter connects to Redis when rate limiting is enabled. Without Redis
// the returned limiter lets everything through.
func newLimiter(cfg config.Config) *ratelimit.Limiter {
	if !cfg.RateLimit.Enabled {
		return ratelimit.New(cfg.RateLimit, nil)
	}
	rdb := config.NewRedisClient(cfg.Redis)
	if rdb == nil {
		log.Printf("ratelimit: redis at %s unreachable; rate limiting disabled", cfg.Redis.Addr)
	}
	return ratelimit.New(cfg.RateLimit, rdb)
}

package cmd

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/AlyBadawy/Securial-sub000/api"
	"github.com/AlyBadawy/Securial-sub000/identity"
	"github.com/AlyBadawy/Securial-sub000/internal/config"
	"github.com/AlyBadawy/Securial-sub000/internal/mailer"
	"github.com/AlyBadawy/Securial-sub000/internal/util"
	"github.com/AlyBadawy/Securial-sub000/rate"
	"github.com/AlyBadawy/Securial-sub000/session"
	"github.com/AlyBadawy/Securial-sub000/token"
)

var (
	port           int
	dataDir        string
	tlsCert        string
	tlsKey         string
	trustedProxies []string
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the session service server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

		codec, err := token.NewCodec(token.Config{
			Secret:    []byte(cfg.SigningSecret),
			Algorithm: cfg.Algorithm(),
			Issuer:    cfg.Issuer,
			AccessTTL: cfg.AccessTokenTTL,
		})
		if err != nil {
			return err
		}
		generator, err := token.NewGenerator([]byte(cfg.SigningSecret))
		if err != nil {
			return err
		}

		ctx := cmd.Context()

		sessions, cleanup, err := openSessionStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		users := identity.NewMemoryStore()
		if err := seedAdmin(ctx, users, cfg); err != nil {
			return err
		}

		opts := []api.Option{api.WithLogger(logger)}
		if cfg.SMTP.Host != "" {
			opts = append(opts, api.WithMailer(mailer.NewSMTPSender(
				cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From)))
		} else {
			opts = append(opts, api.WithMailer(&mailer.LogSender{Logger: logger}))
		}
		if cfg.RedisURL != "" {
			redisOpts, err := redis.ParseURL(cfg.RedisURL)
			if err != nil {
				return fmt.Errorf("failed to parse redis URL: %w", err)
			}
			client := redis.NewClient(redisOpts)
			opts = append(opts, api.WithCounterStore(rate.NewRedisCounterStore(client, "securial:rl")))
		}
		if len(trustedProxies) > 0 {
			prefixes := make([]netip.Prefix, 0, len(trustedProxies))
			for _, cidr := range trustedProxies {
				prefix, err := netip.ParsePrefix(cidr)
				if err != nil {
					return fmt.Errorf("invalid trusted-proxy range %q: %w", cidr, err)
				}
				prefixes = append(prefixes, prefix)
			}
			opts = append(opts, api.WithTrustedProxies(prefixes))
		}

		a := api.New(sessions, users, codec, generator, api.Config{
			AccessTokenTTL:  cfg.AccessTokenTTL,
			RefreshTokenTTL: cfg.RefreshTokenTTL,
			ResetCodeTTL:    cfg.ResetCodeTTL,
			LoginLimit:      cfg.RateLimit.LoginLimit,
			LoginWindow:     cfg.RateLimit.LoginWindow,
			ResetLimit:      cfg.RateLimit.ResetLimit,
			ResetWindow:     cfg.RateLimit.ResetWindow,
			LimitStatus:     cfg.RateLimit.ResponseStatus,
			LimitMessage:    cfg.RateLimit.Message,
		}, opts...)

		r := chi.NewRouter()
		r.Use(middleware.Logger)
		r.Use(middleware.Recoverer)

		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("OK"))
		})

		r.Mount("/api/v1", a.Router())

		server := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
		if tlsCert != "" && tlsKey != "" {
			cert, err := tls.LoadX509KeyPair(tlsCert, tlsKey)
			if err != nil {
				return fmt.Errorf("failed to load TLS key pair: %w", err)
			}
			server.TLSConfig = &tls.Config{
				Certificates: []tls.Certificate{cert},
				MinVersion:   tls.VersionTLS12,
			}
		}

		// Graceful shutdown on SIGINT/SIGTERM.
		done := make(chan error, 1)
		go func() {
			var err error
			if server.TLSConfig != nil {
				err = server.ListenAndServeTLS("", "")
			} else {
				err = server.ListenAndServe()
			}
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				done <- fmt.Errorf("server failed: %w", err)
				return
			}
			done <- nil
		}()

		printBanner()
		fmt.Printf("Starting server on port %d...\n", port)

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			fmt.Printf("\nReceived %s, shutting down...\n", sig)
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server shutdown failed: %w", err)
			}
			return nil
		case err := <-done:
			return err
		}
	},
}

// openSessionStore picks the session backend: postgres when a URL is
// configured, bbolt under the data directory otherwise, and a pure
// in-memory store when the data directory is disabled with "".
func openSessionStore(ctx context.Context, cfg *config.Config) (session.Store, func(), error) {
	if cfg.PostgresURL != "" {
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		store := session.NewPostgresStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("failed to prepare postgres schema: %w", err)
		}
		return store, pool.Close, nil
	}

	if dataDir != "" {
		if err := os.MkdirAll(dataDir, 0o700); err != nil {
			return nil, nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		store, err := session.NewBoltStore(dataDir+"/sessions.db", nil)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open session storage: %w", err)
		}
		return store, func() { store.Close() }, nil
	}

	return session.NewMemoryStore(), func() {}, nil
}

// seedAdmin creates the bootstrap admin account when configured.
func seedAdmin(ctx context.Context, users identity.Store, cfg *config.Config) error {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return nil
	}
	hash, err := identity.HashPassword(cfg.AdminPassword)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}
	return users.Create(ctx, &identity.User{
		EmailAddress: util.NormalizeIdentifier(cfg.AdminEmail),
		Password:     hash,
		Roles:        []string{identity.RoleAdmin},
	})
}

func init() {
	rootCmd.AddCommand(serverCmd)
	serverCmd.Flags().IntVarP(&port, "port", "p", 8080, "Port to listen on")
	serverCmd.Flags().StringVar(&dataDir, "data-dir", "./data", "Directory for persistent data (empty for in-memory sessions)")
	serverCmd.Flags().StringVar(&tlsCert, "tls-cert", "", "Path to TLS certificate file")
	serverCmd.Flags().StringVar(&tlsKey, "tls-key", "", "Path to TLS key file")
	serverCmd.Flags().StringSliceVar(&trustedProxies, "trusted-proxy", nil, "CIDR ranges of trusted reverse proxies")
}

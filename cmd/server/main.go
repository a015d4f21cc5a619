package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"possettle/backend/internal/cache"
	"possettle/backend/internal/config"
	"possettle/backend/internal/httpapi"
	"possettle/backend/internal/payment"
	"possettle/backend/internal/service"
	"possettle/backend/internal/store"
	"possettle/backend/internal/store/memory"
	pgstore "possettle/backend/internal/store/postgres"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "possettle",
		Short:         "Point-of-sale settlement backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runServe(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply the postgres schema and exit",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runMigrate(cmd.Context())
			},
		},
	)
	return root
}

func runMigrate(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return logged(err)
	}
	if cfg.DatabaseURL == "" {
		return logged(errors.New("DATABASE_URL is required for migrate"))
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	pg, err := pgstore.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return logged(fmt.Errorf("postgres unavailable: %w", err))
	}
	defer pg.Close()

	if err := pg.Migrate(ctx); err != nil {
		return logged(fmt.Errorf("apply schema: %w", err))
	}
	log.Println("schema applied")
	return nil
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return logged(err)
	}
	if err := validateSecurityConfig(cfg); err != nil {
		return logged(fmt.Errorf("invalid security configuration: %w", err))
	}
	if ctx == nil {
		ctx = context.Background()
	}

	startCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	handler, closers, err := buildHandler(startCtx, cfg)
	cancel()
	if err != nil {
		return logged(err)
	}

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("POS settlement backend listening on %s", cfg.Address())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sig)

	select {
	case <-sig:
	case err := <-serveErr:
		if err != nil {
			log.Printf("server error: %v", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Printf("close error: %v", err)
		}
	}

	log.Println("server stopped")
	return nil
}

// buildHandler wires the repository, caches, processors and service. A set
// DATABASE_URL that cannot be reached is fatal; an unreachable redis degrades
// to the repository sequence and no drawer cache.
func buildHandler(ctx context.Context, cfg config.Config) (http.Handler, []func() error, error) {
	var repo store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres unavailable (%v) and DATABASE_URL is set; refusing to start with in-memory fallback", err)
		}
		if err := pg.Migrate(ctx); err != nil {
			_ = pg.Close()
			return nil, nil, fmt.Errorf("apply schema: %w", err)
		}
		repo = pg
		closers = append(closers, pg.Close)
		log.Println("repository: postgres")
	} else {
		repo = memory.NewSeeded()
		log.Println("repository: in-memory")
	}

	var sequence service.InvoiceSequence = repo
	drawerCache := cache.DrawerCache(cache.NoopDrawerCache{})
	if cfg.RedisAddr != "" {
		client := cache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		redisCache := cache.NewRedisDrawerCache(client)
		if err := redisCache.Ping(ctx); err != nil {
			log.Printf("redis unavailable (%v), using repository sequence and noop drawer cache", err)
			_ = client.Close()
		} else {
			drawerCache = redisCache
			sequence = cache.NewRedisInvoiceSequence(client)
			closers = append(closers, client.Close)
			log.Println("cache: redis")
		}
	} else {
		log.Println("cache: noop")
	}

	processor := payment.NewSimulator(cfg.SimulatorDeclinePAN)
	invoices := service.NewInvoiceGenerator(sequence, cfg.InvoicePrefix, cfg.InvoiceRetryDelay())
	router := service.NewPaymentRouter(processor, processor)

	svc := service.New(repo, invoices, router, drawerCache, cfg.StoreID)
	svc.SetDrawerCacheTTL(cfg.DrawerCacheTTL())

	auth := httpapi.NewAuthManager(cfg.AuthSecret, cfg.AccessTokenTTL(), cfg.ManagerPIN, repo)
	api := httpapi.New(svc, auth, cfg.AllowedOrigin)
	return api.Handler(), closers, nil
}

func logged(err error) error {
	log.Printf("ERROR: %v", err)
	return err
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if len(cfg.ManagerPIN) < 6 {
		return fmt.Errorf("MANAGER_PIN must be set and at least 6 digits")
	}
	if err := validatePINStrength(cfg.ManagerPIN); err != nil {
		return fmt.Errorf("MANAGER_PIN is too weak: %w", err)
	}
	return nil
}

// validatePINStrength rejects PINs that are all the same digit,
// sequential, or on the known-weak list.
func validatePINStrength(pin string) error {
	known := map[string]bool{
		"123456": true, "654321": true, "000000": true, "111111": true,
		"222222": true, "333333": true, "444444": true, "555555": true,
		"666666": true, "777777": true, "888888": true, "999999": true,
		"121212": true, "112233": true, "123123": true,
	}
	if known[pin] {
		return fmt.Errorf("common PIN not allowed")
	}

	for _, r := range pin {
		if r < '0' || r > '9' {
			return fmt.Errorf("PIN must be digits only")
		}
	}

	allSame := true
	for i := 1; i < len(pin); i++ {
		if pin[i] != pin[0] {
			allSame = false
			break
		}
	}
	if allSame {
		return fmt.Errorf("all-same-digit PIN not allowed")
	}

	ascending, descending := true, true
	for i := 1; i < len(pin); i++ {
		diff := int(pin[i]) - int(pin[i-1])
		if diff != 1 {
			ascending = false
		}
		if diff != -1 {
			descending = false
		}
	}
	if ascending || descending {
		return fmt.Errorf("sequential PIN not allowed")
	}

	return nil
}

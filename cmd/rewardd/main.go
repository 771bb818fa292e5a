package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	ginfw "github.com/gin-gonic/gin"
	"github.com/go-co-op/gocron/v2"
	"github.com/sirupsen/logrus"

	rewards "github.com/questlabs/rewards-go"
	"github.com/questlabs/rewards-go/ledger"
	"github.com/questlabs/rewards-go/pkg/chainclient"
	"github.com/questlabs/rewards-go/pkg/config"
	rewardsgin "github.com/questlabs/rewards-go/pkg/gin"
	"github.com/questlabs/rewards-go/pkg/logging"
	"github.com/questlabs/rewards-go/pkg/metrics"
	"github.com/questlabs/rewards-go/pkg/ratelimit"
	"github.com/questlabs/rewards-go/replay"
	evmsigners "github.com/questlabs/rewards-go/signers/evm"
)

/**
 * Reward disbursement service
 *
 * Accepts signed reward claims over HTTP and pays them out as ERC-20
 * transfers from a hot wallet. Missing configuration does not stop the
 * server: every claim is answered with a configuration error instead.
 */

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("❌ Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Fatal("reward service stopped")
	}
}

func run(cfg *config.Config, logger *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := []rewards.Option{
		rewards.WithLogger(logger),
		rewards.WithConfirmation(rewards.ConfirmationMode(cfg.ConfirmationMode), cfg.ConfirmationAttempts, cfg.ConfirmationInterval),
	}

	configErr := cfg.Validate()

	// Chain gateway
	if cfg.RPCURL != "" {
		client, err := chainclient.Dial(ctx, cfg.RPCURL, chainclient.WithTimeout(cfg.RPCTimeout))
		if err != nil {
			configErr = errors.Join(configErr, err)
		} else {
			defer client.Close()
			opts = append(opts, rewards.WithGateway(client))
		}
	}

	// Signer
	walletAddress := "not configured"
	if cfg.SignerPrivateKey != "" {
		signer, err := evmsigners.NewLocalKeySigner(cfg.SignerPrivateKey)
		if err != nil {
			configErr = errors.Join(configErr, fmt.Errorf("%w: malformed signer key", rewards.ErrMissingConfiguration))
		} else {
			walletAddress = signer.Address().Hex()
			opts = append(opts, rewards.WithSigner(signer))
		}
	}
	if configErr != nil {
		logger.WithError(configErr).Error("reward service is not configured; claims will be refused")
		opts = append(opts, rewards.WithConfigurationError(configErr))
	}

	// Replay protection
	var store replay.Store = replay.NewMemoryStore()
	if cfg.RedisURL != "" {
		redisStore, redisClient, err := replay.NewRedisStoreFromURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("replay store: %w", err)
		}
		defer redisClient.Close()
		store = redisStore
	}
	guard := replay.NewGuard(replay.WithTTL(cfg.ReplayTTL), replay.WithStore(store))
	opts = append(opts, rewards.WithReplayGuard(guard))

	// Ledger
	if cfg.LedgerDSN != "" {
		db, err := ledger.Open(cfg.LedgerDSN)
		if err != nil {
			return fmt.Errorf("ledger: %w", err)
		}
		gormStore, err := ledger.NewGormStore(db)
		if err != nil {
			return fmt.Errorf("ledger: %w", err)
		}
		opts = append(opts, rewards.WithLedger(gormStore))
	}

	// Policy
	if cfg.PolicyFile != "" {
		policy, err := rewards.LoadPolicyFile(cfg.PolicyFile)
		if err != nil {
			return fmt.Errorf("policy: %w", err)
		}
		opts = append(opts, rewards.WithPolicyTable(policy))
	}

	disburser := rewards.NewDisburser(rewards.Settings{
		TokenContract: cfg.TokenContract,
		ChainID:       cfg.ChainID,
		ExplorerURL:   cfg.ExplorerURL,
	}, opts...)
	defer disburser.Close()

	m := metrics.New()
	m.Instrument(disburser)
	logging.Instrument(disburser, logger)

	// Background jobs
	limiter := ratelimit.New(cfg.RateLimitRPS, cfg.RateLimitBurst, logger)
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	if _, err := replay.ScheduleSweep(scheduler, guard, cfg.ReplaySweepInterval, logger, m.AddReplayEvictions); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	if _, err := limiter.ScheduleCleanup(scheduler, time.Minute, ratelimit.DefaultIdleTimeout); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	scheduler.Start()
	defer func() { _ = scheduler.Shutdown() }()

	// Set Gin to release mode to reduce logs
	ginfw.SetMode(ginfw.ReleaseMode)
	router := rewardsgin.NewRouter(disburser,
		rewardsgin.WithLogger(logger),
		rewardsgin.WithClaimTimeout(cfg.ClaimTimeout()),
		rewardsgin.WithMiddleware(logging.Middleware(logger), m.Middleware()),
		rewardsgin.WithClaimMiddleware(limiter.Middleware()),
		rewardsgin.WithMetricsHandler(m.Handler()),
	)

	fmt.Printf(`
╔════════════════════════════════════════════════════════╗
║           Reward Disbursement Service                  ║
╠════════════════════════════════════════════════════════╣
║  Server:     http://localhost:%s
║  Chain ID:   %d
║  Token:      %s
║  Wallet:     %s
║  Confirm:    %s
║
║  Endpoints:
║  • POST /api/claim-reward                 (claim)
║  • GET  /api/claim-reward                 (health)
║  • GET  /api/claim-reward/status/:txHash  (status)
║  • GET  /metrics                          (prometheus)
╚════════════════════════════════════════════════════════╝
`, cfg.Port, cfg.ChainID, cfg.TokenContract, walletAddress, cfg.ConfirmationMode)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ClaimTimeout())
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

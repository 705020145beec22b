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

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"liquidityCore/internal/api"
	"liquidityCore/internal/config"
	"liquidityCore/internal/model"
	"liquidityCore/internal/pool"
	"liquidityCore/internal/replay"
	"liquidityCore/internal/storage"
	"liquidityCore/internal/storage/postgres"
)

func main() {
	root := &cobra.Command{
		Use:          "engine",
		Short:        "Liquidity pool replay engine",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	replayCmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay an operation journal and store emitted events",
		RunE:  runReplay,
	}

	addEngineFlags(replayCmd)
	replayCmd.Flags().String("journal", "", "input operations JSONL path")
	replayCmd.Flags().Int("batch-size", 1000, "operations per storage flush")
	replayCmd.Flags().String("out", "./data/events.jsonl", "output events JSONL path")
	replayCmd.Flags().String("pg-dsn", "", "Postgres DSN (optional)")
	replayCmd.Flags().String("checkpoint", "./data/checkpoint.json", "checkpoint file path")
	replayCmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing")
	replayCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(replayCmd)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Replay a journal into memory and serve state over HTTP",
		RunE:  runServe,
	}

	addEngineFlags(serveCmd)
	serveCmd.Flags().String("journal", "", "input operations JSONL path")
	serveCmd.Flags().String("listen", ":8080", "HTTP listen address")
	serveCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(serveCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addEngineFlags(cmd *cobra.Command) {
	cmd.Flags().String("pool-address", "", "pool contract address")
	cmd.Flags().String("token", "", "traded asset address")
	cmd.Flags().String("staking-token", "", "staking token address (empty disables staking)")
	cmd.Flags().Uint64("fee", 3, "swap fee per mille (0-10)")
	cmd.Flags().String("mining-address", "", "mining pool address")
	cmd.Flags().String("reward-token", "", "mining reward token address")
	cmd.Flags().String("governance", "", "governance address for reward notifications")
	cmd.Flags().Uint64("mining-duration", 328_500, "mining emission period in blocks")
}

func runReplay(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadReplay(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Journal == "" {
		return fmt.Errorf("journal path is required")
	}

	engineCfg, err := parseEngineConfig(cfg.Engine)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sink := storage.EventSink(storage.NewJsonlSink(cfg.Out))
	if cfg.PgDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PgDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		sink = multiSink{sink, &pgSink{ctx: ctx, store: store}}
	}

	engine, err := replay.NewEngine(engineCfg, logger)
	if err != nil {
		return err
	}

	runner := replay.NewRunner(replay.RunConfig{
		JournalPath:       cfg.Journal,
		BatchSize:         cfg.BatchSize,
		CheckpointPath:    cfg.Checkpoint,
		CheckpointEnabled: cfg.CheckpointEnabled,
	}, engine, sink, logger)

	logger.Info("replay start",
		zap.String("journal", cfg.Journal),
		zap.Int("batch_size", cfg.BatchSize),
		zap.String("out", cfg.Out),
		zap.Bool("postgres", cfg.PgDSN != ""),
		zap.Bool("checkpoint_enabled", cfg.CheckpointEnabled),
		zap.String("checkpoint", cfg.Checkpoint),
	)

	return runner.Run(ctx)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadServe(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	engineCfg, err := parseEngineConfig(cfg.Engine)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, err := replay.NewEngine(engineCfg, logger)
	if err != nil {
		return err
	}

	if cfg.Journal != "" {
		runner := replay.NewRunner(replay.RunConfig{
			JournalPath: cfg.Journal,
			BatchSize:   1000,
		}, engine, discardSink{}, logger)
		if err := runner.Run(ctx); err != nil {
			return err
		}
	}

	server := &http.Server{
		Addr:    cfg.Listen,
		Handler: api.NewServer(engine, logger).Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving", zap.String("listen", cfg.Listen))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func parseEngineConfig(cfg config.Engine) (replay.EngineConfig, error) {
	poolAddr, err := parseAddress("pool-address", cfg.PoolAddress)
	if err != nil {
		return replay.EngineConfig{}, err
	}
	token, err := parseAddress("token", cfg.Token)
	if err != nil {
		return replay.EngineConfig{}, err
	}
	miningAddr, err := parseAddress("mining-address", cfg.MiningAddress)
	if err != nil {
		return replay.EngineConfig{}, err
	}
	rewardToken, err := parseAddress("reward-token", cfg.RewardToken)
	if err != nil {
		return replay.EngineConfig{}, err
	}

	var stakingToken common.Address
	if cfg.StakingToken != "" {
		if stakingToken, err = parseAddress("staking-token", cfg.StakingToken); err != nil {
			return replay.EngineConfig{}, err
		}
	}
	var governance common.Address
	if cfg.Governance != "" {
		if governance, err = parseAddress("governance", cfg.Governance); err != nil {
			return replay.EngineConfig{}, err
		}
	}

	if cfg.Fee > pool.MaxFee {
		return replay.EngineConfig{}, fmt.Errorf("fee must be at most %d per mille", pool.MaxFee)
	}

	return replay.EngineConfig{
		Pool: pool.Config{
			Address:      poolAddr,
			Token:        token,
			StakingToken: stakingToken,
			Fee:          cfg.Fee,
		},
		MiningAddress:  miningAddr,
		RewardToken:    rewardToken,
		Governance:     governance,
		MiningDuration: cfg.MiningDuration,
	}, nil
}

func parseAddress(name, value string) (common.Address, error) {
	if value == "" {
		return common.Address{}, fmt.Errorf("%s is required", name)
	}
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("%s is not a valid address: %s", name, value)
	}
	return common.HexToAddress(value), nil
}

// pgSink binds the command context onto the Postgres store so it satisfies
// the context-free sink interface the runner uses.
type pgSink struct {
	ctx   context.Context
	store *postgres.Store
}

func (s *pgSink) PutEventBatch(events []model.EventRecord) error {
	return s.store.PutEventBatch(s.ctx, events)
}

// multiSink fans each batch out to every sink, failing on the first error.
type multiSink []storage.EventSink

func (m multiSink) PutEventBatch(events []model.EventRecord) error {
	for _, sink := range m {
		if err := sink.PutEventBatch(events); err != nil {
			return err
		}
	}
	return nil
}

// discardSink drops events; used when replaying only to build in-memory state.
type discardSink struct{}

func (discardSink) PutEventBatch([]model.EventRecord) error { return nil }

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

package replay

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"

	"liquidityCore/internal/model"
	"liquidityCore/internal/storage"
)

// RunConfig holds runtime settings for the replay runner.
type RunConfig struct {
	JournalPath       string
	BatchSize         int
	CheckpointPath    string
	CheckpointEnabled bool
}

// Runner streams operations from a journal through the engine and writes
// the emitted events to storage.
type Runner struct {
	cfg        RunConfig
	engine     *Engine
	sink       storage.EventSink
	logger     *zap.Logger
	seen       map[uint64]struct{}
	checkpoint *CheckpointStore
}

// NewRunner builds a Runner with its dependencies.
func NewRunner(cfg RunConfig, engine *Engine, sink storage.EventSink, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:        cfg,
		engine:     engine,
		sink:       sink,
		logger:     logger,
		seen:       make(map[uint64]struct{}),
		checkpoint: NewCheckpointStore(cfg.CheckpointPath, cfg.CheckpointEnabled),
	}
}

// Run executes the replay loop.
func (r *Runner) Run(ctx context.Context) error {
	if r.engine == nil {
		return fmt.Errorf("engine is nil")
	}
	if r.sink == nil {
		return fmt.Errorf("sink is nil")
	}
	if r.cfg.BatchSize <= 0 {
		return fmt.Errorf("batch size must be greater than zero")
	}

	var resumeAfter uint64
	if r.checkpoint != nil {
		cp, ok, err := r.checkpoint.Load()
		if err != nil {
			return err
		}
		if ok {
			resumeAfter = cp.LastAppliedSequence
			r.logger.Info("resume from checkpoint", zap.Uint64("last_applied", resumeAfter))
		}
	}

	file, err := os.Open(r.cfg.JournalPath)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var applied, rejected, batched int
	var lastSequence uint64
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var op model.Operation
		if err := json.Unmarshal(line, &op); err != nil {
			return fmt.Errorf("parse operation: %w", err)
		}
		if op.Sequence <= resumeAfter || r.isDuplicate(op.Sequence) {
			continue
		}

		if err := r.engine.Apply(op); err != nil {
			r.logger.Warn("operation rejected",
				zap.Uint64("sequence", op.Sequence),
				zap.String("op", op.Op),
				zap.Error(err),
			)
			r.engine.Reject(op, err)
			rejected++
		} else {
			applied++
		}
		lastSequence = op.Sequence
		batched++

		if batched >= r.cfg.BatchSize {
			if err := r.flush(lastSequence); err != nil {
				return err
			}
			r.logger.Info("batch complete",
				zap.Int("applied", applied),
				zap.Int("rejected", rejected),
				zap.Uint64("last_sequence", lastSequence),
			)
			batched = 0
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read journal: %w", err)
	}

	if err := r.flush(lastSequence); err != nil {
		return err
	}
	r.logger.Info("replay complete",
		zap.Int("applied", applied),
		zap.Int("rejected", rejected),
		zap.Uint64("last_sequence", lastSequence),
	)
	return nil
}

func (r *Runner) flush(lastSequence uint64) error {
	events := r.engine.Journal.Drain()
	if err := r.sink.PutEventBatch(events); err != nil {
		return fmt.Errorf("store events: %w", err)
	}
	if r.checkpoint != nil && lastSequence > 0 {
		if err := r.checkpoint.Save(lastSequence); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) isDuplicate(sequence uint64) bool {
	if _, ok := r.seen[sequence]; ok {
		return true
	}
	r.seen[sequence] = struct{}{}
	return false
}

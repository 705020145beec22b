package replay

import (
	"bufio"
	"context"
	"encoding/json"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"liquidityCore/internal/model"
	"liquidityCore/internal/storage"
)

func writeJournal(t *testing.T, path string, ops []model.Operation) {
	t.Helper()
	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("create journal: %v", err)
	}
	defer file.Close()
	for _, op := range ops {
		line, err := json.Marshal(op)
		if err != nil {
			t.Fatalf("marshal op: %v", err)
		}
		if _, err := file.Write(append(line, '\n')); err != nil {
			t.Fatalf("write op: %v", err)
		}
	}
}

func readEvents(t *testing.T, path string) []model.EventRecord {
	t.Helper()
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open events: %v", err)
	}
	defer file.Close()
	var events []model.EventRecord
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var event model.EventRecord
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			t.Fatalf("parse event: %v", err)
		}
		events = append(events, event)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan events: %v", err)
	}
	return events
}

func TestRunnerEndToEnd(t *testing.T) {
	dir := t.TempDir()
	journalPath := filepath.Join(dir, "ops.jsonl")
	eventsPath := filepath.Join(dir, "events.jsonl")
	checkpointPath := filepath.Join(dir, "checkpoint.json")

	ops := []model.Operation{
		{Sequence: 1, Op: model.OpFundNative, To: poolAddr.Hex(), AmountNative: 1000},
		{Sequence: 2, Op: model.OpFundToken, Token: tokenAddr.Hex(), To: poolAddr.Hex(), Amount: "10000"},
		{Sequence: 3, Op: model.OpMint, Caller: aliceAddr.Hex()},
		// duplicated sequence must be skipped
		{Sequence: 3, Op: model.OpMint, Caller: aliceAddr.Hex()},
		// burn with no shares transferred in is rejected, not fatal
		{Sequence: 4, Op: model.OpBurn, Caller: aliceAddr.Hex()},
		{Sequence: 5, Op: model.OpTransfer, Caller: aliceAddr.Hex(), To: bobAddr.Hex(), Amount: "100"},
	}
	writeJournal(t, journalPath, ops)

	engine := newTestEngine(t)
	runner := NewRunner(RunConfig{
		JournalPath:       journalPath,
		BatchSize:         2,
		CheckpointPath:    checkpointPath,
		CheckpointEnabled: true,
	}, engine, storage.NewJsonlSink(eventsPath), nil)

	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if got := engine.Pool.Shares().BalanceOf(bobAddr); got.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("bob shares: %s", got)
	}

	events := readEvents(t, eventsPath)
	// mint emits 2 transfers + sync + mint, the failed burn emits a
	// rejection, the share transfer emits one more
	if len(events) != 6 {
		t.Fatalf("event count: %d", len(events))
	}
	var rejected int
	lastSeq := uint64(0)
	for _, event := range events {
		if event.Sequence <= lastSeq {
			t.Fatalf("sequence not increasing: %d after %d", event.Sequence, lastSeq)
		}
		lastSeq = event.Sequence
		if event.Event == model.EventRejected {
			rejected++
		}
	}
	if rejected != 1 {
		t.Fatalf("rejected events: %d", rejected)
	}

	cp, ok, err := NewCheckpointStore(checkpointPath, true).Load()
	if err != nil || !ok {
		t.Fatalf("load checkpoint: %v ok=%v", err, ok)
	}
	if cp.LastAppliedSequence != 5 {
		t.Fatalf("checkpoint sequence: %d", cp.LastAppliedSequence)
	}
}

func TestRunnerResumesFromCheckpoint(t *testing.T) {
	dir := t.TempDir()
	journalPath := filepath.Join(dir, "ops.jsonl")
	eventsPath := filepath.Join(dir, "events.jsonl")
	checkpointPath := filepath.Join(dir, "checkpoint.json")

	writeJournal(t, journalPath, []model.Operation{
		{Sequence: 1, Op: model.OpFundNative, To: poolAddr.Hex(), AmountNative: 1000},
		{Sequence: 2, Op: model.OpFundToken, Token: tokenAddr.Hex(), To: poolAddr.Hex(), Amount: "10000"},
		{Sequence: 3, Op: model.OpMint, Caller: aliceAddr.Hex()},
	})

	cfg := RunConfig{
		JournalPath:       journalPath,
		BatchSize:         10,
		CheckpointPath:    checkpointPath,
		CheckpointEnabled: true,
	}
	first := newTestEngine(t)
	if err := NewRunner(cfg, first, storage.NewJsonlSink(eventsPath), nil).Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	firstCount := len(readEvents(t, eventsPath))
	if firstCount == 0 {
		t.Fatalf("no events written")
	}

	// replaying the same journal resumes past the checkpoint and emits nothing
	second := newTestEngine(t)
	if err := NewRunner(cfg, second, storage.NewJsonlSink(eventsPath), nil).Run(context.Background()); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if got := len(readEvents(t, eventsPath)); got != firstCount {
		t.Fatalf("resume appended events: %d != %d", got, firstCount)
	}
	if got := second.Pool.Shares().TotalSupply(); got.Sign() != 0 {
		t.Fatalf("resumed engine applied skipped ops: %s", got)
	}
}

func TestRunnerValidatesConfig(t *testing.T) {
	engine := newTestEngine(t)
	runner := NewRunner(RunConfig{JournalPath: "x", BatchSize: 0}, engine, storage.NewJsonlSink("y"), nil)
	if err := runner.Run(context.Background()); err == nil {
		t.Fatalf("expected error for zero batch size")
	}
}

func TestCheckpointRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cp.json")

	disabled := NewCheckpointStore(path, false)
	if err := disabled.Save(7); err != nil {
		t.Fatalf("disabled save: %v", err)
	}
	if _, ok, err := disabled.Load(); err != nil || ok {
		t.Fatalf("disabled load: ok=%v err=%v", ok, err)
	}

	enabled := NewCheckpointStore(path, true)
	if _, ok, err := enabled.Load(); err != nil || ok {
		t.Fatalf("load before save: ok=%v err=%v", ok, err)
	}
	if err := enabled.Save(42); err != nil {
		t.Fatalf("save: %v", err)
	}
	cp, ok, err := enabled.Load()
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if cp.LastAppliedSequence != 42 {
		t.Fatalf("sequence: %d", cp.LastAppliedSequence)
	}
}

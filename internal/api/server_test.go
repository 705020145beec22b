package api

import (
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"liquidityCore/internal/model"
	"liquidityCore/internal/pool"
	"liquidityCore/internal/replay"
)

var (
	poolAddr  = common.BytesToAddress([]byte{0x10})
	tokenAddr = common.BytesToAddress([]byte{0x20})
	aliceAddr = common.BytesToAddress([]byte{1})
)

func newTestServer(t *testing.T) (*Server, *replay.Engine) {
	t.Helper()
	engine, err := replay.NewEngine(replay.EngineConfig{
		Pool: pool.Config{
			Address: poolAddr,
			Token:   tokenAddr,
			Fee:     3,
		},
		MiningAddress:  common.BytesToAddress([]byte{0x40}),
		RewardToken:    common.BytesToAddress([]byte{0x41}),
		Governance:     common.BytesToAddress([]byte{0x50}),
		MiningDuration: 100,
	}, nil)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	engine.Chain.CreditNative(poolAddr, 200_000)
	engine.Chain.CreditToken(tokenAddr, poolAddr, big.NewInt(450_000))
	if err := engine.Apply(model.Operation{Op: model.OpMint, Caller: aliceAddr.Hex()}); err != nil {
		t.Fatalf("mint: %v", err)
	}

	return NewServer(engine, nil), engine
}

func get(t *testing.T, s *Server, path string) (int, map[string]any) {
	t.Helper()
	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, path, nil)
	s.Router().ServeHTTP(recorder, request)

	var body map[string]any
	if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	return recorder.Code, body
}

func TestPoolEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	code, body := get(t, s, "/pool")
	if code != http.StatusOK {
		t.Fatalf("status: %d", code)
	}
	if body["reserve_native"] != float64(200_000) {
		t.Fatalf("reserve_native: %v", body["reserve_native"])
	}
	if body["reserve_asset"] != "450000" {
		t.Fatalf("reserve_asset: %v", body["reserve_asset"])
	}
	if body["token"] != tokenAddr.Hex() {
		t.Fatalf("token: %v", body["token"])
	}
}

func TestBalanceEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	code, body := get(t, s, "/pool/balance/"+aliceAddr.Hex())
	if code != http.StatusOK {
		t.Fatalf("status: %d", code)
	}
	// sqrt(200000*450000) - 1000
	if body["balance"] != "299000" {
		t.Fatalf("balance: %v", body["balance"])
	}

	code, _ = get(t, s, "/pool/balance/xyz")
	if code != http.StatusBadRequest {
		t.Fatalf("invalid address status: %d", code)
	}
}

func TestQuoteEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	// side names the input asset
	code, body := get(t, s, "/quote?in=17000&side=native")
	if code != http.StatusOK {
		t.Fatalf("status: %d", code)
	}
	if body["amount_out"] != "35155" {
		t.Fatalf("amount_out: %v", body["amount_out"])
	}

	code, body = get(t, s, "/quote?in=17000&side=asset")
	if code != http.StatusOK {
		t.Fatalf("status: %d", code)
	}
	if body["amount_out"] != "7259" {
		t.Fatalf("asset side amount_out: %v", body["amount_out"])
	}

	code, _ = get(t, s, "/quote?in=17000&side=sideways")
	if code != http.StatusBadRequest {
		t.Fatalf("invalid side status: %d", code)
	}
	code, _ = get(t, s, "/quote?in=-5&side=asset")
	if code != http.StatusBadRequest {
		t.Fatalf("negative amount status: %d", code)
	}
}

func TestMiningEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	code, body := get(t, s, "/mining/"+aliceAddr.Hex())
	if code != http.StatusOK {
		t.Fatalf("status: %d", code)
	}
	if body["balance"] != "0" {
		t.Fatalf("balance: %v", body["balance"])
	}
}

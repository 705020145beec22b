// Package api exposes a read-only HTTP surface over a replayed engine:
// pool state, swap quotes and reward positions. Mutations only flow
// through the operation journal.
package api

import (
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"liquidityCore/internal/pool"
	"liquidityCore/internal/replay"
)

// Server serves engine state over HTTP.
type Server struct {
	engine *replay.Engine
	logger *zap.Logger
}

func NewServer(engine *replay.Engine, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{engine: engine, logger: logger}
}

// Router builds the gin handler.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/pool", s.poolHandler)
	router.GET("/pool/balance/:address", s.balanceHandler)
	router.GET("/pool/staking/:address", s.stakingHandler)
	router.GET("/mining/:address", s.miningHandler)
	router.GET("/quote", s.quoteHandler)

	return router
}

func (s *Server) poolHandler(c *gin.Context) {
	p := s.engine.Pool
	reserveNative, reserveAsset := p.Reserves()
	c.JSON(http.StatusOK, gin.H{
		"address":        p.Address().Hex(),
		"token":          p.Token().Hex(),
		"fee":            p.Fee(),
		"reserve_native": reserveNative,
		"reserve_asset":  reserveAsset.String(),
		"k_last":         p.KLast().String(),
		"total_shares":   p.Shares().TotalSupply().String(),
		"total_staked":   p.TotalStaked().String(),
		"block":          s.engine.Chain.BlockNumber(),
	})
}

func (s *Server) balanceHandler(c *gin.Context) {
	addr, ok := s.parseAddress(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"address": addr.Hex(),
		"balance": s.engine.Pool.Shares().BalanceOf(addr).String(),
	})
}

func (s *Server) stakingHandler(c *gin.Context) {
	addr, ok := s.parseAddress(c)
	if !ok {
		return
	}
	p := s.engine.Pool
	c.JSON(http.StatusOK, gin.H{
		"address":        addr.Hex(),
		"staked_balance": p.StakedBalance(addr).String(),
		"claimable":      p.StakingRewardOf(addr).String(),
		"total_staked":   p.TotalStaked().String(),
		"reward_pool":    p.StakingRewards().String(),
	})
}

func (s *Server) miningHandler(c *gin.Context) {
	addr, ok := s.parseAddress(c)
	if !ok {
		return
	}
	m := s.engine.Mining
	c.JSON(http.StatusOK, gin.H{
		"address":          addr.Hex(),
		"balance":          m.BalanceOf(addr).String(),
		"earned":           m.Earned(addr).String(),
		"reward_rate":      m.RewardRate().String(),
		"period_end_block": m.PeriodEndBlock(),
	})
}

func (s *Server) quoteHandler(c *gin.Context) {
	amountIn, ok := new(big.Int).SetString(c.Query("in"), 10)
	if !ok || amountIn.Sign() <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount"})
		return
	}
	p := s.engine.Pool
	reserveNative, reserveAsset := p.Reserves()

	// side names the asset being paid in
	var out *big.Int
	switch c.Query("side") {
	case "native":
		out = pool.GetAmountOut(amountIn, new(big.Int).SetUint64(reserveNative), reserveAsset, p.Fee())
	case "asset":
		out = pool.GetAmountOut(amountIn, reserveAsset, new(big.Int).SetUint64(reserveNative), p.Fee())
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "side must be native or asset"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"amount_in":  amountIn.String(),
		"amount_out": out.String(),
	})
}

func (s *Server) parseAddress(c *gin.Context) (common.Address, bool) {
	input := c.Param("address")
	if !common.IsHexAddress(input) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid address"})
		return common.Address{}, false
	}
	return common.HexToAddress(input), true
}

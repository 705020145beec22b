// Package config loads runtime settings from config file, environment
// variables, and command flags, in that order of precedence.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Engine holds the deployment parameters shared by every command: the pool
// and mining contract addresses plus their immutable settings.
type Engine struct {
	PoolAddress    string
	Token          string
	StakingToken   string
	Fee            uint64
	MiningAddress  string
	RewardToken    string
	Governance     string
	MiningDuration uint64
}

func newViper(flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("ENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}
	return v, nil
}

func readConfigFile(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
		return nil
	}
	v.SetConfigName("config")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

func engineFromViper(v *viper.Viper) Engine {
	return Engine{
		PoolAddress:    v.GetString("pool-address"),
		Token:          v.GetString("token"),
		StakingToken:   v.GetString("staking-token"),
		Fee:            v.GetUint64("fee"),
		MiningAddress:  v.GetString("mining-address"),
		RewardToken:    v.GetString("reward-token"),
		Governance:     v.GetString("governance"),
		MiningDuration: v.GetUint64("mining-duration"),
	}
}

func setEngineDefaults(v *viper.Viper) {
	v.SetDefault("fee", uint64(3))
	// roughly one year of blocks at the original chain cadence
	v.SetDefault("mining-duration", uint64(328_500))
}

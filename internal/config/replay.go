package config

import "github.com/spf13/pflag"

// Replay holds configuration for the replay command.
type Replay struct {
	Engine            Engine
	Journal           string
	BatchSize         int
	Out               string
	PgDSN             string
	Checkpoint        string
	CheckpointEnabled bool
	LogLevel          string
}

// LoadReplay merges config file, environment variables, and flags.
func LoadReplay(cfgFile string, flags *pflag.FlagSet) (Replay, error) {
	v, err := newViper(flags)
	if err != nil {
		return Replay{}, err
	}

	setEngineDefaults(v)
	v.SetDefault("batch-size", 1000)
	v.SetDefault("out", "./data/events.jsonl")
	v.SetDefault("checkpoint", "./data/checkpoint.json")
	v.SetDefault("checkpoint-enabled", true)
	v.SetDefault("log-level", "info")

	if err := readConfigFile(v, cfgFile); err != nil {
		return Replay{}, err
	}

	cfg := Replay{
		Engine:            engineFromViper(v),
		Journal:           v.GetString("journal"),
		BatchSize:         v.GetInt("batch-size"),
		Out:               v.GetString("out"),
		PgDSN:             v.GetString("pg-dsn"),
		Checkpoint:        v.GetString("checkpoint"),
		CheckpointEnabled: v.GetBool("checkpoint-enabled"),
		LogLevel:          v.GetString("log-level"),
	}

	return cfg, nil
}

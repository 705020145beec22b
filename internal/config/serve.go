package config

import "github.com/spf13/pflag"

// Serve holds configuration for the serve command.
type Serve struct {
	Engine   Engine
	Journal  string
	Listen   string
	LogLevel string
}

// LoadServe merges config file, environment variables, and flags.
func LoadServe(cfgFile string, flags *pflag.FlagSet) (Serve, error) {
	v, err := newViper(flags)
	if err != nil {
		return Serve{}, err
	}

	setEngineDefaults(v)
	v.SetDefault("listen", ":8080")
	v.SetDefault("log-level", "info")

	if err := readConfigFile(v, cfgFile); err != nil {
		return Serve{}, err
	}

	cfg := Serve{
		Engine:   engineFromViper(v),
		Journal:  v.GetString("journal"),
		Listen:   v.GetString("listen"),
		LogLevel: v.GetString("log-level"),
	}

	return cfg, nil
}

package config

import (
	"flag"
	"net"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Flags holds parsed command-line flag values and which were set.
type Flags struct {
	Addr   string
	DB     string
	Config string
	Set    map[string]bool
}

// EffectiveConfig is the merged view of file, environment and flags that
// the rest of the server consumes.
type EffectiveConfig struct {
	Config *Config
	Addr   string
	DBPath string
	Source string // "flags", "env", or "config"
}

// ParseCommandFlags parses command-line flags and records which were
// explicitly set, so flags can win over file and env values.
func ParseCommandFlags() Flags {
	addrPtr := flag.String("addr", ":8080", "HTTP listen address")
	dbPtr := flag.String("db", "./.database", "Pebble DB path")
	cfgPtr := flag.String("config", "./config.yaml", "Path to config file")
	flag.Parse()
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return Flags{Addr: *addrPtr, DB: *dbPtr, Config: *cfgPtr, Set: set}
}

// ResolveConfigPath picks the config file path: an explicit flag wins,
// then CROPTALK_CONFIG, then the flag default.
func ResolveConfigPath(flagVal string, flagSet bool) string {
	if flagSet {
		return flagVal
	}
	if v := os.Getenv("CROPTALK_CONFIG"); v != "" {
		return v
	}
	return flagVal
}

// Load reads and parses a YAML config file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv overlays CROPTALK_* environment variables onto cfg and reports
// whether any were present.
func applyEnv(cfg *Config) bool {
	used := false
	if v := os.Getenv("CROPTALK_SERVER_ADDR"); v != "" {
		used = true
		if h, p, err := net.SplitHostPort(v); err == nil {
			cfg.Server.Address = h
			if pi, err := strconv.Atoi(p); err == nil {
				cfg.Server.Port = pi
			}
		} else {
			cfg.Server.Address = v
		}
	}
	if v := os.Getenv("CROPTALK_DB_PATH"); v != "" {
		used = true
		cfg.Server.DBPath = v
	}
	if v := os.Getenv("CROPTALK_LOG_LEVEL"); v != "" {
		used = true
		cfg.Logging.Level = v
	}
	if v := os.Getenv("CROPTALK_RECONCILE_CRON"); v != "" {
		used = true
		cfg.Reconcile.Cron = v
	}
	return used
}

// LoadEffective merges config file, environment and flags in ascending
// precedence and returns the effective configuration. A missing config
// file is not an error; the file is simply skipped.
func LoadEffective(flags Flags) (EffectiveConfig, error) {
	var eff EffectiveConfig
	cfgPath := ResolveConfigPath(flags.Config, flags.Set["config"])

	cfg, err := Load(cfgPath)
	source := "config"
	if err != nil {
		if !os.IsNotExist(err) {
			return eff, err
		}
		cfg = &Config{}
		source = "env"
	}
	if applyEnv(cfg) && source == "config" {
		source = "env"
	}

	addr := cfg.Addr()
	if cfg.Server.Address == "" && cfg.Server.Port == 0 {
		addr = flags.Addr
	}
	if flags.Set["addr"] {
		addr = flags.Addr
		source = "flags"
	}

	dbPath := cfg.Server.DBPath
	if dbPath == "" {
		dbPath = flags.DB
	}
	if flags.Set["db"] {
		dbPath = flags.DB
		source = "flags"
	}

	eff.Config = cfg
	eff.Addr = addr
	eff.DBPath = dbPath
	eff.Source = source
	return eff, nil
}

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/trainer/challenge"
	"github.com/rustyeddy/trainer/journal"
	"github.com/rustyeddy/trainer/market"
	"github.com/rustyeddy/trainer/risk"
	"github.com/rustyeddy/trainer/session"
	"github.com/rustyeddy/trainer/sim"
)

// EnvPrefix prefixes every environment override, e.g. TRAINER_START_PRICE.
const EnvPrefix = "TRAINER"

// Config represents the complete trainer configuration
type Config struct {
	Account    AccountConfig     `json:"account" yaml:"account"`
	Simulation SimulationConfig  `json:"simulation" yaml:"simulation"`
	Journal    JournalConfig     `json:"journal" yaml:"journal"`
	Metrics    MetricsConfig     `json:"metrics" yaml:"metrics"`
	Phases     []challenge.Phase `json:"phases,omitempty" yaml:"phases,omitempty"`
}

// AccountConfig contains the order defaults the session starts with
type AccountConfig struct {
	Contract     string  `json:"contract" yaml:"contract"` // "micro" or "mini"
	LotSize      int     `json:"lot_size" yaml:"lot_size"`
	StopOffset   float64 `json:"stop_offset" yaml:"stop_offset"`
	TargetOffset float64 `json:"target_offset" yaml:"target_offset"`
	StartPhase   string  `json:"start_phase,omitempty" yaml:"start_phase,omitempty"`
}

// SimulationConfig contains price feed and tick loop parameters
type SimulationConfig struct {
	StartPrice     float64 `json:"start_price" yaml:"start_price"`
	Step           float64 `json:"step" yaml:"step"`
	Seed           int64   `json:"seed" yaml:"seed"`
	TickInterval   string  `json:"tick_interval" yaml:"tick_interval"` // e.g. "100ms"
	CandleBucket   string  `json:"candle_bucket" yaml:"candle_bucket"` // e.g. "1s"
	CandleCapacity int     `json:"candle_capacity" yaml:"candle_capacity"`
	HistoryBars    int     `json:"history_bars" yaml:"history_bars"`
	DebounceTicks  int     `json:"debounce_ticks" yaml:"debounce_ticks"`
	Ticks          int     `json:"ticks,omitempty" yaml:"ticks,omitempty"` // 0 runs until stopped
	ReplayFile     string  `json:"replay_file,omitempty" yaml:"replay_file,omitempty"`
}

// ParseTickInterval converts the interval string to time.Duration
func (s SimulationConfig) ParseTickInterval() (time.Duration, error) {
	return parseDuration(s.TickInterval)
}

// ParseCandleBucket converts the bucket string to time.Duration
func (s SimulationConfig) ParseCandleBucket() (time.Duration, error) {
	return parseDuration(s.CandleBucket)
}

func parseDuration(v string) (time.Duration, error) {
	if v == "" {
		return 0, nil
	}
	return time.ParseDuration(v)
}

// JournalConfig contains journaling parameters
type JournalConfig struct {
	Type       string `json:"type" yaml:"type"` // "none", "csv" or "sqlite"
	TradesFile string `json:"trades_file,omitempty" yaml:"trades_file,omitempty"`
	EquityFile string `json:"equity_file,omitempty" yaml:"equity_file,omitempty"`
	EventsFile string `json:"events_file,omitempty" yaml:"events_file,omitempty"`
	DBPath     string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

// MetricsConfig controls the Prometheus endpoint. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty"`
}

// LoadFromFile loads configuration from a file (YAML or JSON). Fields the
// file leaves out keep their defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		cfg = Default()
		err = json.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SaveToFile saves configuration to a file (JSON or YAML based on extension)
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// env lists the settings that can be overridden from the environment.
type env struct {
	Contract     string  `envconfig:"CONTRACT"`
	LotSize      int     `envconfig:"LOT_SIZE"`
	StopOffset   float64 `envconfig:"STOP_OFFSET"`
	TargetOffset float64 `envconfig:"TARGET_OFFSET"`
	StartPhase   string  `envconfig:"START_PHASE"`

	StartPrice    float64 `envconfig:"START_PRICE"`
	Step          float64 `envconfig:"STEP"`
	Seed          int64   `envconfig:"SEED"`
	TickInterval  string  `envconfig:"TICK_INTERVAL"`
	DebounceTicks int     `envconfig:"DEBOUNCE_TICKS"`
	Ticks         int     `envconfig:"TICKS"`
	ReplayFile    string  `envconfig:"REPLAY_FILE"`

	JournalType string `envconfig:"JOURNAL_TYPE"`
	DBPath      string `envconfig:"DB_PATH"`
	MetricsAddr string `envconfig:"METRICS_ADDR"`
}

// LoadDotEnv reads KEY=VALUE files into the process environment without
// overriding variables that are already set. With no paths it reads ./.env
// when one exists.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		if _, err := os.Stat(".env"); errors.Is(err, fs.ErrNotExist) {
			return nil
		}
	}
	if err := godotenv.Load(paths...); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

// ApplyEnv overrides c with any TRAINER_* variables that are set.
func (c *Config) ApplyEnv() error {
	e := env{
		Contract:      c.Account.Contract,
		LotSize:       c.Account.LotSize,
		StopOffset:    c.Account.StopOffset,
		TargetOffset:  c.Account.TargetOffset,
		StartPhase:    c.Account.StartPhase,
		StartPrice:    c.Simulation.StartPrice,
		Step:          c.Simulation.Step,
		Seed:          c.Simulation.Seed,
		TickInterval:  c.Simulation.TickInterval,
		DebounceTicks: c.Simulation.DebounceTicks,
		Ticks:         c.Simulation.Ticks,
		ReplayFile:    c.Simulation.ReplayFile,
		JournalType:   c.Journal.Type,
		DBPath:        c.Journal.DBPath,
		MetricsAddr:   c.Metrics.Addr,
	}
	if err := envconfig.Process(EnvPrefix, &e); err != nil {
		return fmt.Errorf("process env config: %w", err)
	}

	c.Account.Contract = e.Contract
	c.Account.LotSize = e.LotSize
	c.Account.StopOffset = e.StopOffset
	c.Account.TargetOffset = e.TargetOffset
	c.Account.StartPhase = e.StartPhase
	c.Simulation.StartPrice = e.StartPrice
	c.Simulation.Step = e.Step
	c.Simulation.Seed = e.Seed
	c.Simulation.TickInterval = e.TickInterval
	c.Simulation.DebounceTicks = e.DebounceTicks
	c.Simulation.Ticks = e.Ticks
	c.Simulation.ReplayFile = e.ReplayFile
	c.Journal.Type = e.JournalType
	c.Journal.DBPath = e.DBPath
	c.Metrics.Addr = e.MetricsAddr
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if _, err := sim.ParseContractClass(c.Account.Contract); err != nil {
		return fmt.Errorf("account.contract: %w", err)
	}
	if err := risk.CheckLotSize(c.Account.LotSize, 0); err != nil {
		return fmt.Errorf("account.lot_size: %w", err)
	}
	if c.Account.StopOffset <= 0 {
		return fmt.Errorf("account.stop_offset must be positive")
	}
	if c.Account.TargetOffset <= 0 {
		return fmt.Errorf("account.target_offset must be positive")
	}

	table := challenge.DefaultTable()
	if len(c.Phases) > 0 {
		var err error
		if table, err = challenge.NewTable(c.Phases); err != nil {
			return fmt.Errorf("phases: %w", err)
		}
	}
	if c.Account.StartPhase != "" {
		if _, ok := table.Get(c.Account.StartPhase); !ok {
			return fmt.Errorf("account.start_phase: unknown phase %q", c.Account.StartPhase)
		}
	}

	s := c.Simulation
	if s.StartPrice <= 0 {
		return fmt.Errorf("simulation.start_price must be positive")
	}
	if s.Step <= 0 {
		return fmt.Errorf("simulation.step must be positive")
	}
	if d, err := s.ParseTickInterval(); err != nil || d < 0 {
		return fmt.Errorf("simulation.tick_interval: invalid duration %q", s.TickInterval)
	}
	if d, err := s.ParseCandleBucket(); err != nil || d < 0 {
		return fmt.Errorf("simulation.candle_bucket: invalid duration %q", s.CandleBucket)
	}
	if s.CandleCapacity < 0 || s.HistoryBars < 0 || s.DebounceTicks < 0 || s.Ticks < 0 {
		return fmt.Errorf("simulation counts can't be negative")
	}

	switch c.Journal.Type {
	case "", journal.TypeNone:
	case journal.TypeCSV:
		if c.Journal.TradesFile == "" || c.Journal.EquityFile == "" {
			return fmt.Errorf("journal trades_file and equity_file required for CSV type")
		}
	case journal.TypeSQLite:
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal db_path required for SQLite type")
		}
	default:
		return fmt.Errorf("journal.type must be 'none', 'csv' or 'sqlite'")
	}
	return nil
}

// Session converts the file settings into a session configuration.
// Validate first; Session does not re-check.
func (c *Config) Session() session.Config {
	sc := session.DefaultConfig()
	sc.Phases = c.Phases
	sc.StartPhase = c.Account.StartPhase
	sc.Contract, _ = sim.ParseContractClass(c.Account.Contract)
	sc.LotSize = c.Account.LotSize
	sc.StopOffset = c.Account.StopOffset
	sc.TargetOffset = c.Account.TargetOffset
	sc.StartPrice = c.Simulation.StartPrice
	sc.HistoryBars = c.Simulation.HistoryBars
	sc.CandleBucket, _ = c.Simulation.ParseCandleBucket()
	sc.CandleCapacity = c.Simulation.CandleCapacity
	sc.DebounceTicks = c.Simulation.DebounceTicks
	sc.Seed = c.Simulation.Seed
	return sc
}

func (c *Config) JournalOptions() journal.Options {
	return journal.Options{
		Type:       c.Journal.Type,
		TradesFile: c.Journal.TradesFile,
		EquityFile: c.Journal.EquityFile,
		EventsFile: c.Journal.EventsFile,
		DBPath:     c.Journal.DBPath,
	}
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	def := session.DefaultConfig()
	return &Config{
		Account: AccountConfig{
			Contract:     string(def.Contract),
			LotSize:      def.LotSize,
			StopOffset:   def.StopOffset,
			TargetOffset: def.TargetOffset,
		},
		Simulation: SimulationConfig{
			StartPrice:     market.DefaultStartPrice,
			Step:           market.DefaultStep,
			Seed:           def.Seed,
			TickInterval:   "100ms",
			CandleBucket:   def.CandleBucket.String(),
			CandleCapacity: def.CandleCapacity,
			HistoryBars:    def.HistoryBars,
			DebounceTicks:  def.DebounceTicks,
		},
		Journal: JournalConfig{
			Type: journal.TypeNone,
		},
	}
}

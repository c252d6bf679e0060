package config

import (
	"fmt"

	"gopkg.in/ini.v1"
)

// Config holds the confirmation-height processor's tunables.
type Config struct {
	// BatchWriteSize bounds both the number of accounts touched per
	// write transaction and the update-buffer flush threshold.
	BatchWriteSize int `ini:"batch_write_size"`
	// BatchReadSize is the number of predecessor-chain steps walked
	// between read-transaction renewals inside collect().
	BatchReadSize int `ini:"batch_read_size"`
	// OversizedChainLogThreshold is the walk length above which
	// collect() logs a one-time warning for that call.
	OversizedChainLogThreshold uint64 `ini:"oversized_chain_log_threshold"`
}

// Defaults mirrors the source implementation's defaults: a few
// thousand accounts/blocks per batch, and a 20,000-block oversized
// chain warning threshold.
func Defaults() Config {
	return Config{
		BatchWriteSize:             2048,
		BatchReadSize:              4096,
		OversizedChainLogThreshold: 20000,
	}
}

func (c Config) Validate() error {
	if c.BatchWriteSize <= 0 {
		return fmt.Errorf("batch_write_size must be positive, got %d", c.BatchWriteSize)
	}
	if c.BatchReadSize <= 0 {
		return fmt.Errorf("batch_read_size must be positive, got %d", c.BatchReadSize)
	}
	return nil
}

// Load reads the [confirmation_height] section of an .ini file.
// Missing keys keep their Defaults() value.
func Load(path string) (Config, error) {
	cfg := Defaults()
	file, err := ini.Load(path)
	if err != nil {
		return Config{}, err
	}
	section := file.Section("confirmation_height")
	if err := section.MapTo(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

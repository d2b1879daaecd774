package tss

import (
	"fmt"
)

const (
	DefaultKeySet  = "default"
	DefaultParties = 3
)

// Config is the configuration of one key-set's orchestrator.
type Config struct {
	// KeySet identifies the key-set inside the checkpoint store.
	KeySet string
	// Parties is the number of simulated participants (N).
	Parties int
	// Threshold is the number of participants that must contribute to a
	// signature (t). Keygen and AuxInfo always involve all N.
	Threshold int
}

func DefaultConfig() Config {
	return Config{
		KeySet:    DefaultKeySet,
		Parties:   DefaultParties,
		Threshold: DefaultParties,
	}
}

func (c Config) Validate() error {
	if c.KeySet == "" {
		return fmt.Errorf("key-set id must not be empty")
	}
	if c.Parties < 2 {
		return fmt.Errorf("at least 2 participants are required, got %d", c.Parties)
	}
	if c.Threshold < 1 || c.Threshold > c.Parties {
		return fmt.Errorf("threshold must be in [1, %d], got %d", c.Parties, c.Threshold)
	}
	return nil
}

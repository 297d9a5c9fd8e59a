// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/blinklabs-io/daonode/ledger"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type ctxKey string

const configContextKey ctxKey = "daonode.config"

const (
	DefaultShutdownTimeout  = "30s"
	DefaultBroadcastTimeout = "8s"
	DefaultPollInterval     = "10s"
	DefaultNetwork          = "mainnet"
	// One block every 10 minutes
	DefaultBlocksPerYear    = 52_560
	DefaultSnapshotInterval = 20
)

var ErrUnknownNetwork = errors.New("unknown network")

func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configContextKey, cfg)
}

func FromContext(ctx context.Context) *Config {
	cfg, ok := ctx.Value(configContextKey).(*Config)
	if !ok {
		return nil
	}
	return cfg
}

// NetworkGenesis holds the genesis defaults of a named network. An empty
// TxId means the genesis transaction must be configured explicitly.
type NetworkGenesis struct {
	TxId        string
	Height      uint64
	TotalSupply uint64
}

var networks = map[string]NetworkGenesis{
	"mainnet": {
		TxId:        "4b5417ec5ab6112bedf539c3b4f5a806ed539542d8b717e1c4470aa3180edce5",
		Height:      571747,
		TotalSupply: 250_000_000,
	},
	"testnet": {
		TotalSupply: 250_000_000,
	},
	"regtest": {
		Height:      111,
		TotalSupply: 250_000_000,
	},
}

type Config struct {
	DatabasePath       string `yaml:"databasePath"       split_words:"true"`
	BlocksDir          string `yaml:"blocksDir"          split_words:"true"`
	SnapshotUrl        string `yaml:"snapshotUrl"        split_words:"true"`
	CredentialsFile    string `yaml:"credentialsFile"    split_words:"true"`
	BindAddr           string `yaml:"bindAddr"           split_words:"true"`
	Network            string `yaml:"network"`
	GenesisTxId        string `yaml:"genesisTxId"        envconfig:"GENESIS_TX_ID"`
	BroadcastTimeout   string `yaml:"broadcastTimeout"   split_words:"true"`
	PollInterval       string `yaml:"pollInterval"       split_words:"true"`
	ShutdownTimeout    string `yaml:"shutdownTimeout"    split_words:"true"`
	GenesisHeight      uint64 `yaml:"genesisHeight"      split_words:"true"`
	GenesisTotalSupply uint64 `yaml:"genesisTotalSupply" split_words:"true"`
	BlocksPerYear      uint64 `yaml:"blocksPerYear"      split_words:"true"`
	SnapshotInterval   uint64 `yaml:"snapshotInterval"   split_words:"true"`
	MetricsPort        uint   `yaml:"metricsPort"        split_words:"true"`
	Tracing            bool   `yaml:"tracing"`
	TracingStdout      bool   `yaml:"tracingStdout"      split_words:"true"`
}

func defaultConfig() *Config {
	return &Config{
		DatabasePath:     ".daonode",
		BlocksDir:        "blocks",
		BindAddr:         "0.0.0.0",
		Network:          DefaultNetwork,
		BroadcastTimeout: DefaultBroadcastTimeout,
		PollInterval:     DefaultPollInterval,
		ShutdownTimeout:  DefaultShutdownTimeout,
		BlocksPerYear:    DefaultBlocksPerYear,
		SnapshotInterval: DefaultSnapshotInterval,
		MetricsPort:      12800,
	}
}

// LoadConfig builds the config from the defaults, the YAML config file and
// DAONODE_* environment variables, in that order
func LoadConfig(configFile string) (*Config, error) {
	cfg := defaultConfig()
	// Load config file as YAML if provided
	if configFile == "" {
		configFile = findConfigFile()
	}
	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := yaml.Unmarshal(buf, cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}
	// Process environment variables
	if err := envconfig.Process("daonode", cfg); err != nil {
		return nil, fmt.Errorf("error processing environment: %w", err)
	}
	if err := cfg.applyNetwork(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// findConfigFile checks ~/.daonode/daonode.yaml and then
// /etc/daonode/daonode.yaml
func findConfigFile() string {
	if homeDir, err := os.UserHomeDir(); err == nil {
		userPath := filepath.Join(homeDir, ".daonode", "daonode.yaml")
		if _, err := os.Stat(userPath); err == nil {
			return userPath
		}
	}
	systemPath := "/etc/daonode/daonode.yaml"
	if _, err := os.Stat(systemPath); err == nil {
		return systemPath
	}
	return ""
}

// applyNetwork fills unset genesis values from the named network
func (c *Config) applyNetwork() error {
	network, ok := networks[c.Network]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownNetwork, c.Network)
	}
	if c.GenesisTxId == "" {
		c.GenesisTxId = network.TxId
	}
	if c.GenesisHeight == 0 {
		c.GenesisHeight = network.Height
	}
	if c.GenesisTotalSupply == 0 {
		c.GenesisTotalSupply = network.TotalSupply
	}
	return nil
}

func (c *Config) validate() error {
	if c.GenesisTxId == "" {
		return fmt.Errorf(
			"no genesis transaction id configured for network %s",
			c.Network,
		)
	}
	for name, value := range map[string]string{
		"broadcastTimeout": c.BroadcastTimeout,
		"pollInterval":     c.PollInterval,
		"shutdownTimeout":  c.ShutdownTimeout,
	} {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, value, err)
		}
	}
	if c.SnapshotInterval == 0 {
		return errors.New("snapshotInterval must be greater than zero")
	}
	return nil
}

func (c *Config) Genesis() ledger.Genesis {
	return ledger.Genesis{
		TxId:        c.GenesisTxId,
		Height:      c.GenesisHeight,
		TotalSupply: c.GenesisTotalSupply,
	}
}

// Durations were checked when loading, so parse errors yield zero which the
// node replaces with its defaults

func (c *Config) BroadcastTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.BroadcastTimeout)
	return d
}

func (c *Config) PollIntervalDuration() time.Duration {
	d, _ := time.ParseDuration(c.PollInterval)
	return d
}

func (c *Config) ShutdownTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ShutdownTimeout)
	return d
}

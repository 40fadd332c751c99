// Package config loads the optional YAML settings file shared by the CLI
// and the server.
package config

import (
	"os"
	"time"

	"github.com/jsphweid/mmlcore/constants"
	"github.com/jsphweid/mmlcore/optimizer"
	"github.com/jsphweid/mmlcore/ticktable"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type DynamoConfig struct {
	Endpoint string `yaml:"endpoint"`
	Region   string `yaml:"region"`
	Table    string `yaml:"table"`
}

type Config struct {
	// TickTable is a token=tick file; empty uses the built-in table.
	TickTable      string       `yaml:"tickTable"`
	Generation     int          `yaml:"generation"`
	Addr           string       `yaml:"addr"`
	DebounceMillis int          `yaml:"debounceMillis"`
	Dynamo         DynamoConfig `yaml:"dynamo"`
}

func DefaultConfig() *Config {
	return &Config{
		Generation:     int(optimizer.Gen2),
		Addr:           constants.DefaultAddr,
		DebounceMillis: 300,
		Dynamo: DynamoConfig{
			Region: constants.DefaultDynamoRegion,
			Table:  constants.DefaultDynamoTable,
		},
	}
}

// Load reads path over the defaults, then applies environment overrides.
// An empty path or a missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, errors.Wrap(err, "reading config")
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, errors.Wrapf(err, "parsing config %s", path)
			}
		}
	}
	cfg.applyEnv()
	if _, err := cfg.GenerationValue(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if p := constants.GetTickTablePath(); p != "" {
		c.TickTable = p
	}
	if a := constants.GetAddr(); a != constants.DefaultAddr {
		c.Addr = a
	}
	if e := constants.GetDynamoEndpoint(); e != "" {
		c.Dynamo.Endpoint = e
	}
	if r := constants.GetDynamoRegion(); r != constants.DefaultDynamoRegion {
		c.Dynamo.Region = r
	}
	if t := constants.GetDynamoTable(); t != constants.DefaultDynamoTable {
		c.Dynamo.Table = t
	}
}

func (c *Config) GenerationValue() (optimizer.Generation, error) {
	g := optimizer.Generation(c.Generation)
	if g < optimizer.Gen1 || g > optimizer.Gen3 {
		return 0, errors.Errorf("config: generation %d out of range", c.Generation)
	}
	return g, nil
}

func (c *Config) Debounce() time.Duration {
	return time.Duration(c.DebounceMillis) * time.Millisecond
}

// Table loads the configured tick table.
func (c *Config) Table() (*ticktable.Table, error) {
	if c.TickTable == "" {
		return ticktable.Default(), nil
	}
	f, err := os.Open(c.TickTable)
	if err != nil {
		return nil, errors.Wrap(err, "opening tick table")
	}
	defer f.Close()
	return ticktable.Load(f)
}

func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "encoding config")
	}
	return errors.Wrap(os.WriteFile(path, data, 0644), "writing config")
}

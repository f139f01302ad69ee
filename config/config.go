package config

import (
	"strings"

	"github.com/cyverse-de/configurate"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// ReadErrorPolicy decides what a failed member-list read turns into.
type ReadErrorPolicy string

const (
	// ReadErrorsAsEmpty records the group with zero members, as if it were empty.
	ReadErrorsAsEmpty ReadErrorPolicy = "empty"
	// ReadErrorsFail still records the group but reports the failure to the caller.
	ReadErrorsFail ReadErrorPolicy = "fail"
)

type Config struct {
	DatabricksHost  string
	DatabricksToken string

	SnapshotConcurrency int
	SnapshotReadErrors  ReadErrorPolicy

	AMQPURI          string
	AMQPExchangeName string
	AMQPExchangeType string
	AMQPQueuePrefix  string
}

// Load reads the optional dotenv file and the optional YAML config file, then
// overlays DATABRICKS_HOST and DATABRICKS_TOKEN from the environment.
func Load(cfgPath, envPath string) (*viper.Viper, error) {
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil {
			return nil, errors.Wrapf(err, "Failed loading env file %s", envPath)
		}
	}

	var (
		cfg *viper.Viper
		err error
	)
	if cfgPath != "" {
		if cfg, err = configurate.Init(cfgPath); err != nil {
			return nil, errors.Wrapf(err, "Failed loading config %s", cfgPath)
		}
	} else {
		cfg = viper.New()
	}

	if err = cfg.BindEnv("databricks.host", "DATABRICKS_HOST"); err != nil {
		return nil, err
	}
	if err = cfg.BindEnv("databricks.token", "DATABRICKS_TOKEN"); err != nil {
		return nil, err
	}

	cfg.SetDefault("snapshot.concurrency", 1)
	cfg.SetDefault("snapshot.read_errors", string(ReadErrorsAsEmpty))
	cfg.SetDefault("amqp.exchange.type", "topic")

	return cfg, nil
}

func NewFromViper(cfg *viper.Viper) (*Config, error) {
	c := &Config{
		DatabricksHost:  cfg.GetString("databricks.host"),
		DatabricksToken: cfg.GetString("databricks.token"),

		SnapshotConcurrency: cfg.GetInt("snapshot.concurrency"),
		SnapshotReadErrors:  ReadErrorPolicy(strings.ToLower(cfg.GetString("snapshot.read_errors"))),

		AMQPURI:          cfg.GetString("amqp.uri"),
		AMQPExchangeName: cfg.GetString("amqp.exchange.name"),
		AMQPExchangeType: cfg.GetString("amqp.exchange.type"),
		AMQPQueuePrefix:  cfg.GetString("amqp.queue_prefix"),
	}

	err := c.Validate()
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	var errorkeys []string

	if c.DatabricksHost == "" {
		errorkeys = append(errorkeys, "databricks.host")
	}
	if c.DatabricksToken == "" {
		errorkeys = append(errorkeys, "databricks.token")
	}

	if len(errorkeys) > 0 {
		return errors.Errorf("Configuration keys must be set: %s", strings.Join(errorkeys, ", "))
	}

	if c.SnapshotConcurrency < 1 {
		return errors.Errorf("snapshot.concurrency must be at least 1, got %d", c.SnapshotConcurrency)
	}

	switch c.SnapshotReadErrors {
	case ReadErrorsAsEmpty, ReadErrorsFail:
	default:
		return errors.Errorf("snapshot.read_errors must be %q or %q, got %q", ReadErrorsAsEmpty, ReadErrorsFail, c.SnapshotReadErrors)
	}

	return nil
}

// ValidateAMQP is only needed by the listen command.
func (c *Config) ValidateAMQP() error {
	var errorkeys []string

	if c.AMQPURI == "" {
		errorkeys = append(errorkeys, "amqp.uri")
	}
	if c.AMQPExchangeName == "" {
		errorkeys = append(errorkeys, "amqp.exchange.name")
	}
	if c.AMQPExchangeType == "" {
		errorkeys = append(errorkeys, "amqp.exchange.type")
	}
	// AMQPQueuePrefix can be the empty string (usually will be, probably)

	if len(errorkeys) > 0 {
		return errors.Errorf("Configuration keys must be set: %s", strings.Join(errorkeys, ", "))
	}
	return nil
}

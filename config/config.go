package config

import (
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"kpiload/logger"
)

// EnvPrefix prefixes every environment override, e.g. KPILOAD_DATABASE_DSN.
const EnvPrefix = "KPILOAD"

const DefaultPath = "./config.yaml"

type Config struct {
	Database struct {
		Driver          string `yaml:"driver"` // postgres, mysql or sqlite
		DSN             string `yaml:"DSN"`
		CreateBatchSize int    `yaml:"createBatchSize" split_words:"true"`
		ConflictPolicy  string `yaml:"conflictPolicy" split_words:"true"` // ignore-row or skip-chunk
	} `yaml:"database"`
	Input struct {
		Customers      string `yaml:"customers"`
		Orders         string `yaml:"orders"`
		SourceTimezone string `yaml:"sourceTimezone" split_words:"true"`
	} `yaml:"input"`
	KPI struct {
		Timezone    string `yaml:"timezone"`
		Granularity string `yaml:"granularity"`
		WindowDays  int    `yaml:"windowDays" split_words:"true"`
		TopLimit    int    `yaml:"topLimit" split_words:"true"`
		MaskPII     bool   `yaml:"maskPII" envconfig:"MASK_PII"`
	} `yaml:"kpi"`
	Output struct {
		Dir string `yaml:"dir"`
	} `yaml:"output"`
	Kafka struct {
		Brokers         []string `yaml:"brokers"`
		Topic           string   `yaml:"topic"`
		WriteTimeOutSec int      `yaml:"writeTimeOutSec" split_words:"true"`
		MsgBatchSize    int      `yaml:"msgBatchSize" split_words:"true"`
	} `yaml:"kafka"`
	Dumps struct {
		DumpDir     string `yaml:"dumpDir" split_words:"true"`
		MaxDumpSize int    `yaml:"maxDumpSize" split_words:"true"` // in megabytes
		MaxBufSize  int    `yaml:"maxBufSize" split_words:"true"`
	} `yaml:"dumps"`
	Logging struct {
		LogPath  string `yaml:"logPath" split_words:"true"`
		LogLevel string `yaml:"logLevel" split_words:"true"` // possible options are: trace, debug, info, warn, error, fatal, panic
	} `yaml:"logging"`
}

func Default() Config {
	var conf Config
	conf.Database.Driver = "postgres"
	conf.Database.DSN = "host=localhost user=kpiload password=kpiload dbname=kpiload port=5432 sslmode=disable TimeZone=UTC"
	conf.Database.CreateBatchSize = 1000
	conf.Database.ConflictPolicy = "ignore-row"
	conf.Input.Customers = "task_DE_new_customers.csv"
	conf.Input.Orders = "task_DE_new_orders.xml"
	conf.Input.SourceTimezone = "Asia/Kolkata"
	conf.KPI.Timezone = "Asia/Kolkata"
	conf.KPI.Granularity = "header"
	conf.KPI.WindowDays = 30
	conf.KPI.TopLimit = 10
	conf.KPI.MaskPII = true
	conf.Output.Dir = "outputs"
	conf.Kafka.Topic = "kpis"
	conf.Kafka.WriteTimeOutSec = 10
	conf.Kafka.MsgBatchSize = 100
	conf.Dumps.DumpDir = "dumps"
	conf.Dumps.MaxDumpSize = 64
	conf.Dumps.MaxBufSize = 10000
	conf.Logging.LogLevel = "info"
	return conf
}

func ValidateConfig(conf Config) error {
	switch conf.Database.Driver {
	case "postgres", "mysql", "sqlite":
	default:
		return errors.Errorf("wrong database driver %q: must be postgres, mysql or sqlite", conf.Database.Driver)
	}
	if conf.Database.CreateBatchSize <= 0 {
		return errors.New("wrong value for database creation batch size: must be >0")
	}
	switch conf.Database.ConflictPolicy {
	case "ignore-row", "skip-chunk":
	default:
		return errors.Errorf("wrong conflict policy %q: must be ignore-row or skip-chunk", conf.Database.ConflictPolicy)
	}
	switch conf.KPI.Granularity {
	case "header", "line":
	default:
		return errors.Errorf("wrong order granularity %q: must be header or line", conf.KPI.Granularity)
	}
	if conf.KPI.WindowDays < 0 {
		return errors.New("wrong value for date window: must be >=0 days")
	}
	if conf.KPI.TopLimit < 0 {
		return errors.New("wrong value for top limit: must be >=0")
	}
	for _, tz := range []string{conf.KPI.Timezone, conf.Input.SourceTimezone} {
		if _, err := time.LoadLocation(tz); err != nil {
			return errors.Wrapf(err, "unknown timezone %q", tz)
		}
		// Local names no zone the database can convert to.
		if tz == "Local" {
			return errors.New("timezone must be an IANA name or UTC, not Local")
		}
	}
	if len(conf.Kafka.Brokers) > 0 {
		if conf.Kafka.Topic == "" {
			return errors.New("kafka topic is required when brokers are set")
		}
		if conf.Kafka.WriteTimeOutSec <= 0 {
			return errors.New("wrong value for write timeout: must be >0 seconds")
		}
		if conf.Dumps.MaxBufSize <= 0 || conf.Dumps.MaxDumpSize <= 0 {
			return errors.New("all values in dumps section must be >0")
		}
	}
	if _, err := logger.ParseLevel(conf.Logging.LogLevel); err != nil {
		return err
	}
	return nil
}

// ParseConfig reads the yaml file at path over the defaults and then applies KPILOAD_* environment overrides.
// A missing file at the default path is not an error.
func ParseConfig(path string) (Config, error) {
	conf := Default()
	if path == "" {
		path = DefaultPath
	}
	file, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist) && path == DefaultPath:
	case err != nil:
		return conf, errors.Wrap(err, "read config")
	default:
		if err := yaml.Unmarshal(file, &conf); err != nil {
			return conf, errors.Wrap(err, "cant unmarshall config")
		}
	}
	if err := envconfig.Process(EnvPrefix, &conf); err != nil {
		return conf, errors.Wrap(err, "read environment overrides")
	}
	return conf, ValidateConfig(conf)
}

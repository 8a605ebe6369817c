package config

import (
	"bytes"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"horseregistry/anchor"
	"horseregistry/ledger"
	"horseregistry/model"
)

// Environment variables understood by Load and the CLI.
const (
	EnvConfigPath = "REGISTRY_CONFIG"
	EnvAccount    = "REGISTRY_ACCOUNT"
	EnvLogSpec    = "REGISTRY_LOG_SPEC"
)

// DefaultLedgerPath is where the local ledger lives unless configured.
const DefaultLedgerPath = "./data/registry.bolt"

// Config is the top level configuration of the local registry.
type Config struct {
	Ledger   ledger.DBConfiguration `yaml:"Ledger"`
	Registry RegistryConfiguration  `yaml:"Registry"`
	Logging  LoggingConfiguration   `yaml:"Logging"`
}

// RegistryConfiguration holds the settings passed to Initialize and the
// account used when no --as flag is given.
type RegistryConfiguration struct {
	Admin          string               `yaml:"Admin"`
	MetadataPolicy model.MetadataPolicy `yaml:"MetadataPolicy"`
	SchemaVersion  string               `yaml:"SchemaVersion"`
	Account        string               `yaml:"Account"`
}

// LoggingConfiguration holds the flogging spec, e.g. "info" or
// "horseregistry.ledger=debug:info".
type LoggingConfiguration struct {
	Spec string `yaml:"Spec"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Ledger: ledger.DBConfiguration{
			Type:          "boltdb",
			BoltDBOptions: ledger.BoltDBOptions{FilePath: DefaultLedgerPath},
		},
		Registry: RegistryConfiguration{
			MetadataPolicy: model.PolicyRegistrar,
			SchemaVersion:  anchor.DefaultSchemaVersion,
		},
		Logging: LoggingConfiguration{Spec: "info"},
	}
}

// Settings converts the registry section into Initialize settings.
func (r RegistryConfiguration) Settings() model.RegistrySettings {
	return model.RegistrySettings{
		Admin:          r.Admin,
		MetadataPolicy: r.MetadataPolicy,
		SchemaVersion:  r.SchemaVersion,
	}
}

// Load reads the YAML file at path over the defaults, applies environment
// overrides and validates the result. An empty path falls back to
// REGISTRY_CONFIG, and to the defaults alone when that is unset too.
func Load(path string) (Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrap(err, "unable to read config")
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, errors.Wrapf(err, "failed to unmarshal config %s", path)
		}
	}
	if v := os.Getenv(EnvAccount); v != "" {
		cfg.Registry.Account = v
	}
	if v := os.Getenv(EnvLogSpec); v != "" {
		cfg.Logging.Spec = v
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that the registry would otherwise reject late.
func (c Config) Validate() error {
	switch c.Ledger.Type {
	case "", "inmemory", "boltdb", "leveldb":
	default:
		return errors.Errorf("unknown Ledger.Type '%s'", c.Ledger.Type)
	}
	if c.Ledger.Type == "boltdb" && c.Ledger.BoltDBOptions.FilePath == "" {
		return errors.New("Ledger.BoltDBOptions.FilePath is required for boltdb")
	}
	if c.Ledger.Type == "leveldb" && c.Ledger.LevelDBOptions.DataDirectoryPath == "" {
		return errors.New("Ledger.LevelDBOptions.DataDirectoryPath is required for leveldb")
	}
	if c.Registry.MetadataPolicy != "" && !c.Registry.MetadataPolicy.Valid() {
		return errors.Errorf("unknown Registry.MetadataPolicy '%s'", c.Registry.MetadataPolicy)
	}
	if c.Registry.SchemaVersion != "" {
		if _, err := anchor.LookupSchema(c.Registry.SchemaVersion); err != nil {
			return errors.Wrap(err, "Registry.SchemaVersion")
		}
	}
	return nil
}

// LoadDotEnv loads the given .env files, or ./.env when none are named.
// Missing files are skipped and variables already set are kept.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return errors.Wrapf(err, "failed to load %s", p)
		}
	}
	return nil
}

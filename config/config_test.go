package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"horseregistry/model"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	t.Setenv(EnvAccount, "")
	t.Setenv(EnvLogSpec, "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, "boltdb", cfg.Ledger.Type)
	assert.Equal(t, model.PolicyRegistrar, cfg.Registry.MetadataPolicy)
}

func TestLoadFile(t *testing.T) {
	t.Setenv(EnvAccount, "")
	t.Setenv(EnvLogSpec, "")

	cfg, err := Load(filepath.Join("testdata", "registry.yml"))
	require.NoError(t, err)
	assert.Equal(t, "leveldb", cfg.Ledger.Type)
	assert.Equal(t, "/var/lib/horseregistry", cfg.Ledger.LevelDBOptions.DataDirectoryPath)
	assert.Equal(t, "0xadmin", cfg.Registry.Admin)
	assert.Equal(t, model.PolicyRegistrarOrOwner, cfg.Registry.MetadataPolicy)
	assert.Equal(t, "horse-record/v1", cfg.Registry.SchemaVersion)
	assert.Equal(t, "horseregistry.ledger=debug:info", cfg.Logging.Spec)

	settings := cfg.Registry.Settings()
	assert.Equal(t, "0xadmin", settings.Admin)
	assert.Equal(t, model.PolicyRegistrarOrOwner, settings.MetadataPolicy)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv(EnvConfigPath, filepath.Join("testdata", "registry.yml"))
	t.Setenv(EnvAccount, "0xregistrar")
	t.Setenv(EnvLogSpec, "debug")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "leveldb", cfg.Ledger.Type)
	assert.Equal(t, "0xregistrar", cfg.Registry.Account)
	assert.Equal(t, "debug", cfg.Logging.Spec)
}

func TestLoadRejectsBadConfig(t *testing.T) {
	t.Setenv(EnvAccount, "")
	t.Setenv(EnvLogSpec, "")

	cases := map[string]string{
		"unknown field":  "Ledger:\n  Typo: boltdb\n",
		"unknown store":  "Ledger:\n  Type: postgres\n",
		"leveldb path":   "Ledger:\n  Type: leveldb\n",
		"unknown policy": "Registry:\n  MetadataPolicy: anyone\n",
		"unknown schema": "Registry:\n  SchemaVersion: horse-record/v9\n",
		"not yaml":       "Ledger: [\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "registry.yml")
			require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("REGISTRY_ACCOUNT=0xfromdotenv\n"), 0o600))
	t.Setenv(EnvAccount, "")
	require.NoError(t, os.Unsetenv(EnvAccount))

	require.NoError(t, LoadDotEnv(path, filepath.Join(t.TempDir(), "absent.env")))
	assert.Equal(t, "0xfromdotenv", os.Getenv(EnvAccount))
}

func TestChaincodeFromEnv(t *testing.T) {
	t.Setenv("CHAINCODE_SERVER_ADDRESS", "")
	t.Setenv("CHAINCODE_ID", "")
	t.Setenv("CHAINCODE_TLS_DISABLED", "")
	t.Setenv("CHAINCODE_TLS_KEY", "")
	t.Setenv("CHAINCODE_TLS_CERT", "")

	c, err := ChaincodeFromEnv()
	require.NoError(t, err)
	assert.False(t, c.External())
	assert.True(t, c.TLSDisabled)

	t.Setenv("CHAINCODE_SERVER_ADDRESS", "0.0.0.0:9999")
	_, err = ChaincodeFromEnv()
	assert.Error(t, err)

	t.Setenv("CHAINCODE_ID", "horseregistry_1.0:abc")
	c, err = ChaincodeFromEnv()
	require.NoError(t, err)
	assert.True(t, c.External())
	assert.Equal(t, "horseregistry_1.0:abc", c.ID)

	t.Setenv("CHAINCODE_TLS_DISABLED", "false")
	_, err = ChaincodeFromEnv()
	assert.Error(t, err)

	t.Setenv("CHAINCODE_TLS_DISABLED", "maybe")
	_, err = ChaincodeFromEnv()
	assert.Error(t, err)
}

package config

import (
	"os"
	"strconv"

	"github.com/pkg/errors"
)

// Chaincode is the environment of the chaincode process. With a server
// address set the chaincode runs as an external service, otherwise the
// peer launches it.
type Chaincode struct {
	ServerAddress    string
	ID               string
	LogLevel         string
	TLSDisabled      bool
	TLSKeyFile       string
	TLSCertFile      string
	ClientCACertFile string
}

// External reports whether the chaincode runs as an external service.
func (c Chaincode) External() bool {
	return c.ServerAddress != ""
}

// ChaincodeFromEnv reads CHAINCODE_SERVER_ADDRESS, CHAINCODE_ID,
// CORE_CHAINCODE_LOGGING_LEVEL, CHAINCODE_TLS_DISABLED and, with TLS on,
// CHAINCODE_TLS_KEY, CHAINCODE_TLS_CERT and CHAINCODE_CLIENT_CA_CERT.
func ChaincodeFromEnv() (Chaincode, error) {
	c := Chaincode{
		ServerAddress:    os.Getenv("CHAINCODE_SERVER_ADDRESS"),
		ID:               os.Getenv("CHAINCODE_ID"),
		LogLevel:         os.Getenv("CORE_CHAINCODE_LOGGING_LEVEL"),
		TLSDisabled:      true,
		TLSKeyFile:       os.Getenv("CHAINCODE_TLS_KEY"),
		TLSCertFile:      os.Getenv("CHAINCODE_TLS_CERT"),
		ClientCACertFile: os.Getenv("CHAINCODE_CLIENT_CA_CERT"),
	}
	if v := os.Getenv("CHAINCODE_TLS_DISABLED"); v != "" {
		disabled, err := strconv.ParseBool(v)
		if err != nil {
			return Chaincode{}, errors.Wrap(err, "invalid CHAINCODE_TLS_DISABLED")
		}
		c.TLSDisabled = disabled
	}
	if !c.External() {
		return c, nil
	}
	if c.ID == "" {
		return Chaincode{}, errors.New("CHAINCODE_ID is required with CHAINCODE_SERVER_ADDRESS")
	}
	if !c.TLSDisabled && (c.TLSKeyFile == "" || c.TLSCertFile == "") {
		return Chaincode{}, errors.New("CHAINCODE_TLS_KEY and CHAINCODE_TLS_CERT are required when TLS is enabled")
	}
	return c, nil
}

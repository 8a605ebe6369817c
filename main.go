package main

import (
	"os"

	"github.com/hyperledger/fabric-chaincode-go/shim"
	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/hyperledger/fabric/common/flogging"

	"horseregistry/config"
	"horseregistry/contract"
)

var logger = flogging.MustGetLogger("horseregistry")

func main() {
	if err := config.LoadDotEnv(); err != nil {
		panic("Error loading .env: " + err.Error())
	}
	ccConfig, err := config.ChaincodeFromEnv()
	if err != nil {
		panic("Error reading chaincode environment: " + err.Error())
	}
	if ccConfig.LogLevel != "" {
		if err := flogging.Global.ActivateSpec(ccConfig.LogLevel); err != nil {
			panic("Error activating log spec: " + err.Error())
		}
	}

	cc, err := contractapi.NewChaincode(&contract.HorseRegistryContract{})
	if err != nil {
		panic("Error creating HorseRegistryContract: " + err.Error())
	}

	if !ccConfig.External() {
		if err := cc.Start(); err != nil {
			panic("Error starting chaincode: " + err.Error())
		}
		return
	}

	tlsProps, err := tlsProperties(ccConfig)
	if err != nil {
		panic("Error reading chaincode TLS material: " + err.Error())
	}
	server := &shim.ChaincodeServer{
		CCID:     ccConfig.ID,
		Address:  ccConfig.ServerAddress,
		CC:       cc,
		TLSProps: tlsProps,
	}
	logger.Infof("Starting chaincode server %s on %s", ccConfig.ID, ccConfig.ServerAddress)
	if err := server.Start(); err != nil {
		panic("Error starting chaincode server: " + err.Error())
	}
}

func tlsProperties(c config.Chaincode) (shim.TLSProperties, error) {
	props := shim.TLSProperties{Disabled: c.TLSDisabled}
	if c.TLSDisabled {
		return props, nil
	}
	var err error
	if props.Key, err = os.ReadFile(c.TLSKeyFile); err != nil {
		return props, err
	}
	if props.Cert, err = os.ReadFile(c.TLSCertFile); err != nil {
		return props, err
	}
	if c.ClientCACertFile != "" {
		if props.ClientCACerts, err = os.ReadFile(c.ClientCACertFile); err != nil {
			return props, err
		}
	}
	return props, nil
}

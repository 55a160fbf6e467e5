package common

import (
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/op/go-logging"

	"github.com/verity-secure/evidence-services/network"
	"github.com/verity-secure/evidence-services/util/logger"
)

// Context aggregates everything a service process needs: config,
// logger, and clients for Redis, NSQ, the artifact store, and each
// configured ledger gateway. All clients are safe for concurrent use
// and are shared across concurrent submissions.
type Context struct {
	Config        *Config
	Logger        *logging.Logger
	NSQClient     *network.NSQClient
	RedisClient   *network.RedisClient
	LedgerClients map[string]*network.LedgerClient
	S3Client      *minio.Client
}

func NewContext() *Context {
	config := NewConfig()
	_logger := getLogger(config)
	return &Context{
		Config:        config,
		Logger:        _logger,
		NSQClient:     getNsqClient(config),
		RedisClient:   getRedisClient(config),
		LedgerClients: getLedgerClients(config, _logger),
		S3Client:      getS3Client(config),
	}
}

func getLogger(config *Config) *logging.Logger {
	log, _ := logger.InitLogger(config.LogDir, config.LogLevel)
	return log
}

func getNsqClient(config *Config) *network.NSQClient {
	return network.NewNSQClient(config.NsqURL)
}

func getRedisClient(config *Config) *network.RedisClient {
	return network.NewRedisClient(
		config.RedisURL,
		config.RedisPassword,
		config.RedisDefaultDB)
}

func getLedgerClients(config *Config, logger *logging.Logger) map[string]*network.LedgerClient {
	clients := make(map[string]*network.LedgerClient, len(config.LedgerCredentials))
	for chain, creds := range config.LedgerCredentials {
		client, err := network.NewLedgerClient(
			chain,
			creds.GatewayURL,
			creds.APIKey,
			config.LedgerRetries,
			config.LedgerRetryMs,
			logger)
		if err != nil {
			panic(err)
		}
		clients[chain] = client
	}
	return clients
}

func getS3Client(config *Config) *minio.Client {
	useSSL := true
	if config.ConfigName == "dev" || config.ConfigName == "test" {
		useSSL = false // talking to localhost in dev and test
	}
	client, err := minio.New(
		config.S3Credentials.Host,
		&minio.Options{
			Creds:  credentials.NewStaticV4(config.S3Credentials.KeyID, config.S3Credentials.SecretKey, ""),
			Secure: useSSL,
		})
	if err != nil {
		panic(err)
	}
	return client
}

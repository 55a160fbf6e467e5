package common

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/op/go-logging"
	"github.com/spf13/viper"

	"github.com/verity-secure/evidence-services/constants"
	"github.com/verity-secure/evidence-services/util"
)

type LedgerCredentials struct {
	GatewayURL string
	APIKey     string
}

type S3Credentials struct {
	Host      string
	KeyID     string
	SecretKey string
}

type Config struct {
	BaseWorkingDir      string
	ConfigName          string
	EvidenceBucket      string
	LedgerCredentials   map[string]LedgerCredentials
	LedgerRetries       int
	LedgerRetryMs       time.Duration
	ListenAddr          string
	LogDir              string
	LogLevel            logging.Level
	MaxUploadSize       int64
	NsqLookupd          string
	NsqURL              string
	RedisDefaultDB      int
	RedisPassword       string
	RedisURL            string
	S3Credentials       S3Credentials
	SessionWindow       time.Duration
	SpoolDir            string
	SubmitTimeout       time.Duration
}

var logLevels = map[string]logging.Level{
	"CRITICAL": logging.CRITICAL,
	"ERROR":    logging.ERROR,
	"WARNING":  logging.WARNING,
	"NOTICE":   logging.NOTICE,
	"INFO":     logging.INFO,
	"DEBUG":    logging.DEBUG,
}

// Returns a new config based on ENV var EVIDENCE_SERVICES_CONFIG
func NewConfig() *Config {
	config := loadConfig()
	config.expandPaths()
	config.sanityCheck()
	config.makeDirs()
	return config
}

func loadConfig() *Config {
	configDir, envName := getEnvVars()
	v := viper.New()
	v.AddConfigPath(configDir)
	v.SetConfigName(".env." + envName)
	v.SetConfigType("env")
	err := v.ReadInConfig()
	if err != nil {
		panic(fmt.Errorf("Fatal error config file: %s \n", err))
	}
	return &Config{
		BaseWorkingDir: v.GetString("BASE_WORKING_DIR"),
		ConfigName:     envName,
		EvidenceBucket: v.GetString("EVIDENCE_BUCKET"),
		LedgerCredentials: map[string]LedgerCredentials{
			constants.ChainArbitrum: LedgerCredentials{
				GatewayURL: v.GetString("ARBITRUM_GATEWAY_URL"),
				APIKey:     v.GetString("ARBITRUM_API_KEY"),
			},
			constants.ChainScroll: LedgerCredentials{
				GatewayURL: v.GetString("SCROLL_GATEWAY_URL"),
				APIKey:     v.GetString("SCROLL_API_KEY"),
			},
		},
		LedgerRetries:  v.GetInt("LEDGER_RETRIES"),
		LedgerRetryMs:  v.GetDuration("LEDGER_RETRY_MS"),
		ListenAddr:     v.GetString("LISTEN_ADDR"),
		LogDir:         v.GetString("LOG_DIR"),
		LogLevel:       logLevels[v.GetString("LOG_LEVEL")],
		MaxUploadSize:  v.GetInt64("MAX_UPLOAD_SIZE"),
		NsqLookupd:     v.GetString("NSQ_LOOKUPD"),
		NsqURL:         v.GetString("NSQ_URL"),
		RedisDefaultDB: v.GetInt("REDIS_DEFAULT_DB"),
		RedisPassword:  v.GetString("REDIS_PASSWORD"),
		RedisURL:       v.GetString("REDIS_URL"),
		S3Credentials: S3Credentials{
			Host:      v.GetString("S3_HOST"),
			KeyID:     v.GetString("S3_KEY"),
			SecretKey: v.GetString("S3_SECRET"),
		},
		SessionWindow: v.GetDuration("SESSION_WINDOW"),
		SpoolDir:      v.GetString("SPOOL_DIR"),
		SubmitTimeout: v.GetDuration("SUBMIT_TIMEOUT"),
	}
}

func getEnvVars() (string, string) {
	configDir := getRequiredEnvVar("EVIDENCE_CONFIG_DIR")
	envName := getRequiredEnvVar("EVIDENCE_SERVICES_CONFIG")
	return configDir, envName
}

func getRequiredEnvVar(varName string) string {
	value := os.Getenv(varName)
	if value == "" {
		panic(fmt.Sprintf("Required env var %s not set", varName))
	}
	return value
}

// Expand ~ to home dir in path settings.
func (c *Config) expandPaths() {
	c.BaseWorkingDir = expandPath(c.BaseWorkingDir)
	c.LogDir = expandPath(c.LogDir)
	c.SpoolDir = expandPath(c.SpoolDir)
}

func expandPath(dirName string) string {
	dir, err := util.ExpandTilde(dirName)
	if err != nil {
		panic(err)
	}
	return dir
}

func (c *Config) sanityCheck() {
	// Defaults for settings an operator is likely to omit.
	// Gateway URLs and bucket names have no sane defaults and
	// cause a panic in NewContext when missing.
	if c.LedgerRetries < 1 {
		c.LedgerRetries = 3
	}
	if c.LedgerRetryMs == 0 {
		c.LedgerRetryMs = 250 * time.Millisecond
	}
	if c.MaxUploadSize == 0 {
		c.MaxUploadSize = int64(500 * 1024 * 1024)
	}
	if c.SessionWindow == 0 {
		c.SessionWindow = 24 * time.Hour
	}
	if c.SubmitTimeout == 0 {
		c.SubmitTimeout = 90 * time.Second
	}
	if c.ListenAddr == "" {
		c.ListenAddr = ":8080"
	}
}

func (c *Config) makeDirs() error {
	dirs := []string{
		c.LogDir,
		c.SpoolDir,
	}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		err := os.MkdirAll(dir, 0755)
		if err != nil {
			panic(err)
		}
	}
	return nil
}

// ToJSON serializes the config for logging at startup, with
// credentials omitted.
func (c *Config) ToJSON() string {
	scrubbed := struct {
		ConfigName     string
		EvidenceBucket string
		Chains         []string
		LedgerRetries  int
		ListenAddr     string
		MaxUploadSize  int64
		SessionWindow  string
		SubmitTimeout  string
	}{
		ConfigName:     c.ConfigName,
		EvidenceBucket: c.EvidenceBucket,
		Chains:         c.ChainNames(),
		LedgerRetries:  c.LedgerRetries,
		ListenAddr:     c.ListenAddr,
		MaxUploadSize:  c.MaxUploadSize,
		SessionWindow:  c.SessionWindow.String(),
		SubmitTimeout:  c.SubmitTimeout.String(),
	}
	data, _ := json.Marshal(scrubbed)
	return string(data)
}

// ChainNames returns configured chain names in anchor order.
func (c *Config) ChainNames() []string {
	names := make([]string, 0, len(c.LedgerCredentials))
	for _, chain := range constants.Chains {
		if _, ok := c.LedgerCredentials[chain]; ok {
			names = append(names, chain)
		}
	}
	return names
}

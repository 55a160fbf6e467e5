package cli

import (
	"flag"
	"time"
)

type Options struct {
	ChannelBufferSize int
	MaxAttempts       int
	NumWorkers        int
	PidFile           string
	PrintHelp         bool
	RequeueTimeout    time.Duration
}

var opts = Options{}
var defaultAttempts = 18
var defaultBufSize = 20
var defaultWorkers = 3
var defaultTimeout = 10 * time.Second

var EnvMessage = `This requires the following environment vars:

EVIDENCE_CONFIG_DIR - Path to the directory containing the .env settings file.

EVIDENCE_SERVICES_CONFIG - Name of the configuration to load. For example:
    test - Loads .env.test from EVIDENCE_CONFIG_DIR
    demo - Loads .env.demo from EVIDENCE_CONFIG_DIR
`

func Init() {
	flag.IntVar(&opts.ChannelBufferSize, "bufsize", defaultBufSize, "Channel buffer size for go workers")
	flag.IntVar(&opts.MaxAttempts, "max-attempts", defaultAttempts, "Maximum number of times a worker should attempt to process an item")
	flag.IntVar(&opts.NumWorkers, "workers", defaultWorkers, "Number of go routines to handle main processing work")
	flag.StringVar(&opts.PidFile, "pidfile", "", "Path to pid file. If set, the process refuses to start while another instance holds the file")
	flag.BoolVar(&opts.PrintHelp, "help", false, "Print help message")
	flag.DurationVar(&opts.RequeueTimeout, "requeue-timeout", defaultTimeout, "Requeue timeout for re-polling anchors that are still pending. Format examples: 500ms, 12s, 10m, 3m30s, 3h")
}

func ParseOpts() Options {
	flag.Parse()
	return opts
}

func PrintDefaults() {
	flag.PrintDefaults()
}

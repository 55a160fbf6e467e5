package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/verity-secure/evidence-services/api"
	"github.com/verity-secure/evidence-services/models/common"
	"github.com/verity-secure/evidence-services/util"
	"github.com/verity-secure/evidence-services/util/cli"
)

func main() {
	cli.Init()
	opts := cli.ParseOpts()
	if opts.PrintHelp {
		printHelp()
		cli.PrintDefaults()
		os.Exit(0)
	}
	if opts.PidFile != "" {
		if util.IsRunningInOtherProcess(opts.PidFile) {
			fmt.Fprintf(os.Stderr, "Refusing to start: pid %d already holds %s\n",
				util.ReadPidFile(opts.PidFile), opts.PidFile)
			os.Exit(1)
		}
		if err := util.WritePidFile(opts.PidFile); err != nil {
			fmt.Fprintf(os.Stderr, "Cannot write pid file %s: %v\n", opts.PidFile, err)
			os.Exit(1)
		}
		defer util.DeletePidFile(opts.PidFile)
	}

	// If anything goes wrong, this panics.
	ctx := common.NewContext()
	server := api.NewServer(ctx)

	ctx.Logger.Infof("evidence_server listening on %s", ctx.Config.ListenAddr)
	err := http.ListenAndServe(ctx.Config.ListenAddr, server.Routes())
	if err != nil {
		ctx.Logger.Fatalf("evidence_server exited: %v", err)
	}
}

func printHelp() {
	message := `
evidence_server runs the chain-of-custody HTTP API. It accepts trip
(session) creation and dashcam evidence uploads, fingerprints each
artifact with SHA-256, stores the bytes in content-addressed S3
storage, and anchors the fingerprint on each configured ledger chain.
Records with anchors still awaiting finality are queued on NSQ for the
anchor_confirmer service.
`
	fmt.Println(message)
	fmt.Println(cli.EnvMessage)
}

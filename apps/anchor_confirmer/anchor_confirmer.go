package main

import (
	"fmt"
	"os"

	"github.com/verity-secure/evidence-services/util"
	"github.com/verity-secure/evidence-services/util/cli"
	"github.com/verity-secure/evidence-services/workers"
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
	// Otherwise, it starts handling NSQ messages immediately.
	worker := workers.NewAnchorConfirmer(
		opts.ChannelBufferSize,
		opts.NumWorkers,
		opts.MaxAttempts,
		opts.RequeueTimeout,
	)

	// This channel blocks until we get an interrupt,
	// so our program does not exit without Control-C
	// or other kill signal.
	<-worker.NSQConsumer.StopChan
}

func printHelp() {
	message := `
anchor_confirmer runs as a service to advance evidence records to
finality. It reads record ids from the NSQ anchor confirmation queue,
polls each ledger gateway for the status of the record's pending
transactions, and updates the custody record when a transaction is
confirmed or dropped. Records that never reach finality within the
polling window have their remaining anchors marked as failed.
`
	fmt.Println(message)
	fmt.Println(cli.EnvMessage)
}

package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/ethereum-mive/mive/internal/flags"
)

const (
	clientIdentifier = "mive" // Client identifier
)

var app = flags.NewApp("the mive command line interface")

func init() {
	app.Commands = []*cli.Command{
		indexCommand,
	}
	app.Flags = indexerFlags
	app.Action = runIndexer
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

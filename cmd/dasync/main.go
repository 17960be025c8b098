package main

import (
	"context"
	"os"

	"github.com/tendermint/dasync/cmd/dasync/commands"
	"github.com/tendermint/dasync/config"
	"github.com/tendermint/dasync/libs/cli"
	"github.com/tendermint/dasync/libs/log"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conf := config.DefaultConfig()

	logger, err := log.NewDefaultLogger(log.LogFormatPlain, log.LogLevelInfo)
	if err != nil {
		panic(err)
	}

	rcmd := commands.RootCommand(conf, logger)
	rcmd.AddCommand(
		commands.MakeInitCommand(conf, logger),
		commands.MakeInspectCommand(conf, logger),
		commands.MakePruneCommand(conf, logger),
		commands.VersionCmd,
	)

	if err := cli.RunWithTrace(ctx, rcmd); err != nil {
		os.Exit(1)
	}
}

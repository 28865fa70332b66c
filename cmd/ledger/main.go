package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path"

	"github.com/google/subcommands"

	"github.com/jmanzanog/trading-simulator/internal/infrastructure/catalog"
	"github.com/jmanzanog/trading-simulator/internal/interfaces/cli"
)

func main() {
	assets, err := catalog.Load(os.Getenv("ASSET_CATALOG_FILE"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")
	cli.Register(commander, cli.Env{Out: os.Stdout, Err: os.Stderr, Catalog: assets})

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}

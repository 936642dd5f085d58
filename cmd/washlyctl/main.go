// Command washlyctl bundles the operator tasks that run outside the HTTP API:
// password hashing, user and catalog seeding, and dead letter inspection.
//
//	washlyctl genhash -password secret
//	washlyctl seeduser -username admin -password secret -role administrador
//	washlyctl seedcatalog -file catalog.json
//	washlyctl dlq -n 20
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(&genhashCmd{}, "auth")
	commander.Register(&seedUserCmd{}, "seed")
	commander.Register(&seedCatalogCmd{}, "seed")
	commander.Register(&dlqCmd{}, "ops")

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}

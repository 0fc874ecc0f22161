// Command artemis-node runs a single proof-of-work node: load its
// startup record from a YAML file, build every subsystem, and serve
// until interrupted.
//
// Follows go-ethereum's cmd/geth CLI wiring: a urfave/cli App with flags
// feeding a single setup function.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/felipemeriga/artemis-network/internal/config"
	"github.com/felipemeriga/artemis-network/internal/node"
)

var log = logrus.WithField("component", "main")

func main() {
	app := &cli.App{
		Name:  "artemis-node",
		Usage: "run a proof-of-work cryptocurrency node",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "config",
				Usage:    "path to the node's YAML startup record",
				Required: true,
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.WithError(err).Fatal("node exited with error")
	}
}

func run(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}

	n, err := node.Build(cfg, "data")
	if err != nil {
		return err
	}
	defer n.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return n.Run(ctx)
}

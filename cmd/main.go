package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
)

const (
	defaultConfigPath = "./configs/config.yaml"
	defaultEnvPath    = ".env"
	chatLogFile       = "ragbot-chat.log"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.Command{
		Name:  "ragbot",
		Usage: "Document question answering over a local vector store",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "YAML config file path",
				Value: defaultConfigPath,
			},
			&cli.StringFlag{
				Name:  "env",
				Usage: "environment file path",
				Value: defaultEnvPath,
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API",
				Action: serveAction,
			},
			{
				Name:      "ingest",
				Usage:     "Index .pdf, .txt or .md files into the collection",
				ArgsUsage: "<file> [file...]",
				Action:    ingestAction,
			},
			{
				Name:      "ask",
				Usage:     "Answer a question from the indexed documents",
				ArgsUsage: "<question>",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "plain",
						Usage: "send the question to the model without retrieval",
					},
				},
				Action: askAction,
			},
			{
				Name:   "chat",
				Usage:  "Open the terminal chat UI against a running API",
				Action: chatAction,
			},
			{
				Name:   "stats",
				Usage:  "Show the collection name and chunk count",
				Action: statsAction,
			},
			{
				Name:      "export",
				Usage:     "Export the collection to a file",
				ArgsUsage: "<file>",
				Action:    exportAction,
			},
			{
				Name:      "import",
				Usage:     "Import a collection file exported earlier",
				ArgsUsage: "<file>",
				Action:    importAction,
			},
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatal().Err(err).Msg("ragbot failed")
	}
}

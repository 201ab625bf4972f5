package main

import (
	"context"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog/log"

	"github.com/wolfeidau/orgflow/cmd/cli/internal/commands"
	"github.com/wolfeidau/orgflow/internal/logger"
)

var (
	version = "dev"
	cli     struct {
		Request   commands.RequestCmd   `cmd:"" help:"Manage account requests"`
		Migrate   commands.MigrateCmd   `cmd:"" help:"Move accounts between OUs"`
		Status    commands.StatusCmd    `cmd:"" help:"Inspect request and pipeline status"`
		Bootstrap commands.BootstrapCmd `cmd:"" help:"Provision the ledger backend"`

		Profile     string `help:"AWS shared config profile" env:"AWS_PROFILE" default:""`
		Region      string `help:"AWS region" env:"AWS_REGION" default:""`
		AWSEndpoint string `help:"AWS endpoint (for LocalStack)" env:"AWS_ENDPOINT" default:""`
		Store       string `help:"Ledger backend" enum:"dynamodb,postgres" default:"dynamodb"`
		Table       string `help:"DynamoDB table name" env:"ORGFLOW_TABLE" default:"orgflow-account-requests"`
		PostgresDSN string `help:"Postgres connection string" env:"ORGFLOW_POSTGRES_DSN" default:""`

		Debug   bool `help:"Enable debug mode."`
		Version kong.VersionFlag
	}
)

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))

	log.Logger = logger.Setup(cli.Debug)

	err := cmd.Run(&commands.Globals{
		Debug:       cli.Debug,
		Version:     version,
		Profile:     cli.Profile,
		Region:      cli.Region,
		AWSEndpoint: cli.AWSEndpoint,
		Store:       cli.Store,
		Table:       cli.Table,
		PostgresDSN: cli.PostgresDSN,
	})
	cmd.FatalIfErrorf(err)
}

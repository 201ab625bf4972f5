package commands

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/rs/zerolog/log"

	"github.com/wolfeidau/orgflow/internal/bootstrap"
	"github.com/wolfeidau/orgflow/internal/store/postgres"
)

// BootstrapCmd provisions the ledger backend
type BootstrapCmd struct {
	CleanResources bool `help:"Delete and recreate existing resources" default:"false"`
}

func (c *BootstrapCmd) Run(ctx context.Context, globals *Globals) error {
	if globals.Store == "postgres" {
		pool, err := postgres.NewPool(ctx, &postgres.PoolConfig{ConnString: globals.PostgresDSN})
		if err != nil {
			return fmt.Errorf("failed to create postgres pool: %w", err)
		}
		defer pool.Close()

		if err := postgres.EnsureSchema(ctx, pool); err != nil {
			return err
		}

		log.Info().Msg("postgres schema ready")
		return nil
	}

	awsConfig, err := globals.AWSConfig(ctx)
	if err != nil {
		return fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := dynamodb.NewFromConfig(awsConfig)

	if err := bootstrap.CreateRequestsTable(ctx, client, globals.Table, c.CleanResources); err != nil {
		return fmt.Errorf("failed to create requests table: %w", err)
	}

	log.Info().Str("table", globals.Table).Msg("requests table ready")
	return nil
}

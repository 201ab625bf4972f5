package commands

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/wolfeidau/orgflow/internal/store"
	awsstore "github.com/wolfeidau/orgflow/internal/store/aws"
	"github.com/wolfeidau/orgflow/internal/store/postgres"
)

type Globals struct {
	Debug   bool
	Version string

	Profile     string
	Region      string
	AWSEndpoint string

	Store       string
	Table       string
	PostgresDSN string
}

// AWSConfig loads AWS configuration with optional profile, region and
// endpoint overrides
func (g *Globals) AWSConfig(ctx context.Context) (aws.Config, error) {
	opts := []func(*config.LoadOptions) error{}

	if g.Region != "" {
		opts = append(opts, config.WithRegion(g.Region))
	}

	if g.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(g.Profile))
	}

	if g.AWSEndpoint != "" {
		// Use BaseEndpoint for LocalStack support
		opts = append(opts, config.WithBaseEndpoint(g.AWSEndpoint))
	}

	return config.LoadDefaultConfig(ctx, opts...)
}

// RequestStore constructs the ledger backend selected by the store flag.
func (g *Globals) RequestStore(ctx context.Context) (store.RequestStore, error) {
	switch g.Store {
	case "postgres":
		pool, err := postgres.NewPool(ctx, &postgres.PoolConfig{ConnString: g.PostgresDSN})
		if err != nil {
			return nil, fmt.Errorf("failed to create postgres pool: %w", err)
		}
		return postgres.NewRequestStore(pool), nil
	default:
		awsConfig, err := g.AWSConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		return awsstore.NewRequestStore(dynamodb.NewFromConfig(awsConfig), g.Table), nil
	}
}

func printRequest(req *store.AccountRequest) {
	fmt.Printf("Request ID:   %s\n", req.RequestID)
	fmt.Printf("Template:     %s\n", req.Template)
	fmt.Printf("Name:         %s\n", req.Name)
	fmt.Printf("Email:        %s\n", req.Email)
	fmt.Printf("Client:       %s\n", req.ClientID)
	fmt.Printf("Requested By: %s\n", req.RequestedBy)
	fmt.Printf("Target OU:    %s\n", req.TargetOU)
	fmt.Printf("Status:       %s\n", req.Status)
	if req.AccountID != "" {
		fmt.Printf("Account ID:   %s\n", req.AccountID)
	}
	if req.ErrorMessage != "" {
		fmt.Printf("Error:        %s\n", req.ErrorMessage)
	}
	if len(req.Customizations) > 0 {
		fmt.Println("Customizations:")
		for k, v := range req.Customizations {
			fmt.Printf("  %s: %s\n", k, v)
		}
	}
	fmt.Printf("Created At:   %s\n", req.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("Updated At:   %s\n", req.UpdatedAt.Format("2006-01-02 15:04:05"))
}

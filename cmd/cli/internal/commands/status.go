package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/codepipeline"
	"github.com/cenkalti/backoff/v5"

	"github.com/wolfeidau/orgflow/internal/aftstatus"
	"github.com/wolfeidau/orgflow/internal/store"
)

type StatusCmd struct {
	Check     CheckStatusCmd `cmd:"" help:"Show combined status for one request"`
	Pipelines PipelinesCmd   `cmd:"" help:"Show account factory pipeline health"`
	Overview  OverviewCmd    `cmd:"" help:"Summarize requests by status"`
}

func newAggregator(ctx context.Context, globals *Globals) (*aftstatus.Aggregator, error) {
	awsConfig, err := globals.AWSConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	ledger, err := globals.RequestStore(ctx)
	if err != nil {
		return nil, err
	}

	return aftstatus.NewAggregator(codepipeline.NewFromConfig(awsConfig), ledger), nil
}

type CheckStatusCmd struct {
	RequestID string        `arg:"" help:"Request id"`
	Wait      bool          `help:"Poll until the request reaches a terminal state" default:"false"`
	Interval  time.Duration `help:"Polling interval when waiting" default:"15s"`
	Timeout   time.Duration `help:"Give up waiting after this long" default:"30m"`
}

func (c *CheckStatusCmd) Run(ctx context.Context, globals *Globals) error {
	aggregator, err := newAggregator(ctx, globals)
	if err != nil {
		return err
	}

	if !c.Wait {
		status, err := aggregator.Report(ctx, c.RequestID)
		if err != nil {
			return err
		}
		printStatus(status)
		return nil
	}

	status, err := backoff.Retry(ctx, func() (*aftstatus.CombinedStatus, error) {
		status, err := aggregator.Report(ctx, c.RequestID)
		if err != nil {
			if errors.Is(err, store.ErrRequestNotFound) {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}

		switch status.Request.Status {
		case store.StatusCompleted, store.StatusFailed:
			return status, nil
		}

		fmt.Printf("%s  request %s is %s, pipeline %s\n",
			time.Now().Format("15:04:05"), c.RequestID, status.Request.Status, status.PipelineStatus)

		return nil, fmt.Errorf("request %s still %s", c.RequestID, status.Request.Status)
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(c.Interval)),
		backoff.WithMaxElapsedTime(c.Timeout),
	)
	if err != nil {
		return err
	}

	fmt.Println()
	printStatus(status)
	return nil
}

type PipelinesCmd struct{}

func (c *PipelinesCmd) Run(ctx context.Context, globals *Globals) error {
	aggregator, err := newAggregator(ctx, globals)
	if err != nil {
		return err
	}

	health, err := aggregator.Pipelines(ctx)
	if err != nil {
		return err
	}

	if len(health) == 0 {
		fmt.Println("No account factory pipelines found.")
		return nil
	}

	for _, pipeline := range health {
		fmt.Printf("%s\n", pipeline.Name)
		if len(pipeline.Executions) == 0 {
			fmt.Println("  no executions")
			continue
		}
		for _, execution := range pipeline.Executions {
			fmt.Printf("  %-40s %-12s %s\n",
				execution.ID, execution.Status, execution.StartTime.Format("2006-01-02 15:04:05"))
		}
	}

	return nil
}

type OverviewCmd struct {
	Limit int `help:"Number of recent requests to summarize" default:"100"`
}

func (c *OverviewCmd) Run(ctx context.Context, globals *Globals) error {
	aggregator, err := newAggregator(ctx, globals)
	if err != nil {
		return err
	}

	summary, err := aggregator.Summarize(ctx, c.Limit)
	if err != nil {
		return err
	}

	fmt.Printf("Requests (most recent %d):\n\n", c.Limit)
	for _, status := range store.Statuses() {
		fmt.Printf("  %-12s %d\n", status, summary.Counts[status])
	}
	fmt.Printf("\nTotal: %d\n", summary.Total)

	return nil
}

func printStatus(status *aftstatus.CombinedStatus) {
	printRequest(status.Request)
	fmt.Println(strings.Repeat("─", 40))
	if status.PipelineName != "" {
		fmt.Printf("Pipeline:     %s\n", status.PipelineName)
	}
	fmt.Printf("Pipeline Status: %s\n", status.PipelineStatus)
	if status.PipelineExecutionID != "" {
		fmt.Printf("Execution:    %s\n", status.PipelineExecutionID)
	}
	fmt.Printf("Source:       %s\n", status.Source)
	fmt.Printf("Last Updated: %s\n", status.LastUpdated.Format("2006-01-02 15:04:05"))
}

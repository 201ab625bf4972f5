package aftstatus

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/codepipeline"
	cptypes "github.com/aws/aws-sdk-go-v2/service/codepipeline/types"
	"github.com/rs/zerolog/log"

	"github.com/wolfeidau/orgflow/internal/store"
)

// maxExecutionsPerPipeline bounds how much execution history is examined
// per pipeline when looking for the freshest run.
const maxExecutionsPerPipeline = 5

// pipelineNameMarker selects account factory pipelines by name.
const pipelineNameMarker = "aft"

// Status sources reported in CombinedStatus.Source.
const (
	SourcePipeline = "pipeline"
	SourceLedger   = "ledger"
)

// PipelineAPI is the subset of the CodePipeline client the aggregator
// consumes
type PipelineAPI interface {
	ListPipelines(ctx context.Context, params *codepipeline.ListPipelinesInput, optFns ...func(*codepipeline.Options)) (*codepipeline.ListPipelinesOutput, error)
	ListPipelineExecutions(ctx context.Context, params *codepipeline.ListPipelineExecutionsInput, optFns ...func(*codepipeline.Options)) (*codepipeline.ListPipelineExecutionsOutput, error)
}

// CombinedStatus joins a ledger record with the freshest matching pipeline
// execution. The ledger record is authoritative for the request lifecycle;
// the pipeline fields describe delivery progress only.
type CombinedStatus struct {
	Request             *store.AccountRequest
	PipelineName        string
	PipelineStatus      string
	PipelineExecutionID string
	Source              string
	LastUpdated         time.Time
}

// ExecutionSummary is one pipeline execution in the health view.
type ExecutionSummary struct {
	ID        string
	Status    string
	StartTime time.Time
}

// PipelineHealth is one account factory pipeline with its recent history.
type PipelineHealth struct {
	Name       string
	Executions []ExecutionSummary
}

// StatusSummary counts ledger entries by lifecycle state.
type StatusSummary struct {
	Total  int
	Counts map[store.RequestStatus]int
}

// Aggregator combines the request ledger with account factory pipeline
// state.
type Aggregator struct {
	pipelines PipelineAPI
	ledger    store.RequestStore
}

// NewAggregator creates an aggregator over the given pipeline client and
// ledger.
func NewAggregator(pipelines PipelineAPI, ledger store.RequestStore) *Aggregator {
	return &Aggregator{
		pipelines: pipelines,
		ledger:    ledger,
	}
}

// Report returns the combined status for one request. When no account
// factory pipeline can be found, or listing it fails, the pipeline fields
// are derived from the ledger record and Source is set to "ledger".
func (a *Aggregator) Report(ctx context.Context, requestID string) (*CombinedStatus, error) {
	req, err := a.ledger.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}

	status := &CombinedStatus{
		Request:     req,
		Source:      SourcePipeline,
		LastUpdated: req.UpdatedAt,
	}

	name, execution, err := a.freshestExecution(ctx)
	if err != nil || name == "" {
		if err != nil {
			log.Warn().Err(err).Str("request_id", requestID).Msg("pipeline lookup failed, deriving status from ledger")
		} else {
			log.Warn().Str("request_id", requestID).Msg("no account factory pipeline found, deriving status from ledger")
		}
		status.Source = SourceLedger
		status.PipelineStatus = ledgerPipelineStatus(req.Status)
		return status, nil
	}

	status.PipelineName = name
	status.PipelineStatus = string(execution.Status)
	status.PipelineExecutionID = aws.ToString(execution.PipelineExecutionId)

	return status, nil
}

// Summarize counts the most recent limit ledger entries by lifecycle
// state. Every state appears in the result, zero-valued when absent.
func (a *Aggregator) Summarize(ctx context.Context, limit int) (*StatusSummary, error) {
	requests, err := a.ledger.List(ctx, store.ListRequestsOptions{Limit: limit})
	if err != nil {
		return nil, err
	}

	summary := &StatusSummary{
		Total:  len(requests),
		Counts: make(map[store.RequestStatus]int, len(store.Statuses())),
	}
	for _, status := range store.Statuses() {
		summary.Counts[status] = 0
	}
	for _, req := range requests {
		summary.Counts[req.Status]++
	}

	return summary, nil
}

// Pipelines returns every account factory pipeline with its recent
// execution history.
func (a *Aggregator) Pipelines(ctx context.Context) ([]PipelineHealth, error) {
	names, err := a.matchingPipelines(ctx)
	if err != nil {
		return nil, err
	}

	health := make([]PipelineHealth, 0, len(names))
	for _, name := range names {
		executions, err := a.recentExecutions(ctx, name)
		if err != nil {
			return nil, err
		}

		summaries := make([]ExecutionSummary, 0, len(executions))
		for _, execution := range executions {
			summaries = append(summaries, ExecutionSummary{
				ID:        aws.ToString(execution.PipelineExecutionId),
				Status:    string(execution.Status),
				StartTime: aws.ToTime(execution.StartTime),
			})
		}

		health = append(health, PipelineHealth{Name: name, Executions: summaries})
	}

	return health, nil
}

// freshestExecution returns the most recently started execution across all
// account factory pipelines. An empty name means no pipeline matched.
func (a *Aggregator) freshestExecution(ctx context.Context) (string, *cptypes.PipelineExecutionSummary, error) {
	names, err := a.matchingPipelines(ctx)
	if err != nil {
		return "", nil, err
	}

	var (
		freshestName string
		freshest     *cptypes.PipelineExecutionSummary
	)

	for _, name := range names {
		executions, err := a.recentExecutions(ctx, name)
		if err != nil {
			return "", nil, err
		}

		for i := range executions {
			execution := &executions[i]
			if freshest == nil || aws.ToTime(execution.StartTime).After(aws.ToTime(freshest.StartTime)) {
				freshestName = name
				freshest = execution
			}
		}
	}

	return freshestName, freshest, nil
}

// matchingPipelines pages through all pipelines and returns the names
// containing the account factory marker, case-insensitively.
func (a *Aggregator) matchingPipelines(ctx context.Context) ([]string, error) {
	var names []string
	var nextToken *string

	for {
		resp, err := a.pipelines.ListPipelines(ctx, &codepipeline.ListPipelinesInput{
			NextToken: nextToken,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list pipelines: %w", err)
		}

		for _, pipeline := range resp.Pipelines {
			name := aws.ToString(pipeline.Name)
			if strings.Contains(strings.ToLower(name), pipelineNameMarker) {
				names = append(names, name)
			}
		}

		if resp.NextToken == nil {
			break
		}
		nextToken = resp.NextToken
	}

	return names, nil
}

func (a *Aggregator) recentExecutions(ctx context.Context, name string) ([]cptypes.PipelineExecutionSummary, error) {
	resp, err := a.pipelines.ListPipelineExecutions(ctx, &codepipeline.ListPipelineExecutionsInput{
		PipelineName: aws.String(name),
		MaxResults:   aws.Int32(maxExecutionsPerPipeline),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list executions for pipeline %s: %w", name, err)
	}
	return resp.PipelineExecutionSummaries, nil
}

// ledgerPipelineStatus maps a ledger lifecycle state to the nearest
// pipeline execution status for the degraded fallback.
func ledgerPipelineStatus(status store.RequestStatus) string {
	switch status {
	case store.StatusInProgress:
		return string(cptypes.PipelineExecutionStatusInProgress)
	case store.StatusCompleted:
		return string(cptypes.PipelineExecutionStatusSucceeded)
	case store.StatusFailed:
		return string(cptypes.PipelineExecutionStatusFailed)
	default:
		return "Pending"
	}
}

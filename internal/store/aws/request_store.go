package aws

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/orgflow/internal/store"
)

// ClientStatusIndex is the GSI supporting exact-match lookups on
// (client_id) alone or (client_id, status) together.
const ClientStatusIndex = "client-status-index"

// DynamoDBAPI is the subset of the DynamoDB client used by the request store
type DynamoDBAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// RequestStore is a DynamoDB implementation of RequestStore
type RequestStore struct {
	client    DynamoDBAPI
	tableName string
}

// NewRequestStore creates a new DynamoDB request store
func NewRequestStore(client DynamoDBAPI, tableName string) *RequestStore {
	return &RequestStore{
		client:    client,
		tableName: tableName,
	}
}

// Put inserts a new account request
func (s *RequestStore) Put(ctx context.Context, req *store.AccountRequest) error {
	item, err := attributevalue.MarshalMap(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	// Use ConditionExpression to prevent duplicates
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(request_id)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return store.ErrRequestAlreadyExists
		}
		return wrapAWSError(err, "failed to put request")
	}

	log.Debug().
		Str("request_id", req.RequestID).
		Str("client_id", req.ClientID).
		Msg("account request created")

	return nil
}

// Get retrieves an account request by ID
func (s *RequestStore) Get(ctx context.Context, requestID string) (*store.AccountRequest, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"request_id": &types.AttributeValueMemberS{Value: requestID},
		},
	})
	if err != nil {
		return nil, wrapAWSError(err, "failed to get request")
	}

	if result.Item == nil {
		return nil, store.ErrRequestNotFound
	}

	var req store.AccountRequest
	if err := attributevalue.UnmarshalMap(result.Item, &req); err != nil {
		return nil, fmt.Errorf("failed to unmarshal request: %w", err)
	}

	return &req, nil
}

// List returns requests matching the filter. A client id filter is served by
// the client-status-index GSI; a bare status filter falls back to a scan
// with a filter expression.
func (s *RequestStore) List(ctx context.Context, opts store.ListRequestsOptions) ([]*store.AccountRequest, error) {
	if opts.ClientID != "" {
		return s.queryByClient(ctx, opts)
	}
	return s.scan(ctx, opts)
}

func (s *RequestStore) queryByClient(ctx context.Context, opts store.ListRequestsOptions) ([]*store.AccountRequest, error) {
	keyCond := expression.Key("client_id").Equal(expression.Value(opts.ClientID))
	if opts.Status != "" {
		keyCond = keyCond.And(expression.Key("status").Equal(expression.Value(string(opts.Status))))
	}

	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build key condition: %w", err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(s.tableName),
		IndexName:                 aws.String(ClientStatusIndex),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}
	if opts.Limit > 0 {
		input.Limit = aws.Int32(clampLimit(opts.Limit))
	}

	result, err := s.client.Query(ctx, input)
	if err != nil {
		return nil, wrapAWSError(err, "failed to query requests")
	}

	return unmarshalRequests(result.Items), nil
}

func (s *RequestStore) scan(ctx context.Context, opts store.ListRequestsOptions) ([]*store.AccountRequest, error) {
	input := &dynamodb.ScanInput{
		TableName: aws.String(s.tableName),
	}

	if opts.Status != "" {
		expr, err := expression.NewBuilder().
			WithFilter(expression.Name("status").Equal(expression.Value(string(opts.Status)))).
			Build()
		if err != nil {
			return nil, fmt.Errorf("failed to build filter expression: %w", err)
		}
		input.FilterExpression = expr.Filter()
		input.ExpressionAttributeNames = expr.Names()
		input.ExpressionAttributeValues = expr.Values()
	}

	if opts.Limit > 0 {
		input.Limit = aws.Int32(clampLimit(opts.Limit))
	}

	result, err := s.client.Scan(ctx, input)
	if err != nil {
		return nil, wrapAWSError(err, "failed to list requests")
	}

	return unmarshalRequests(result.Items), nil
}

// Update merges the given fields into an existing request. The update is a
// single UpdateItem call, so the caller's field set is applied atomically.
func (s *RequestStore) Update(ctx context.Context, requestID string, update store.RequestUpdate) (*store.AccountRequest, error) {
	set := expression.Set(
		expression.Name("updated_at"),
		expression.Value(time.Now().UTC()),
	)
	if update.Status != nil {
		set = set.Set(expression.Name("status"), expression.Value(string(*update.Status)))
	}
	if update.AccountID != nil {
		set = set.Set(expression.Name("account_id"), expression.Value(*update.AccountID))
	}
	if update.ErrorMessage != nil {
		set = set.Set(expression.Name("error_message"), expression.Value(*update.ErrorMessage))
	}

	condition := expression.AttributeExists(expression.Name("request_id"))

	expr, err := expression.NewBuilder().
		WithUpdate(set).
		WithCondition(condition).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}

	result, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.tableName),
		Key:                       map[string]types.AttributeValue{"request_id": &types.AttributeValueMemberS{Value: requestID}},
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return nil, store.ErrRequestNotFound
		}
		return nil, wrapAWSError(err, "failed to update request")
	}

	var req store.AccountRequest
	if err := attributevalue.UnmarshalMap(result.Attributes, &req); err != nil {
		return nil, fmt.Errorf("failed to unmarshal updated request: %w", err)
	}

	log.Debug().
		Str("request_id", requestID).
		Str("status", string(req.Status)).
		Msg("account request updated")

	return &req, nil
}

// Delete removes a request. DynamoDB deletes are idempotent, so a missing
// id is not an error.
func (s *RequestStore) Delete(ctx context.Context, requestID string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"request_id": &types.AttributeValueMemberS{Value: requestID},
		},
	})
	if err != nil {
		return wrapAWSError(err, "failed to delete request")
	}

	log.Debug().Str("request_id", requestID).Msg("account request deleted")

	return nil
}

func unmarshalRequests(items []map[string]types.AttributeValue) []*store.AccountRequest {
	requests := make([]*store.AccountRequest, 0, len(items))
	for _, item := range items {
		var req store.AccountRequest
		if err := attributevalue.UnmarshalMap(item, &req); err != nil {
			log.Error().Err(err).Msg("failed to unmarshal request, skipping")
			continue
		}
		requests = append(requests, &req)
	}
	return requests
}

func clampLimit(limit int) int32 {
	if limit > 2147483647 {
		return 2147483647
	}
	return int32(limit)
}

// wrapAWSError wraps AWS SDK errors, identifying throttling errors.
// Returns ErrBackendUnavailable for throttling errors, otherwise wraps the
// original error.
func wrapAWSError(err error, msg string) error {
	if err == nil {
		return nil
	}

	var provisionedErr *types.ProvisionedThroughputExceededException
	if errors.As(err, &provisionedErr) {
		return fmt.Errorf("%s: %w: %v", msg, store.ErrBackendUnavailable, err)
	}

	// AWS SDK v2 doesn't always use typed errors for all services
	errMsg := err.Error()
	if strings.Contains(errMsg, "ThrottlingException") ||
		strings.Contains(errMsg, "RequestLimitExceeded") ||
		strings.Contains(errMsg, "TooManyRequestsException") ||
		strings.Contains(errMsg, "Throttling") {
		return fmt.Errorf("%s: %w: %v", msg, store.ErrBackendUnavailable, err)
	}

	return fmt.Errorf("%s: %w", msg, err)
}

package aws

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/orgflow/internal/store"
)

// fakeDynamoDB implements DynamoDBAPI with function fields so each test can
// stub just the calls it cares about.
type fakeDynamoDB struct {
	getItem    func(*dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error)
	putItem    func(*dynamodb.PutItemInput) (*dynamodb.PutItemOutput, error)
	updateItem func(*dynamodb.UpdateItemInput) (*dynamodb.UpdateItemOutput, error)
	deleteItem func(*dynamodb.DeleteItemInput) (*dynamodb.DeleteItemOutput, error)
	query      func(*dynamodb.QueryInput) (*dynamodb.QueryOutput, error)
	scan       func(*dynamodb.ScanInput) (*dynamodb.ScanOutput, error)
}

func (f *fakeDynamoDB) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	return f.getItem(params)
}

func (f *fakeDynamoDB) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	return f.putItem(params)
}

func (f *fakeDynamoDB) UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	return f.updateItem(params)
}

func (f *fakeDynamoDB) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	return f.deleteItem(params)
}

func (f *fakeDynamoDB) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	return f.query(params)
}

func (f *fakeDynamoDB) Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	return f.scan(params)
}

func testRequest() *store.AccountRequest {
	now := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	return &store.AccountRequest{
		RequestID:   "migrate-2025-01-10-abc12345",
		Template:    "client",
		Email:       "team@example.com",
		Name:        "workload-dev",
		ClientID:    "acme",
		RequestedBy: "cli-user",
		TargetOU:    "Sandbox",
		Status:      store.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestRequestStore_Put(t *testing.T) {
	t.Run("put guards against duplicates with a condition expression", func(t *testing.T) {
		var captured *dynamodb.PutItemInput
		client := &fakeDynamoDB{
			putItem: func(input *dynamodb.PutItemInput) (*dynamodb.PutItemOutput, error) {
				captured = input
				return &dynamodb.PutItemOutput{}, nil
			},
		}

		st := NewRequestStore(client, "account-requests")
		require.NoError(t, st.Put(context.Background(), testRequest()))

		require.NotNil(t, captured)
		require.Equal(t, "account-requests", aws.ToString(captured.TableName))
		require.Equal(t, "attribute_not_exists(request_id)", aws.ToString(captured.ConditionExpression))
	})

	t.Run("conditional check failure maps to already exists", func(t *testing.T) {
		client := &fakeDynamoDB{
			putItem: func(input *dynamodb.PutItemInput) (*dynamodb.PutItemOutput, error) {
				return nil, &types.ConditionalCheckFailedException{}
			},
		}

		st := NewRequestStore(client, "account-requests")
		err := st.Put(context.Background(), testRequest())
		require.ErrorIs(t, err, store.ErrRequestAlreadyExists)
	})
}

func TestRequestStore_Get(t *testing.T) {
	t.Run("get round-trips the stored item", func(t *testing.T) {
		want := testRequest()
		item, err := attributevalue.MarshalMap(want)
		require.NoError(t, err)

		client := &fakeDynamoDB{
			getItem: func(input *dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error) {
				return &dynamodb.GetItemOutput{Item: item}, nil
			},
		}

		st := NewRequestStore(client, "account-requests")
		got, err := st.Get(context.Background(), want.RequestID)
		require.NoError(t, err)
		require.Equal(t, want.RequestID, got.RequestID)
		require.Equal(t, want.ClientID, got.ClientID)
		require.Equal(t, want.Status, got.Status)
	})

	t.Run("missing item maps to not found", func(t *testing.T) {
		client := &fakeDynamoDB{
			getItem: func(input *dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error) {
				return &dynamodb.GetItemOutput{}, nil
			},
		}

		st := NewRequestStore(client, "account-requests")
		_, err := st.Get(context.Background(), "missing")
		require.ErrorIs(t, err, store.ErrRequestNotFound)
	})
}

func TestRequestStore_List(t *testing.T) {
	t.Run("client id filter queries the GSI", func(t *testing.T) {
		var captured *dynamodb.QueryInput
		client := &fakeDynamoDB{
			query: func(input *dynamodb.QueryInput) (*dynamodb.QueryOutput, error) {
				captured = input
				return &dynamodb.QueryOutput{}, nil
			},
		}

		st := NewRequestStore(client, "account-requests")
		_, err := st.List(context.Background(), store.ListRequestsOptions{ClientID: "acme", Status: store.StatusPending, Limit: 5})
		require.NoError(t, err)

		require.NotNil(t, captured)
		require.Equal(t, ClientStatusIndex, aws.ToString(captured.IndexName))
		require.Equal(t, int32(5), aws.ToInt32(captured.Limit))
		require.NotNil(t, captured.KeyConditionExpression)
	})

	t.Run("bare status filter scans with a filter expression", func(t *testing.T) {
		var captured *dynamodb.ScanInput
		client := &fakeDynamoDB{
			scan: func(input *dynamodb.ScanInput) (*dynamodb.ScanOutput, error) {
				captured = input
				return &dynamodb.ScanOutput{}, nil
			},
		}

		st := NewRequestStore(client, "account-requests")
		_, err := st.List(context.Background(), store.ListRequestsOptions{Status: store.StatusFailed, Limit: 10})
		require.NoError(t, err)

		require.NotNil(t, captured)
		require.NotNil(t, captured.FilterExpression)
		require.Equal(t, int32(10), aws.ToInt32(captured.Limit))
	})

	t.Run("unfiltered list scans without a filter", func(t *testing.T) {
		items := make([]map[string]types.AttributeValue, 0, 2)
		for _, id := range []string{"req-1", "req-2"} {
			req := testRequest()
			req.RequestID = id
			item, err := attributevalue.MarshalMap(req)
			require.NoError(t, err)
			items = append(items, item)
		}

		client := &fakeDynamoDB{
			scan: func(input *dynamodb.ScanInput) (*dynamodb.ScanOutput, error) {
				require.Nil(t, input.FilterExpression)
				return &dynamodb.ScanOutput{Items: items}, nil
			},
		}

		st := NewRequestStore(client, "account-requests")
		result, err := st.List(context.Background(), store.ListRequestsOptions{})
		require.NoError(t, err)
		require.Len(t, result, 2)
	})
}

func TestRequestStore_Update(t *testing.T) {
	t.Run("update requires the record to exist", func(t *testing.T) {
		client := &fakeDynamoDB{
			updateItem: func(input *dynamodb.UpdateItemInput) (*dynamodb.UpdateItemOutput, error) {
				return nil, &types.ConditionalCheckFailedException{}
			},
		}

		st := NewRequestStore(client, "account-requests")
		status := store.StatusCompleted
		_, err := st.Update(context.Background(), "missing", store.RequestUpdate{Status: &status})
		require.ErrorIs(t, err, store.ErrRequestNotFound)
	})

	t.Run("update returns the merged record", func(t *testing.T) {
		updated := testRequest()
		updated.Status = store.StatusCompleted
		updated.AccountID = "198610579545"
		attrs, err := attributevalue.MarshalMap(updated)
		require.NoError(t, err)

		var captured *dynamodb.UpdateItemInput
		client := &fakeDynamoDB{
			updateItem: func(input *dynamodb.UpdateItemInput) (*dynamodb.UpdateItemOutput, error) {
				captured = input
				return &dynamodb.UpdateItemOutput{Attributes: attrs}, nil
			},
		}

		st := NewRequestStore(client, "account-requests")
		status := store.StatusCompleted
		accountID := "198610579545"
		got, err := st.Update(context.Background(), updated.RequestID, store.RequestUpdate{
			Status:    &status,
			AccountID: &accountID,
		})
		require.NoError(t, err)
		require.Equal(t, store.StatusCompleted, got.Status)
		require.Equal(t, "198610579545", got.AccountID)

		require.NotNil(t, captured)
		require.Equal(t, types.ReturnValueAllNew, captured.ReturnValues)
		require.NotNil(t, captured.ConditionExpression)
	})
}

func TestRequestStore_Delete(t *testing.T) {
	t.Run("delete is a plain key delete", func(t *testing.T) {
		var captured *dynamodb.DeleteItemInput
		client := &fakeDynamoDB{
			deleteItem: func(input *dynamodb.DeleteItemInput) (*dynamodb.DeleteItemOutput, error) {
				captured = input
				return &dynamodb.DeleteItemOutput{}, nil
			},
		}

		st := NewRequestStore(client, "account-requests")
		require.NoError(t, st.Delete(context.Background(), "req-1"))

		require.NotNil(t, captured)
		key, ok := captured.Key["request_id"].(*types.AttributeValueMemberS)
		require.True(t, ok)
		require.Equal(t, "req-1", key.Value)
	})
}

func TestWrapAWSError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		unavailable bool
	}{
		{
			name:        "provisioned throughput exceeded",
			err:         &types.ProvisionedThroughputExceededException{},
			unavailable: true,
		},
		{
			name:        "throttling message",
			err:         errors.New("operation error DynamoDB: ThrottlingException"),
			unavailable: true,
		},
		{
			name:        "other error passes through",
			err:         errors.New("operation error DynamoDB: ValidationException"),
			unavailable: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := wrapAWSError(tt.err, "op failed")
			require.Error(t, wrapped)
			require.Equal(t, tt.unavailable, errors.Is(wrapped, store.ErrBackendUnavailable))
		})
	}

	t.Run("nil error stays nil", func(t *testing.T) {
		require.NoError(t, wrapAWSError(nil, "op failed"))
	})
}

func TestRequestStoreImplementsInterface(t *testing.T) {
	var _ store.RequestStore = (*RequestStore)(nil)
}

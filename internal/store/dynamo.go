package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"taskpad/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// ErrNotFound reports an update against a key that is not in the table.
var ErrNotFound = errors.New("not found")

// ItemStore is the persistence contract the repository runs on. DynamoStore
// is the real thing; MemoryStore stands in for tests.
type ItemStore interface {
	QueryByOwner(ctx context.Context, ownerID string) ([]models.Item, error)
	PutItem(ctx context.Context, item models.Item) error
	UpdateItem(ctx context.Context, key models.Key, sets map[string]any, removes []string) (models.Item, error)
	DeleteItem(ctx context.Context, key models.Key) error
}

type DynamoStore struct {
	db        *dynamodb.Client
	tableName string
}

func NewDynamoStore(ctx context.Context) (*DynamoStore, error) {
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = "ap-northeast-3"
	}

	table := os.Getenv("DYNAMO_TABLE")
	if table == "" {
		return nil, fmt.Errorf("DYNAMO_TABLE is required")
	}

	endpoint := os.Getenv("DYNAMO_ENDPOINT")
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, err
	}

	client := dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	return &DynamoStore{db: client, tableName: table}, nil
}

// QueryByOwner returns every item in the owner's partition. ConsistentRead
// because an update right after a write must observe that write: Update
// relies on the conditional failing cleanly, not on a pre-check here.
func (s *DynamoStore) QueryByOwner(ctx context.Context, ownerID string) ([]models.Item, error) {
	var items []models.Item
	var startKey map[string]types.AttributeValue

	for {
		out, err := s.db.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(s.tableName),
			KeyConditionExpression: aws.String("#oid = :oid"),
			ExpressionAttributeNames: map[string]string{
				"#oid": models.FieldOwnerID,
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":oid": &types.AttributeValueMemberS{Value: ownerID},
			},
			ConsistentRead:    aws.Bool(true),
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, err
		}

		for _, av := range out.Items {
			items = append(items, models.FromAttributeValues(av))
		}

		if out.LastEvaluatedKey == nil {
			break
		}
		startKey = out.LastEvaluatedKey
	}

	return items, nil
}

func (s *DynamoStore) PutItem(ctx context.Context, item models.Item) error {
	av, err := models.ToAttributeValues(item)
	if err != nil {
		return err
	}

	_, err = s.db.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      av,
	})
	return err
}

// UpdateItem applies the set/remove mutation and returns the item as stored
// afterwards. The attribute_exists condition turns "key never existed" into
// ErrNotFound instead of DynamoDB's default upsert.
func (s *DynamoStore) UpdateItem(ctx context.Context, key models.Key, sets map[string]any, removes []string) (models.Item, error) {
	names := map[string]string{
		"#key": models.FieldOwnerID,
	}
	values := map[string]types.AttributeValue{}

	setNames := make([]string, 0, len(sets))
	for name := range sets {
		setNames = append(setNames, name)
	}
	sort.Strings(setNames)

	setExprs := make([]string, 0, len(setNames))
	for _, name := range setNames {
		av, err := models.ToAttributeValue(sets[name])
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		names["#_"+name] = name
		values[":"+name] = av
		setExprs = append(setExprs, fmt.Sprintf("#_%s = :%s", name, name))
	}

	expr := "SET " + strings.Join(setExprs, ", ")
	if len(removes) > 0 {
		removeExprs := make([]string, 0, len(removes))
		for _, name := range removes {
			names["#_"+name] = name
			removeExprs = append(removeExprs, "#_"+name)
		}
		expr += " REMOVE " + strings.Join(removeExprs, ", ")
	}

	out, err := s.db.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			models.FieldOwnerID: &types.AttributeValueMemberS{Value: key.OwnerID},
			models.FieldTaskID:  &types.AttributeValueMemberS{Value: key.TaskID},
		},
		ConditionExpression:       aws.String("attribute_exists(#key)"),
		UpdateExpression:          aws.String(expr),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		var cfe *types.ConditionalCheckFailedException
		if errors.As(err, &cfe) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return models.FromAttributeValues(out.Attributes), nil
}

// DeleteItem is unconditional; deleting an absent key succeeds.
func (s *DynamoStore) DeleteItem(ctx context.Context, key models.Key) error {
	_, err := s.db.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			models.FieldOwnerID: &types.AttributeValueMemberS{Value: key.OwnerID},
			models.FieldTaskID:  &types.AttributeValueMemberS{Value: key.TaskID},
		},
	})
	return err
}

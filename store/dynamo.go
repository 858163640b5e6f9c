package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/opencork/corkboard/internal/keys"
)

// Dynamo is the DynamoDB-backed Store. All records live in a single table
// keyed by pk = "{kind}:{id}", with a GSI on the parent attribute serving
// ListByParent.
type Dynamo struct {
	client *dynamodb.Client
	config Config
}

// NewDynamo creates a DynamoDB-backed store.
func NewDynamo(client *dynamodb.Client, config Config) *Dynamo {
	config.validate()
	return &Dynamo{
		client: client,
		config: config,
	}
}

// dynamoItem is the wire representation of a Record.
type dynamoItem struct {
	PK        string `dynamodbav:"pk"`
	Kind      string `dynamodbav:"kind"`
	ID        string `dynamodbav:"id"`
	Parent    string `dynamodbav:"parent,omitempty"`
	Data      []byte `dynamodbav:"data,omitempty"`
	Version   int64  `dynamodbav:"version"`
	CreatedAt string `dynamodbav:"created_at"`
	UpdatedAt string `dynamodbav:"updated_at"`
	ExpiresAt int64  `dynamodbav:"expires_at,omitempty"`
}

func toItem(rec *Record) dynamoItem {
	return dynamoItem{
		PK:        keys.Ref(string(rec.Kind), rec.ID),
		Kind:      string(rec.Kind),
		ID:        rec.ID,
		Parent:    rec.Parent,
		Data:      rec.Data,
		Version:   rec.Version,
		CreatedAt: rec.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: rec.UpdatedAt.UTC().Format(time.RFC3339),
		ExpiresAt: rec.ExpiresAt,
	}
}

func fromItem(item dynamoItem) (*Record, error) {
	createdAt, err := time.Parse(time.RFC3339, item.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	updatedAt, err := time.Parse(time.RFC3339, item.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &Record{
		Kind:      Kind(item.Kind),
		ID:        item.ID,
		Parent:    item.Parent,
		Data:      item.Data,
		Version:   item.Version,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
		ExpiresAt: item.ExpiresAt,
	}, nil
}

// Get implements Store. Reads are strongly consistent.
func (d *Dynamo) Get(ctx context.Context, kind Kind, id string) (*Record, error) {
	result, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.config.Table),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: keys.Ref(string(kind), id)},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if result.Item == nil {
		return nil, ErrNotFound
	}

	var item dynamoItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	if IsExpired(item.ExpiresAt, time.Now()) {
		return nil, ErrNotFound
	}
	return fromItem(item)
}

// Create implements Store. An expired record under the same key is replaced.
func (d *Dynamo) Create(ctx context.Context, rec *Record) error {
	now := time.Now()
	rec.Version = 1
	rec.CreatedAt = now.UTC()
	rec.UpdatedAt = rec.CreatedAt

	av, err := attributevalue.MarshalMap(toItem(rec))
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(d.config.Table),
		Item:                     av,
		ConditionExpression:      aws.String("attribute_not_exists(pk) OR (attribute_exists(#exp) AND #exp <= :now)"),
		ExpressionAttributeNames: liveFilterNames(),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberN{Value: nowAttr(now)},
		},
	})

	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return ErrAlreadyExists
	}
	return err
}

// Update implements Store. The whole item is replaced under a version
// condition; a lost race surfaces as ErrConcurrentModification regardless of
// whether the record was updated or deleted underneath us, and the caller's
// reload disambiguates.
func (d *Dynamo) Update(ctx context.Context, rec *Record, expectedVersion int64) error {
	now := time.Now()
	next := clone(rec)
	next.Version = expectedVersion + 1
	next.UpdatedAt = now.UTC()

	av, err := attributevalue.MarshalMap(toItem(next))
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(d.config.Table),
		Item:                     av,
		ConditionExpression:      aws.String("#version = :expected AND (" + liveFilterExpr() + ")"),
		ExpressionAttributeNames: mergeNames(liveFilterNames(), map[string]string{"#version": "version"}),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":expected": &types.AttributeValueMemberN{Value: strconv.FormatInt(expectedVersion, 10)},
			":now":      &types.AttributeValueMemberN{Value: nowAttr(now)},
		},
	})

	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return ErrConcurrentModification
	}
	if err != nil {
		return err
	}

	rec.Version = next.Version
	rec.CreatedAt = next.CreatedAt
	rec.UpdatedAt = next.UpdatedAt
	return nil
}

// Delete implements Store.
func (d *Dynamo) Delete(ctx context.Context, kind Kind, id string, expectedVersion int64) error {
	_, err := d.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(d.config.Table),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: keys.Ref(string(kind), id)},
		},
		ConditionExpression:      aws.String("attribute_exists(pk) AND #version = :expected"),
		ExpressionAttributeNames: map[string]string{"#version": "version"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":expected": &types.AttributeValueMemberN{Value: strconv.FormatInt(expectedVersion, 10)},
		},
	})

	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		// Disambiguate absent from version race for the caller.
		if _, getErr := d.Get(ctx, kind, id); errors.Is(getErr, ErrNotFound) {
			return ErrNotFound
		}
		return ErrConcurrentModification
	}
	return err
}

// ListByParent implements Store. Results come back in creation order via the
// parent index sort key.
func (d *Dynamo) ListByParent(ctx context.Context, kind Kind, parent string) ([]*Record, error) {
	now := time.Now()

	queryInput := &dynamodb.QueryInput{
		TableName:              aws.String(d.config.Table),
		IndexName:              aws.String(d.config.ParentIndex),
		KeyConditionExpression: aws.String("#parent = :parent"),
		FilterExpression:       aws.String("#kind = :kind AND (" + liveFilterExpr() + ")"),
		ExpressionAttributeNames: mergeNames(liveFilterNames(), map[string]string{
			"#parent": "parent",
			"#kind":   "kind",
		}),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":parent": &types.AttributeValueMemberS{Value: parent},
			":kind":   &types.AttributeValueMemberS{Value: string(kind)},
			":now":    &types.AttributeValueMemberN{Value: nowAttr(now)},
		},
	}

	var records []*Record
	paginator := dynamodb.NewQueryPaginator(d.client, queryInput)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range page.Items {
			var item dynamoItem
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				return nil, fmt.Errorf("unmarshal record: %w", err)
			}
			rec, err := fromItem(item)
			if err != nil {
				return nil, err
			}
			records = append(records, rec)
		}
	}

	return records, nil
}

// mergeNames merges expression attribute name maps.
func mergeNames(maps ...map[string]string) map[string]string {
	result := make(map[string]string)
	for _, m := range maps {
		for k, v := range m {
			result[k] = v
		}
	}
	return result
}

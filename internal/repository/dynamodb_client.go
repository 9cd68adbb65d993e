package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"order-relay/internal/objectstore"
)

const (
	pkPrefixObject = "OBJ#"
	skBlob         = "BLOB#"

	// UntaggedETag is reported for items written without an etag attribute.
	// A Put with IfMatch set to it succeeds only while the item still has none.
	UntaggedETag = "untagged"
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// Client stores JSON documents as single DynamoDB items. Every write stamps a
// fresh etag so callers can make the next write conditional on it.
type Client struct {
	api       dynamodbAPI
	tableName string
	now       func() time.Time
	newETag   func() string
}

var _ objectstore.Store = (*Client)(nil)

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{
		api:       api,
		tableName: tableName,
		now:       time.Now,
		newETag:   uuid.NewString,
	}, nil
}

// objectPK returns the partition key for a document key.
func objectPK(key string) string {
	return pkPrefixObject + key
}

func (c *Client) itemKey(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: objectPK(key)},
		"SK": &types.AttributeValueMemberS{Value: skBlob},
	}
}

// Get reads a document with a strongly consistent read.
func (c *Client) Get(ctx context.Context, key string) (objectstore.Object, error) {
	if strings.TrimSpace(key) == "" {
		return objectstore.Object{}, errors.New("repository: Get: key is required")
	}
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(c.tableName),
		Key:            c.itemKey(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return objectstore.Object{}, fmt.Errorf("repository: Get %q: %w", key, err)
	}
	if out == nil || len(out.Item) == 0 {
		return objectstore.Object{}, fmt.Errorf("repository: Get %q: %w", key, objectstore.ErrNotFound)
	}
	body, err := strAttr(out.Item, "body")
	if err != nil {
		return objectstore.Object{}, fmt.Errorf("repository: Get %q decode body: %w", key, err)
	}
	etag, _ := strAttr(out.Item, "etag")
	if etag == "" {
		etag = UntaggedETag
	}
	return objectstore.Object{Body: []byte(body), ETag: etag}, nil
}

// Put writes a document, honouring the preconditions in opts.
func (c *Client) Put(ctx context.Context, key string, body []byte, opts objectstore.PutOptions) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", errors.New("repository: Put: key is required")
	}
	etag := c.newETag()
	item := c.itemKey(key)
	item["body"] = &types.AttributeValueMemberS{Value: string(body)}
	item["etag"] = &types.AttributeValueMemberS{Value: etag}
	item["updatedAt"] = &types.AttributeValueMemberS{Value: c.now().UTC().Format(time.RFC3339Nano)}

	in := &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item:      item,
	}
	switch {
	case opts.IfNoneMatch:
		in.ConditionExpression = aws.String("attribute_not_exists(PK)")
	case opts.IfMatch == UntaggedETag:
		in.ConditionExpression = aws.String("attribute_exists(PK) AND (attribute_not_exists(etag) OR etag = :empty)")
		in.ExpressionAttributeValues = map[string]types.AttributeValue{
			":empty": &types.AttributeValueMemberS{Value: ""},
		}
	case opts.IfMatch != "":
		in.ConditionExpression = aws.String("etag = :etag")
		in.ExpressionAttributeValues = map[string]types.AttributeValue{
			":etag": &types.AttributeValueMemberS{Value: opts.IfMatch},
		}
	}

	if _, err := c.api.PutItem(ctx, in); err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return "", fmt.Errorf("repository: Put: %w", &objectstore.ConflictError{Key: key, ExpectedETag: opts.IfMatch})
		}
		return "", fmt.Errorf("repository: Put %q: %w", key, err)
	}
	return etag, nil
}

// Delete removes a document. Deleting a missing key is not an error.
func (c *Client) Delete(ctx context.Context, key string) error {
	if strings.TrimSpace(key) == "" {
		return errors.New("repository: Delete: key is required")
	}
	_, err := c.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(c.tableName),
		Key:       c.itemKey(key),
	})
	if err != nil {
		return fmt.Errorf("repository: Delete %q: %w", key, err)
	}
	return nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}

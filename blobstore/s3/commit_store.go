package s3

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// ErrConcurrentCommit is returned when another writer published the same
// snapshot version first.
var ErrConcurrentCommit = errors.New("s3: concurrent snapshot commit")

// DDBClient is the subset of the DynamoDB API the commit store uses.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// CommitStore tracks the latest committed snapshot in a DynamoDB table so
// multiple writers can publish snapshots without clobbering each other.
//
// The table uses "dataset" (S) as the partition key and "version" (N) as the
// sort key. A commit is a conditional put of the next version; losing the
// race surfaces as ErrConcurrentCommit.
type CommitStore struct {
	client  DDBClient
	table   string
	dataset string
}

// NewCommitStore creates a commit store for the given table and dataset.
func NewCommitStore(client DDBClient, table, dataset string) *CommitStore {
	return &CommitStore{
		client:  client,
		table:   table,
		dataset: dataset,
	}
}

// Latest returns the version and blob name of the most recently committed
// snapshot. A zero version means no snapshot has been committed yet.
func (c *CommitStore) Latest(ctx context.Context) (uint64, string, error) {
	resp, err := c.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(c.table),
		KeyConditionExpression: aws.String("dataset = :ds"),
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
			":ds": &ddbtypes.AttributeValueMemberS{Value: c.dataset},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return 0, "", fmt.Errorf("s3: query latest commit: %w", err)
	}
	if len(resp.Items) == 0 {
		return 0, "", nil
	}

	item := resp.Items[0]
	verAttr, ok := item["version"].(*ddbtypes.AttributeValueMemberN)
	if !ok {
		return 0, "", fmt.Errorf("s3: commit item missing version attribute")
	}
	version, err := strconv.ParseUint(verAttr.Value, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("s3: parse commit version: %w", err)
	}
	blobAttr, ok := item["blob_name"].(*ddbtypes.AttributeValueMemberS)
	if !ok {
		return 0, "", fmt.Errorf("s3: commit item missing blob_name attribute")
	}

	return version, blobAttr.Value, nil
}

// Commit publishes a new snapshot pointer. The put is conditional on the
// version not existing yet, so exactly one of two racing writers wins.
func (c *CommitStore) Commit(ctx context.Context, version uint64, blobName string) error {
	_, err := c.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.table),
		Item: map[string]ddbtypes.AttributeValue{
			"dataset":   &ddbtypes.AttributeValueMemberS{Value: c.dataset},
			"version":   &ddbtypes.AttributeValueMemberN{Value: strconv.FormatUint(version, 10)},
			"blob_name": &ddbtypes.AttributeValueMemberS{Value: blobName},
		},
		ConditionExpression: aws.String("attribute_not_exists(version)"),
	})
	if err != nil {
		var ccf *ddbtypes.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrConcurrentCommit
		}
		return fmt.Errorf("s3: commit snapshot pointer: %w", err)
	}
	return nil
}

// Remove deletes the pointer for a specific version, e.g. when pruning old
// snapshots.
func (c *CommitStore) Remove(ctx context.Context, version uint64) error {
	_, err := c.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(c.table),
		Key: map[string]ddbtypes.AttributeValue{
			"dataset": &ddbtypes.AttributeValueMemberS{Value: c.dataset},
			"version": &ddbtypes.AttributeValueMemberN{Value: strconv.FormatUint(version, 10)},
		},
	})
	if err != nil {
		return fmt.Errorf("s3: remove snapshot pointer: %w", err)
	}
	return nil
}

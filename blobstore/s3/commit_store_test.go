package s3

import (
	"context"
	"strconv"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDDB models the subset of DynamoDB semantics the commit store relies
// on: a versioned item set with conditional puts.
type fakeDDB struct {
	items map[uint64]string // version -> blob name
}

func newFakeDDB() *fakeDDB {
	return &fakeDDB{items: make(map[uint64]string)}
}

func (f *fakeDDB) PutItem(_ context.Context, params *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	version, err := strconv.ParseUint(params.Item["version"].(*ddbtypes.AttributeValueMemberN).Value, 10, 64)
	if err != nil {
		return nil, err
	}
	if _, exists := f.items[version]; exists {
		return nil, &ddbtypes.ConditionalCheckFailedException{}
	}
	f.items[version] = params.Item["blob_name"].(*ddbtypes.AttributeValueMemberS).Value
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDDB) Query(_ context.Context, _ *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	var latest uint64
	for v := range f.items {
		if v > latest {
			latest = v
		}
	}
	if latest == 0 {
		return &dynamodb.QueryOutput{}, nil
	}
	return &dynamodb.QueryOutput{
		Items: []map[string]ddbtypes.AttributeValue{{
			"version":   &ddbtypes.AttributeValueMemberN{Value: strconv.FormatUint(latest, 10)},
			"blob_name": &ddbtypes.AttributeValueMemberS{Value: f.items[latest]},
		}},
	}, nil
}

func (f *fakeDDB) DeleteItem(_ context.Context, params *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	version, err := strconv.ParseUint(params.Key["version"].(*ddbtypes.AttributeValueMemberN).Value, 10, 64)
	if err != nil {
		return nil, err
	}
	delete(f.items, version)
	return &dynamodb.DeleteItemOutput{}, nil
}

func TestCommitStoreLatestEmpty(t *testing.T) {
	cs := NewCommitStore(newFakeDDB(), "commits", "dashboard")

	version, name, err := cs.Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(0), version)
	assert.Empty(t, name)
}

func TestCommitStoreCommitAndLatest(t *testing.T) {
	ctx := context.Background()
	cs := NewCommitStore(newFakeDDB(), "commits", "dashboard")

	require.NoError(t, cs.Commit(ctx, 1, "snapshots/0000000000000001.snap"))
	require.NoError(t, cs.Commit(ctx, 2, "snapshots/0000000000000002.snap"))

	version, name, err := cs.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), version)
	assert.Equal(t, "snapshots/0000000000000002.snap", name)
}

func TestCommitStoreConcurrentCommit(t *testing.T) {
	ctx := context.Background()
	cs := NewCommitStore(newFakeDDB(), "commits", "dashboard")

	require.NoError(t, cs.Commit(ctx, 1, "a"))
	err := cs.Commit(ctx, 1, "b")
	assert.ErrorIs(t, err, ErrConcurrentCommit)

	// The first writer's pointer survives.
	_, name, err := cs.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", name)
}

func TestCommitStoreRemove(t *testing.T) {
	ctx := context.Background()
	cs := NewCommitStore(newFakeDDB(), "commits", "dashboard")

	require.NoError(t, cs.Commit(ctx, 1, "a"))
	require.NoError(t, cs.Commit(ctx, 2, "b"))
	require.NoError(t, cs.Remove(ctx, 2))

	version, name, err := cs.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), version)
	assert.Equal(t, "a", name)
}

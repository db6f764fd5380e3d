package journal

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/tabgo/record"
	"github.com/hupe1980/tabgo/resource"
)

func entry(entity, op string, version uint64, id uint64) Entry {
	return Entry{
		Entity:  entity,
		Op:      op,
		Version: version,
		Records: []record.Record{{
			ID:  id,
			Seq: id,
			Fields: record.Document{
				"name": record.String("Ada"),
				"age":  record.Int(36),
			},
		}},
	}
}

func collect(t *testing.T, j *Journal) []Entry {
	t.Helper()
	var out []Entry
	require.NoError(t, j.Replay(context.Background(), func(e Entry) error {
		out = append(out, e)
		return nil
	}))
	return out
}

func TestAppendAndReplay(t *testing.T) {
	dir := t.TempDir()
	j, err := Open(dir)
	require.NoError(t, err)
	defer func() { _ = j.Close() }()

	ctx := context.Background()
	require.NoError(t, j.Append(ctx, entry("customers", "create", 1, 1)))
	require.NoError(t, j.Append(ctx, entry("customers", "update", 2, 1)))
	require.NoError(t, j.Append(ctx, entry("orders", "create", 1, 1)))

	got := collect(t, j)
	require.Len(t, got, 3)

	// Sequence numbers are assigned in append order.
	assert.Equal(t, uint64(1), got[0].Seq)
	assert.Equal(t, uint64(2), got[1].Seq)
	assert.Equal(t, uint64(3), got[2].Seq)

	assert.Equal(t, "customers", got[0].Entity)
	assert.Equal(t, "update", got[1].Op)
	assert.Equal(t, "orders", got[2].Entity)

	name, _ := got[0].Records[0].Fields["name"].AsString()
	assert.Equal(t, "Ada", name)
}

func TestReopenResumesSequence(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	j, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, j.Append(ctx, entry("customers", "create", 1, 1)))
	require.NoError(t, j.Append(ctx, entry("customers", "create", 2, 2)))
	require.NoError(t, j.Close())

	j, err = Open(dir)
	require.NoError(t, err)
	defer func() { _ = j.Close() }()
	require.NoError(t, j.Append(ctx, entry("customers", "create", 3, 3)))

	got := collect(t, j)
	require.Len(t, got, 3)
	assert.Equal(t, uint64(3), got[2].Seq)
}

func TestCompressionRoundTrip(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	j, err := Open(dir, func(o *Options) { o.Compression = true })
	require.NoError(t, err)
	require.NoError(t, j.Append(ctx, entry("customers", "create", 1, 1)))
	require.NoError(t, j.Close())

	j, err = Open(dir, func(o *Options) { o.Compression = true })
	require.NoError(t, err)
	defer func() { _ = j.Close() }()

	got := collect(t, j)
	require.Len(t, got, 1)
	assert.Equal(t, "customers", got[0].Entity)
}

func TestTruncate(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	j, err := Open(dir)
	require.NoError(t, err)
	defer func() { _ = j.Close() }()

	require.NoError(t, j.Append(ctx, entry("customers", "create", 1, 1)))
	require.NoError(t, j.Truncate())

	assert.Empty(t, collect(t, j))

	// Sequence restarts after truncation.
	require.NoError(t, j.Append(ctx, entry("customers", "create", 2, 2)))
	got := collect(t, j)
	require.Len(t, got, 1)
	assert.Equal(t, uint64(1), got[0].Seq)
}

func TestTornFinalFrameTolerated(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	j, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, j.Append(ctx, entry("customers", "create", 1, 1)))
	require.NoError(t, j.Append(ctx, entry("customers", "create", 2, 2)))
	path := j.FilePath()
	require.NoError(t, j.Close())

	// Chop bytes off the final frame to simulate a crash mid-append.
	st, err := os.Stat(path)
	require.NoError(t, err)
	require.NoError(t, os.Truncate(path, st.Size()-5))

	j, err = Open(dir)
	require.NoError(t, err)
	defer func() { _ = j.Close() }()

	got := collect(t, j)
	require.Len(t, got, 1)
	assert.Equal(t, uint64(1), got[0].Seq)
}

func TestCorruptFrameDetected(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	j, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, j.Append(ctx, entry("customers", "create", 1, 1)))
	path := j.FilePath()
	require.NoError(t, j.Close())

	// Flip a payload byte in the middle of the file.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[len(data)/2] ^= 0xFF
	require.NoError(t, os.WriteFile(path, data, 0600))

	j2, err := Open(dir)
	if err != nil {
		assert.ErrorIs(t, err, ErrCorrupt)
		return
	}
	defer func() { _ = j2.Close() }()
	err = j2.Replay(ctx, func(Entry) error { return nil })
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestOversizedFrameLengthRejected(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	j, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, j.Append(ctx, entry("customers", "create", 1, 1)))
	path := j.FilePath()
	require.NoError(t, j.Close())

	// Append a frame header declaring an absurd payload length.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0600)
	require.NoError(t, err)
	head := []byte{0xFF, 0xFF, 0xFF, 0xFF, 0, 0, 0, 0, 0}
	_, err = f.Write(head)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = Open(dir)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestReplayWithIOLimit(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	c := resource.NewController(resource.Config{IOLimitBytesPerSec: 1 << 20})
	j, err := Open(dir, func(o *Options) { o.Controller = c })
	require.NoError(t, err)
	defer func() { _ = j.Close() }()

	require.NoError(t, j.Append(ctx, entry("customers", "create", 1, 1)))
	require.NoError(t, j.Append(ctx, entry("customers", "create", 2, 2)))

	got := collect(t, j)
	require.Len(t, got, 2)
	assert.Equal(t, uint64(2), got[1].Seq)
}

func TestBadMagicRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, fileName)
	require.NoError(t, os.WriteFile(path, []byte("NOPE\x01\x04json"), 0600))

	_, err := Open(dir)
	assert.Error(t, err)
}

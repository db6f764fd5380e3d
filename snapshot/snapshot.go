// Package snapshot persists and restores full engine state through a
// blobstore.
//
// A snapshot blob holds every collection at one point in time. Blobs carry a
// self-describing header (codec name, compression flag) and a CRC over the
// payload, so a load either yields the exact saved state or fails with
// ErrCorrupt.
package snapshot

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"sort"
	"time"

	"github.com/pierrec/lz4/v4"

	"github.com/hupe1980/tabgo/blobstore"
	"github.com/hupe1980/tabgo/codec"
	"github.com/hupe1980/tabgo/engine"
	"github.com/hupe1980/tabgo/record"
	"github.com/hupe1980/tabgo/resource"
)

const (
	magic         = "TBGS"
	formatVersion = 1

	flagCompressed = 1 << 0

	blobSuffix = ".snap"
)

// ErrCorrupt is returned when a snapshot blob fails its checksum or framing.
var ErrCorrupt = errors.New("snapshot: corrupt blob")

// ErrNoSnapshot is returned by LoadLatest when no snapshot exists.
var ErrNoSnapshot = errors.New("snapshot: no snapshot found")

// State is the serialized form of a snapshot.
type State struct {
	CreatedAt int64         `json:"created_at"` // unix milliseconds
	Entities  []EntityState `json:"entities"`
}

// EntityState is one collection's records and version stamp.
type EntityState struct {
	Entity  string          `json:"entity"`
	Version uint64          `json:"version"`
	Records []record.Record `json:"records"`
}

// Committer publishes snapshot pointers so concurrent writers cannot clobber
// each other's snapshots. A zero version from Latest means nothing has been
// committed yet.
type Committer interface {
	Latest(ctx context.Context) (version uint64, blobName string, err error)
	Commit(ctx context.Context, version uint64, blobName string) error
}

// Options configures a Manager.
type Options struct {
	// Codec encodes snapshot state. Defaults to codec.Default.
	Codec codec.Codec

	// Compression enables lz4 payload compression.
	Compression bool

	// Controller optionally bounds snapshot IO and background concurrency.
	Controller *resource.Controller

	// Committer optionally tracks the latest committed snapshot externally,
	// e.g. in DynamoDB. Without one, the lexically greatest blob name wins.
	Committer Committer

	// Prefix is prepended to blob names. Defaults to "snapshots/".
	Prefix string
}

// DefaultOptions are the options used when none are given.
var DefaultOptions = Options{
	Codec:  codec.Default,
	Prefix: "snapshots/",
}

// Manager saves and loads engine snapshots through a BlobStore.
type Manager struct {
	store blobstore.BlobStore
	opts  Options
}

// NewManager creates a snapshot manager backed by the given store.
func NewManager(store blobstore.BlobStore, optFns ...func(o *Options)) *Manager {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Codec == nil {
		opts.Codec = codec.Default
	}
	if opts.Prefix == "" {
		opts.Prefix = DefaultOptions.Prefix
	}
	return &Manager{store: store, opts: opts}
}

// Save persists the given collection snapshots as one blob and returns its
// name. With a Committer configured the blob is also published as the next
// snapshot version.
func (m *Manager) Save(ctx context.Context, snaps []engine.Snapshot) (string, error) {
	if err := m.opts.Controller.AcquireBackground(ctx); err != nil {
		return "", err
	}
	defer m.opts.Controller.ReleaseBackground()

	version := uint64(1)
	if m.opts.Committer != nil {
		latest, _, err := m.opts.Committer.Latest(ctx)
		if err != nil {
			return "", err
		}
		version = latest + 1
	} else {
		names, err := m.store.List(ctx, m.opts.Prefix)
		if err != nil {
			return "", err
		}
		if n := len(names); n > 0 {
			if v, ok := parseBlobVersion(names[n-1], m.opts.Prefix); ok {
				version = v + 1
			}
		}
	}

	state := State{CreatedAt: time.Now().UnixMilli()}
	for _, s := range snaps {
		state.Entities = append(state.Entities, EntityState{
			Entity:  s.Entity,
			Version: s.Version,
			Records: s.Records,
		})
	}
	sort.Slice(state.Entities, func(i, j int) bool {
		return state.Entities[i].Entity < state.Entities[j].Entity
	})

	data, err := m.encode(ctx, state)
	if err != nil {
		return "", err
	}

	name := fmt.Sprintf("%s%016d%s", m.opts.Prefix, version, blobSuffix)
	if err := m.store.Put(ctx, name, data); err != nil {
		return "", fmt.Errorf("snapshot: put blob: %w", err)
	}

	if m.opts.Committer != nil {
		if err := m.opts.Committer.Commit(ctx, version, name); err != nil {
			return "", err
		}
	}
	return name, nil
}

// LoadLatest loads the most recently committed snapshot.
func (m *Manager) LoadLatest(ctx context.Context) ([]engine.Snapshot, error) {
	name, err := m.latestName(ctx)
	if err != nil {
		return nil, err
	}
	return m.Load(ctx, name)
}

// Load loads a snapshot blob by name.
func (m *Manager) Load(ctx context.Context, name string) ([]engine.Snapshot, error) {
	blob, err := m.store.Open(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("snapshot: open blob: %w", err)
	}
	defer func() { _ = blob.Close() }()

	data, err := blobstore.ReadAll(ctx, blob)
	if err != nil {
		return nil, fmt.Errorf("snapshot: read blob: %w", err)
	}

	state, err := m.decode(ctx, data)
	if err != nil {
		return nil, err
	}

	snaps := make([]engine.Snapshot, 0, len(state.Entities))
	for _, e := range state.Entities {
		snaps = append(snaps, engine.Snapshot{
			Entity:  e.Entity,
			Version: e.Version,
			Records: e.Records,
		})
	}
	return snaps, nil
}

// Prune removes all snapshot blobs except the most recent keep ones.
func (m *Manager) Prune(ctx context.Context, keep int) error {
	if keep < 1 {
		keep = 1
	}
	names, err := m.store.List(ctx, m.opts.Prefix)
	if err != nil {
		return err
	}
	if len(names) <= keep {
		return nil
	}
	for _, name := range names[:len(names)-keep] {
		if err := m.store.Delete(ctx, name); err != nil {
			return fmt.Errorf("snapshot: prune %s: %w", name, err)
		}
	}
	return nil
}

func (m *Manager) latestName(ctx context.Context) (string, error) {
	if m.opts.Committer != nil {
		version, name, err := m.opts.Committer.Latest(ctx)
		if err != nil {
			return "", err
		}
		if version == 0 {
			return "", ErrNoSnapshot
		}
		return name, nil
	}

	names, err := m.store.List(ctx, m.opts.Prefix)
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "", ErrNoSnapshot
	}
	return names[len(names)-1], nil
}

// blob layout: magic(4) version(1) flags(1) codecLen(1) codecName(n)
// crc32(4) payloadLen(4) payload
func (m *Manager) encode(ctx context.Context, state State) ([]byte, error) {
	payload, err := m.opts.Codec.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("snapshot: encode state: %w", err)
	}

	var flags byte
	if m.opts.Compression {
		var buf bytes.Buffer
		zw := lz4.NewWriter(&buf)
		if _, err := zw.Write(payload); err != nil {
			return nil, fmt.Errorf("snapshot: compress: %w", err)
		}
		if err := zw.Close(); err != nil {
			return nil, fmt.Errorf("snapshot: compress: %w", err)
		}
		payload = buf.Bytes()
		flags |= flagCompressed
	}

	name := m.opts.Codec.Name()
	out := &bytes.Buffer{}
	out.Grow(15 + len(name) + len(payload))
	out.WriteString(magic)
	out.WriteByte(formatVersion)
	out.WriteByte(flags)
	out.WriteByte(byte(len(name)))
	out.WriteString(name)

	var fixed [8]byte
	binary.LittleEndian.PutUint32(fixed[0:4], crc32.ChecksumIEEE(payload))
	binary.LittleEndian.PutUint32(fixed[4:8], uint32(len(payload)))
	out.Write(fixed[:])

	w := io.Writer(out)
	if m.opts.Controller != nil {
		w = resource.NewRateLimitedWriter(ctx, w, m.opts.Controller)
	}
	if _, err := w.Write(payload); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func (m *Manager) decode(_ context.Context, data []byte) (State, error) {
	if len(data) < 7 || string(data[0:4]) != magic {
		return State{}, ErrCorrupt
	}
	if data[4] != formatVersion {
		return State{}, fmt.Errorf("snapshot: unsupported format version %d", data[4])
	}
	flags := data[5]
	nameLen := int(data[6])
	if len(data) < 7+nameLen+8 {
		return State{}, ErrCorrupt
	}

	c, ok := codec.ByName(string(data[7 : 7+nameLen]))
	if !ok {
		return State{}, fmt.Errorf("snapshot: unknown codec %q", data[7:7+nameLen])
	}

	rest := data[7+nameLen:]
	sum := binary.LittleEndian.Uint32(rest[0:4])
	length := binary.LittleEndian.Uint32(rest[4:8])
	payload := rest[8:]
	if uint32(len(payload)) != length {
		return State{}, ErrCorrupt
	}
	if crc32.ChecksumIEEE(payload) != sum {
		return State{}, ErrCorrupt
	}

	if flags&flagCompressed != 0 {
		decompressed, err := io.ReadAll(lz4.NewReader(bytes.NewReader(payload)))
		if err != nil {
			return State{}, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		payload = decompressed
	}

	var state State
	if err := c.Unmarshal(payload, &state); err != nil {
		return State{}, fmt.Errorf("snapshot: decode state: %w", err)
	}
	return state, nil
}

func parseBlobVersion(name, prefix string) (uint64, bool) {
	s := name
	if len(s) < len(prefix)+len(blobSuffix) {
		return 0, false
	}
	s = s[len(prefix) : len(s)-len(blobSuffix)]
	var v uint64
	for _, ch := range s {
		if ch < '0' || ch > '9' {
			return 0, false
		}
		v = v*10 + uint64(ch-'0')
	}
	return v, true
}

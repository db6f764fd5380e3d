// Package journal provides a write-behind commit journal.
//
// Every committed mutation is appended as one self-contained frame. The
// engine's in-memory state is the source of truth for reads regardless of
// journal timing; the journal exists so state can be rebuilt at startup by
// replaying entries in sequence order.
//
// Frames are length-prefixed, CRC-checked, and individually compressed, so
// appending to an existing journal after a restart needs no stream state.
package journal

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/hupe1980/tabgo/codec"
	"github.com/hupe1980/tabgo/record"
	"github.com/hupe1980/tabgo/resource"
)

// Entry is one committed mutation of one collection.
type Entry struct {
	Seq     uint64          `json:"seq"`
	Entity  string          `json:"entity"`
	Op      string          `json:"op"`
	Version uint64          `json:"version"`
	Records []record.Record `json:"records"`
}

// SyncMode controls when appended frames are fsynced.
type SyncMode uint8

const (
	// SyncAlways fsyncs after every append (durable, slower).
	SyncAlways SyncMode = iota
	// SyncOff leaves syncing to the OS (fast, may lose recent entries on
	// crash; the in-memory engine is the read source of truth either way).
	SyncOff
)

// Options configures a Journal.
type Options struct {
	// Codec encodes entries. Defaults to codec.Default.
	Codec codec.Codec

	// Compression enables per-frame zstd compression.
	Compression bool

	// SyncMode selects the durability/performance tradeoff.
	SyncMode SyncMode

	// Controller optionally bounds journal IO throughput.
	Controller *resource.Controller
}

// DefaultOptions are the options used when none are given.
var DefaultOptions = Options{
	Codec:    codec.Default,
	SyncMode: SyncAlways,
}

const (
	fileName = "tabgo.journal"

	magic         = "TBGJ"
	formatVersion = 1

	flagCompressed = 1 << 0

	// maxFrameSize bounds a frame's declared payload length. A corrupt
	// header must not force a multi-gigabyte allocation before the CRC
	// check can reject it.
	maxFrameSize = 64 << 20
)

var (
	// ErrCorrupt is returned when a frame fails its checksum or framing.
	ErrCorrupt = errors.New("journal: corrupt frame")

	encoder, _ = zstd.NewWriter(nil)
	decoder, _ = zstd.NewReader(nil)
)

// Journal is an append-only, replayable commit log.
type Journal struct {
	mu       sync.Mutex
	file     *os.File
	filePath string
	opts     Options
	seq      uint64
}

// Open creates or reopens a journal in the given directory.
func Open(path string, optFns ...func(o *Options)) (*Journal, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Codec == nil {
		opts.Codec = codec.Default
	}

	if err := os.MkdirAll(path, 0750); err != nil {
		return nil, fmt.Errorf("journal: create directory: %w", err)
	}
	filePath := filepath.Join(path, fileName)

	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_RDWR, 0600) //nolint:gosec // G304: path is configurable
	if err != nil {
		return nil, fmt.Errorf("journal: open file: %w", err)
	}

	j := &Journal{
		file:     file,
		filePath: filePath,
		opts:     opts,
	}

	st, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("journal: stat file: %w", err)
	}
	if st.Size() == 0 {
		if err := j.writeHeader(); err != nil {
			_ = file.Close()
			return nil, err
		}
	} else {
		if err := j.readHeader(); err != nil {
			_ = file.Close()
			return nil, err
		}
		// Seq resumes after the highest replayed entry.
		if err := j.Replay(context.Background(), func(e Entry) error {
			if e.Seq > j.seq {
				j.seq = e.Seq
			}
			return nil
		}); err != nil {
			_ = file.Close()
			return nil, err
		}
	}

	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("journal: seek end: %w", err)
	}

	return j, nil
}

// FilePath returns the path of the journal file.
func (j *Journal) FilePath() string {
	return j.filePath
}

// Append writes one entry. The entry's Seq is assigned by the journal.
func (j *Journal) Append(ctx context.Context, e Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.seq++
	e.Seq = j.seq

	payload, err := j.opts.Codec.Marshal(e)
	if err != nil {
		return fmt.Errorf("journal: encode entry: %w", err)
	}

	var flags byte
	if j.opts.Compression {
		payload = encoder.EncodeAll(payload, nil)
		flags |= flagCompressed
	}

	frame := make([]byte, 9+len(payload))
	binary.LittleEndian.PutUint32(frame[0:4], uint32(len(payload)))
	binary.LittleEndian.PutUint32(frame[4:8], crc32.ChecksumIEEE(payload))
	frame[8] = flags
	copy(frame[9:], payload)

	w := io.Writer(j.file)
	if j.opts.Controller != nil {
		w = resource.NewRateLimitedWriter(ctx, w, j.opts.Controller)
	}
	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("journal: append frame: %w", err)
	}

	if j.opts.SyncMode == SyncAlways {
		if err := j.file.Sync(); err != nil {
			return fmt.Errorf("journal: fsync: %w", err)
		}
	}
	return nil
}

// Replay invokes fn for every entry in append order. It reads the file
// independently of the append position, so it is safe on an open journal.
func (j *Journal) Replay(ctx context.Context, fn func(Entry) error) error {
	f, err := os.Open(j.filePath)
	if err != nil {
		return fmt.Errorf("journal: open for replay: %w", err)
	}
	defer func() { _ = f.Close() }()

	src := io.Reader(f)
	if j.opts.Controller != nil {
		src = resource.NewRateLimitedReader(ctx, f, j.opts.Controller)
	}
	r := bufio.NewReader(src)
	if err := skipHeader(r); err != nil {
		return err
	}

	var head [9]byte
	for {
		if _, err := io.ReadFull(r, head[:]); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			// A torn final frame is treated as end of journal.
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			return fmt.Errorf("journal: read frame header: %w", err)
		}

		length := binary.LittleEndian.Uint32(head[0:4])
		sum := binary.LittleEndian.Uint32(head[4:8])
		flags := head[8]

		if length > maxFrameSize {
			return fmt.Errorf("%w: frame length %d exceeds limit", ErrCorrupt, length)
		}

		payload := make([]byte, length)
		if _, err := io.ReadFull(r, payload); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			return fmt.Errorf("journal: read frame payload: %w", err)
		}
		if crc32.ChecksumIEEE(payload) != sum {
			return ErrCorrupt
		}

		if flags&flagCompressed != 0 {
			payload, err = decoder.DecodeAll(payload, nil)
			if err != nil {
				return fmt.Errorf("%w: %w", ErrCorrupt, err)
			}
		}

		var e Entry
		if err := j.opts.Codec.Unmarshal(payload, &e); err != nil {
			return fmt.Errorf("journal: decode entry: %w", err)
		}
		if err := fn(e); err != nil {
			return err
		}
	}
}

// Truncate discards all entries, e.g. after the state has been captured in
// a snapshot.
func (j *Journal) Truncate() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.file.Truncate(0); err != nil {
		return fmt.Errorf("journal: truncate: %w", err)
	}
	if _, err := j.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("journal: seek start: %w", err)
	}
	if err := j.writeHeader(); err != nil {
		return err
	}
	j.seq = 0
	return nil
}

// Close syncs and closes the journal file.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.file.Sync(); err != nil {
		_ = j.file.Close()
		return fmt.Errorf("journal: fsync on close: %w", err)
	}
	return j.file.Close()
}

// header: magic(4) version(1) codecLen(1) codecName(n)
func (j *Journal) writeHeader() error {
	name := j.opts.Codec.Name()
	buf := make([]byte, 0, 6+len(name))
	buf = append(buf, magic...)
	buf = append(buf, formatVersion, byte(len(name)))
	buf = append(buf, name...)
	if _, err := j.file.Write(buf); err != nil {
		return fmt.Errorf("journal: write header: %w", err)
	}
	if err := j.file.Sync(); err != nil {
		return fmt.Errorf("journal: fsync header: %w", err)
	}
	return nil
}

func (j *Journal) readHeader() error {
	if _, err := j.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("journal: seek start: %w", err)
	}
	r := bufio.NewReader(j.file)

	var fixed [6]byte
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		return fmt.Errorf("journal: read header: %w", err)
	}
	if string(fixed[0:4]) != magic {
		return fmt.Errorf("journal: bad magic %q", fixed[0:4])
	}
	if fixed[4] != formatVersion {
		return fmt.Errorf("journal: unsupported format version %d", fixed[4])
	}
	name := make([]byte, fixed[5])
	if _, err := io.ReadFull(r, name); err != nil {
		return fmt.Errorf("journal: read codec name: %w", err)
	}

	c, ok := codec.ByName(string(name))
	if !ok {
		return fmt.Errorf("journal: unknown codec %q", name)
	}
	j.opts.Codec = c
	return nil
}

func skipHeader(r *bufio.Reader) error {
	var fixed [6]byte
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		return fmt.Errorf("journal: read header: %w", err)
	}
	if string(fixed[0:4]) != magic {
		return fmt.Errorf("journal: bad magic %q", fixed[0:4])
	}
	if _, err := io.CopyN(io.Discard, r, int64(fixed[5])); err != nil {
		return fmt.Errorf("journal: skip codec name: %w", err)
	}
	return nil
}

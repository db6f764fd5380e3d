package tabgo

import (
	"log/slog"

	"github.com/hupe1980/tabgo/blobstore"
	"github.com/hupe1980/tabgo/codec"
	"github.com/hupe1980/tabgo/engine"
	"github.com/hupe1980/tabgo/journal"
	"github.com/hupe1980/tabgo/resource"
	"github.com/hupe1980/tabgo/snapshot"
)

type options struct {
	codec            codec.Codec
	cacheCapacity    int
	metricsCollector MetricsCollector
	logger           *Logger
	journalPath      string
	journalOptions   []func(*journal.Options)
	snapshotStore    blobstore.BlobStore
	snapshotOptions  []func(*snapshot.Options)
	controller       *resource.Controller
	commitHooks      []engine.CommitHook
}

// Option configures DB constructor behavior.
//
// Options exist to avoid exploding the API surface
// (e.g. codec-specific constructor variants).
type Option func(*options)

// WithCodec configures the codec used for journal entries and snapshots.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithCacheCapacity bounds the number of cached result pages per entity.
// Values <= 0 fall back to cache.DefaultCapacity.
func WithCacheCapacity(capacity int) Option {
	return func(o *options) {
		o.cacheCapacity = capacity
	}
}

// WithJournal enables the write-behind commit journal at the given directory.
// Committed mutations are appended after each commit and replayed at the next
// Open to rebuild state.
//
// Example:
//
//	db, _ := tabgo.Open(schemas,
//	    tabgo.WithJournal("./data", func(o *journal.Options) {
//	        o.Compression = true
//	        o.SyncMode = journal.SyncOff
//	    }))
func WithJournal(path string, optFns ...func(*journal.Options)) Option {
	return func(o *options) {
		o.journalPath = path
		o.journalOptions = optFns
	}
}

// WithSnapshotStore configures where SaveSnapshot persists full-state
// snapshots and where Open restores from. Any blobstore implementation works:
// local disk, S3, MinIO, or in-memory for tests.
func WithSnapshotStore(store blobstore.BlobStore, optFns ...func(*snapshot.Options)) Option {
	return func(o *options) {
		o.snapshotStore = store
		o.snapshotOptions = optFns
	}
}

// WithResourceController bounds background work: journal and snapshot IO
// throughput and concurrent snapshot saves. Foreground queries and mutations
// are never throttled.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.controller = rc
	}
}

// WithCommitHook registers an additional hook invoked after every committed
// mutation, e.g. to drive UI refreshes or outbound notifications.
func WithCommitHook(h engine.CommitHook) Option {
	return func(o *options) {
		if h != nil {
			o.commitHooks = append(o.commitHooks, h)
		}
	}
}

// WithMetricsCollector configures a metrics collector for monitoring
// operations. Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &tabgo.BasicMetricsCollector{}
//	db, _ := tabgo.Open(schemas, tabgo.WithMetricsCollector(metrics))
//	// ... use db ...
//	stats := metrics.GetStats()
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := tabgo.NewJSONLogger(slog.LevelInfo)
//	db, _ := tabgo.Open(schemas, tabgo.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		codec:            nil,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.metricsCollector == nil {
		o.metricsCollector = NoopMetricsCollector{}
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	return o
}

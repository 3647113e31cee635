package conntrack

import (
	"errors"
	"log"
	"math"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	trackedConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "conntrack_tracked_connections",
		Help: "Number of connections currently held in tracking tables",
	})
	connectionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "conntrack_connections_created",
		Help: "Counter of connections created by track calls",
	})
	connectionsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "conntrack_connections_expired",
		Help: "Counter of connections reclaimed or reset after idling past the timeout",
	})
	connectionsEvicted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "conntrack_connections_evicted",
		Help: "Counter of connections evicted because a table reached its maximum size",
	})
)

// ErrCounterOverflow is returned by Track when a connection's packet counter
// would wrap around. The entry is left untouched.
var ErrCounterOverflow = errors.New("packet counter overflow")

// entry is the table-owned state of one connection. Entries never leave the
// tracker's lock; callers only see snapshots.
type entry[C any] struct {
	custom        *C
	packetCounter uint64
	lastSeen      time.Time
}

// Connection is a point-in-time snapshot of one tracked flow. Custom holds a
// copy of the caller data attached via SetData, nil if none was set. Safe to
// retain after the call that produced it.
type Connection[K comparable, C any] struct {
	ID            Identifier[K]
	Custom        *C
	PacketCounter uint64
	LastSeen      time.Time
}

// Tracker is the authoritative table of live connections, keyed by canonical
// Identifier. All methods are safe for concurrent use; operations on the same
// identifier are serialized, so concurrent Track calls never lose counter
// increments.
//
// An entry idle for longer than the timeout is treated as absent by every
// lookup, and its memory is reclaimed by PurgeExpired. The table is kept in
// least-recently-tracked order: when it is full, the connection whose last
// packet is oldest is evicted to make room.
type Tracker[K comparable, C any] struct {
	mu      sync.Mutex
	entries *simplelru.LRU[Identifier[K], *entry[C]]

	timeout        time.Duration
	maxConnections int

	now func() time.Time
}

// New creates a Tracker with the default timeout (10 minutes) and connection
// limit (1 million).
func New[K comparable, C any]() *Tracker[K, C] {
	return NewWithConfig[K, C](DefaultConfig())
}

// NewWithTimeout creates a Tracker with the given idle timeout and default
// settings otherwise. The timeout is fixed for the tracker's lifetime.
func NewWithTimeout[K comparable, C any](timeout time.Duration) *Tracker[K, C] {
	cfg := DefaultConfig()
	cfg.Timeout = timeout
	return NewWithConfig[K, C](cfg)
}

// NewWithConfig creates a Tracker from explicit configuration.
func NewWithConfig[K comparable, C any](cfg TrackerConfig) *Tracker[K, C] {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	maxConnections := cfg.MaxConnections
	if maxConnections < 0 {
		maxConnections = 0
	}
	// The recency list is bounded by the tracker itself, not by the LRU,
	// so eviction can be counted and logged.
	entries, _ := simplelru.NewLRU[Identifier[K], *entry[C]](math.MaxInt, nil)
	return &Tracker[K, C]{
		entries:        entries,
		timeout:        timeout,
		maxConnections: maxConnections,
		now:            time.Now,
	}
}

// Timeout returns the idle duration after which a connection expires.
func (t *Tracker[K, C]) Timeout() time.Duration {
	return t.timeout
}

// Track records one observed packet for the flow behind id. A never-seen or
// expired identifier gets a fresh connection with a packet counter of 1 and
// no custom data; a live one gets its counter incremented and its last-seen
// timestamp refreshed. If the table is full, the least-recently-tracked
// connection is evicted to make room.
//
// The only failure is ErrCounterOverflow, which leaves the table unchanged.
func (t *Tracker[K, C]) Track(id Identifier[K]) (Connection[K, C], error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if ent, ok := t.entries.Get(id); ok {
		if now.Sub(ent.lastSeen) > t.timeout {
			// Idle past the timeout: reuse the slot for a fresh
			// connection, so Len stays stable until the next sweep.
			ent.packetCounter = 1
			ent.custom = nil
			ent.lastSeen = now
			connectionsExpired.Inc()
			connectionsCreated.Inc()
			return snapshot(id, ent), nil
		}
		if ent.packetCounter == math.MaxUint64 {
			return Connection[K, C]{}, ErrCounterOverflow
		}
		ent.packetCounter++
		ent.lastSeen = now
		return snapshot(id, ent), nil
	}

	if t.maxConnections > 0 && t.entries.Len() >= t.maxConnections {
		if oldest, _, ok := t.entries.RemoveOldest(); ok {
			connectionsEvicted.Inc()
			trackedConnections.Dec()
			log.Printf("Connection evicted (table full): %s", oldest)
		}
	}
	ent := &entry[C]{packetCounter: 1, lastSeen: now}
	t.entries.Add(id, ent)
	trackedConnections.Inc()
	connectionsCreated.Inc()
	return snapshot(id, ent), nil
}

// Get returns a snapshot of the connection behind id without refreshing its
// counter, timestamp, or table position. Absent and expired identifiers both
// report false; a first-packet miss is an expected case, not an error.
func (t *Tracker[K, C]) Get(id Identifier[K]) (Connection[K, C], bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ent, ok := t.entries.Peek(id)
	if !ok || t.now().Sub(ent.lastSeen) > t.timeout {
		return Connection[K, C]{}, false
	}
	return snapshot(id, ent), true
}

// Remove evicts the connection behind id and returns its final snapshot. A
// removal of an absent identifier is a no-op; an expired entry is reclaimed
// but reported as absent, matching Get.
func (t *Tracker[K, C]) Remove(id Identifier[K]) (Connection[K, C], bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ent, ok := t.entries.Peek(id)
	if !ok {
		return Connection[K, C]{}, false
	}
	t.entries.Remove(id)
	trackedConnections.Dec()
	if t.now().Sub(ent.lastSeen) > t.timeout {
		connectionsExpired.Inc()
		return Connection[K, C]{}, false
	}
	return snapshot(id, ent), true
}

// SetData attaches caller data to a live connection. Writes are funneled
// through the tracker so they serialize with Track's updates on the same
// entry. Reports false if the identifier is absent or expired.
func (t *Tracker[K, C]) SetData(id Identifier[K], value C) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	ent, ok := t.entries.Peek(id)
	if !ok || t.now().Sub(ent.lastSeen) > t.timeout {
		return false
	}
	ent.custom = &value
	return true
}

// Len returns the number of table slots in use, including expired entries
// that no sweep has reclaimed yet.
func (t *Tracker[K, C]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.entries.Len()
}

// PurgeExpired removes every connection idle past the timeout as of now and
// returns how many were removed. The table is scanned oldest-first and the
// scan stops at the first live entry; only Track refreshes table order, so
// recency order and last-seen order are the same order.
//
// Hosts are expected to call this periodically, e.g. from a Sweeper.
func (t *Tracker[K, C]) PurgeExpired(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for {
		_, ent, ok := t.entries.GetOldest()
		if !ok || now.Sub(ent.lastSeen) <= t.timeout {
			break
		}
		t.entries.RemoveOldest()
		removed++
	}
	if removed > 0 {
		trackedConnections.Sub(float64(removed))
		connectionsExpired.Add(float64(removed))
	}
	return removed
}

// snapshot copies an entry into a caller-safe Connection. Custom data is
// copied by value so the caller cannot race the table through the pointer.
func snapshot[K comparable, C any](id Identifier[K], ent *entry[C]) Connection[K, C] {
	conn := Connection[K, C]{
		ID:            id,
		PacketCounter: ent.packetCounter,
		LastSeen:      ent.lastSeen,
	}
	if ent.custom != nil {
		v := *ent.custom
		conn.Custom = &v
	}
	return conn
}

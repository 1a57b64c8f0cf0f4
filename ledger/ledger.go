// Package ledger is the authoritative record of which recipients have
// already been notified about which offers.
package ledger

import (
	"context"
	"log/slog"
	"sync"

	"chalet-notifier/pkg/vacancy"
)

// Store persists notification records as tabular rows with columns
// recipient, sourceUrl, startDate, endDate.
type Store interface {
	// LoadAll returns every stored record, excluding any header row.
	LoadAll(ctx context.Context) ([]vacancy.Record, error)
	// Append adds one row per record. Duplicate rows are harmless.
	Append(ctx context.Context, records []vacancy.Record) error
}

// Ledger answers "already notified?" from an in-memory index hydrated from
// its store at the start of each run.
type Ledger struct {
	store  Store
	logger *slog.Logger
	index  map[string]struct{}
}

// New creates a ledger over the given store. Call Hydrate before querying.
func New(store Store, logger *slog.Logger) *Ledger {
	return &Ledger{
		store:  store,
		logger: logger,
		index:  make(map[string]struct{}),
	}
}

func pairKey(recipient string, offer vacancy.Offer) string {
	return recipient + "\t" + offer.Key()
}

// Hydrate loads the full record set into the index. An unreachable store
// fails open: the run proceeds as if nothing had been notified, trading a
// possible duplicate email for never silently suppressing one.
func (l *Ledger) Hydrate(ctx context.Context) {
	records, err := l.store.LoadAll(ctx)
	if err != nil {
		l.logger.Warn("Ledger read failed, treating all offers as unnotified", "error", err)
		l.index = make(map[string]struct{})
		return
	}

	index := make(map[string]struct{}, len(records))
	for _, rec := range records {
		index[pairKey(rec.Recipient, rec.Offer)] = struct{}{}
	}
	l.index = index

	l.logger.Info("Ledger hydrated", "records", len(records), "pairs", len(index))
}

// HasBeenNotified reports whether this exact (recipient, offer) pair has a
// record. Safe to call before any network activity.
func (l *Ledger) HasBeenNotified(recipient string, offer vacancy.Offer) bool {
	_, ok := l.index[pairKey(recipient, offer)]
	return ok
}

// FullyNotified reports whether every recipient already has a record for the
// offer. An offer is only worth re-checking while someone hasn't been told.
func (l *Ledger) FullyNotified(recipients []string, offer vacancy.Offer) bool {
	for _, r := range recipients {
		if !l.HasBeenNotified(r, offer) {
			return false
		}
	}
	return len(recipients) > 0
}

// RecordAll appends a record for every (recipient, offer) pair. Pairs already
// indexed are skipped, so repeated calls do not accumulate duplicates. A
// store write failure is logged and swallowed: the notification has already
// gone out and must not be rolled back.
func (l *Ledger) RecordAll(ctx context.Context, recipients []string, offers []vacancy.Offer) {
	var fresh []vacancy.Record
	for _, offer := range offers {
		for _, recipient := range recipients {
			key := pairKey(recipient, offer)
			if _, ok := l.index[key]; ok {
				continue
			}
			l.index[key] = struct{}{}
			fresh = append(fresh, vacancy.Record{Recipient: recipient, Offer: offer})
		}
	}

	if len(fresh) == 0 {
		return
	}

	if err := l.store.Append(ctx, fresh); err != nil {
		l.logger.Warn("Ledger write failed, records kept in memory only",
			"records", len(fresh),
			"error", err)
		return
	}

	l.logger.Info("Notification records stored", "records", len(fresh))
}

// RecordNotified appends a single (recipient, offer) record.
func (l *Ledger) RecordNotified(ctx context.Context, recipient string, offer vacancy.Offer) {
	l.RecordAll(ctx, []string{recipient}, []vacancy.Offer{offer})
}

// MemoryStore keeps records in process memory. It backs run-once deployments
// and tests; records do not survive a restart.
type MemoryStore struct {
	mu      sync.Mutex
	records []vacancy.Record
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// LoadAll returns a copy of the stored records.
func (m *MemoryStore) LoadAll(_ context.Context) ([]vacancy.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]vacancy.Record, len(m.records))
	copy(out, m.records)
	return out, nil
}

// Append adds records.
func (m *MemoryStore) Append(_ context.Context, records []vacancy.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, records...)
	return nil
}

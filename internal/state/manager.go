package state

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"

	"github.com/dgraph-io/badger/v3"
	"github.com/evanofslack/ddns-sync/internal/metrics"
	"github.com/evanofslack/ddns-sync/internal/reconcile"
)

const (
	reportPrefix = "report:"
	seqKey       = "meta:seq"

	DefaultRecentLimit = 20
)

// Manager is the sync log: reports newest first, at most maxLogs kept.
type Manager interface {
	Append(ctx context.Context, report reconcile.SyncReport) error
	Recent(ctx context.Context, limit int) ([]reconcile.SyncReport, error)
	Close() error
}

type badgerManager struct {
	db      *badger.DB
	maxLogs int
	metrics *metrics.Metrics
}

func New(path string, maxLogs int, metrics *metrics.Metrics) (Manager, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // Disable Badger's internal logger

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}
	if maxLogs <= 0 {
		maxLogs = 1
	}
	m := &badgerManager{db: db, maxLogs: maxLogs, metrics: metrics}
	return m, nil
}

// reportKey sorts newer sequence numbers first under forward iteration.
func reportKey(seq uint64) []byte {
	key := make([]byte, len(reportPrefix)+8)
	copy(key, reportPrefix)
	binary.BigEndian.PutUint64(key[len(reportPrefix):], math.MaxUint64-seq)
	return key
}

func (m *badgerManager) Append(ctx context.Context, report reconcile.SyncReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		m.metrics.IncBadgerRequest("create", false)
		return fmt.Errorf("marshal report: %w", err)
	}

	err = m.db.Update(func(txn *badger.Txn) error {
		var seq uint64
		item, err := txn.Get([]byte(seqKey))
		switch {
		case err == nil:
			if err := item.Value(func(val []byte) error {
				seq = binary.BigEndian.Uint64(val)
				return nil
			}); err != nil {
				return err
			}
		case err != badger.ErrKeyNotFound:
			return err
		}
		seq++

		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, seq)
		if err := txn.Set([]byte(seqKey), buf); err != nil {
			return err
		}
		if err := txn.Set(reportKey(seq), data); err != nil {
			return err
		}
		return m.trim(txn)
	})
	m.metrics.IncBadgerRequest("create", err == nil)
	return err
}

// trim drops everything past the newest maxLogs reports.
func (m *badgerManager) trim(txn *badger.Txn) error {
	var stale [][]byte

	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	prefix := []byte(reportPrefix)
	n := 0
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		n++
		if n > m.maxLogs {
			stale = append(stale, it.Item().KeyCopy(nil))
		}
	}
	it.Close()

	for _, key := range stale {
		if err := txn.Delete(key); err != nil {
			m.metrics.IncBadgerRequest("delete", false)
			return err
		}
	}
	if len(stale) > 0 {
		m.metrics.IncBadgerRequest("delete", true)
	}
	return nil
}

func (m *badgerManager) Recent(ctx context.Context, limit int) ([]reconcile.SyncReport, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	reports := []reconcile.SyncReport{}

	err := m.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(reportPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix) && len(reports) < limit; it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var report reconcile.SyncReport
				if err := json.Unmarshal(val, &report); err != nil {
					return err
				}
				reports = append(reports, report)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	m.metrics.IncBadgerRequest("read", err == nil)
	return reports, err
}

func (m *badgerManager) Close() error {
	return m.db.Close()
}

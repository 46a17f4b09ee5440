package trainqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"skipper/internal/logger"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

// Entry is one training request as seen by callers. Context carries the
// history metrics observed at enqueue time so the trainer can sanity-check
// them without re-deriving.
type Entry struct {
	ID          string
	Symbol      string
	Reason      string
	RequestedAt time.Time
	Attempts    int
	Context     map[string]any
}

// Store is the durable training queue. skipper is the single writer; the
// external trainer consumes entries at its own cadence. sqlite + WAL keeps
// cross-process reads cheap and restarts lossless.
type Store struct {
	db *gorm.DB
}

func NewStore(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("training queue path cannot be empty")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	// DriverName points the dialector at the pure-Go driver the _pragma DSN
	// syntax targets; the default cgo driver rejects these parameters.
	db, err := gorm.Open(sqlite.Dialector{DriverName: "sqlite", DSN: dsn}, &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&entryModel{}, &historyModel{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// Single writer; a second conn lets the HTTP status reads bypass it.
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Enqueue inserts the entry unless the symbol already has a pending one, in
// which case it is a no-op. Returns whether a row was written.
func (s *Store) Enqueue(ctx context.Context, e Entry) (bool, error) {
	n, err := s.enqueueTx(ctx, s.db, e)
	return n > 0, err
}

// EnqueueBatch writes all entries in one transaction: either every
// non-duplicate entry lands or none do. Returns how many were inserted.
func (s *Store) EnqueueBatch(ctx context.Context, entries []Entry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	total := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, e := range entries {
			n, err := s.enqueueTx(ctx, tx, e)
			if err != nil {
				return err
			}
			total += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) enqueueTx(ctx context.Context, tx *gorm.DB, e Entry) (int64, error) {
	sym := strings.TrimSpace(e.Symbol)
	if sym == "" {
		return 0, fmt.Errorf("enqueue requires a symbol")
	}
	now := time.Now().UTC()
	requestedAt := e.RequestedAt
	if requestedAt.IsZero() {
		requestedAt = now
	}
	var ctxJSON datatypes.JSON
	if len(e.Context) > 0 {
		raw, err := json.Marshal(e.Context)
		if err != nil {
			return 0, fmt.Errorf("marshal entry context: %w", err)
		}
		ctxJSON = raw
	}
	row := entryModel{
		ID:            uuid.NewString(),
		Symbol:        sym,
		Reason:        e.Reason,
		RequestedAt:   requestedAt.Unix(),
		ContextJSON:   ctxJSON,
		CreatedAtUnix: now.Unix(),
		UpdatedAtUnix: now.Unix(),
	}
	res := tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "symbol"}},
		DoNothing: true,
	}).Create(&row)
	return res.RowsAffected, res.Error
}

// PendingSymbols returns the set of symbols with an unconsumed entry.
func (s *Store) PendingSymbols(ctx context.Context) (map[string]struct{}, error) {
	var symbols []string
	if err := s.db.WithContext(ctx).Model(&entryModel{}).Pluck("symbol", &symbols).Error; err != nil {
		return nil, err
	}
	out := make(map[string]struct{}, len(symbols))
	for _, sym := range symbols {
		out[sym] = struct{}{}
	}
	return out, nil
}

// Pending lists unconsumed entries oldest first. Rows that fail to decode are
// skipped, not fatal; the queue must survive a corrupt entry.
func (s *Store) Pending(ctx context.Context) ([]Entry, error) {
	var rows []entryModel
	if err := s.db.WithContext(ctx).Order("requested_at asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(rows))
	for _, r := range rows {
		e, err := toEntry(r)
		if err != nil {
			logger.Warnf("training queue: skipping corrupt entry %s (%s): %v", r.ID, r.Symbol, err)
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *Store) Depth(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&entryModel{}).Count(&n).Error
	return n, err
}

// Consume removes the pending entry for symbol and records the result in the
// history table. Used by the external trainer's bookkeeping and by tests.
func (s *Store) Consume(ctx context.Context, symbol, result string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row entryModel
		err := tx.Where("symbol = ?", symbol).First(&row).Error
		if err != nil {
			return err
		}
		now := time.Now().UTC().Unix()
		hist := historyModel{
			EntryID:       row.ID,
			Symbol:        row.Symbol,
			Reason:        row.Reason,
			Result:        result,
			RequestedAt:   row.RequestedAt,
			FinishedAt:    now,
			ContextJSON:   row.ContextJSON,
			CreatedAtUnix: now,
		}
		if err := tx.Create(&hist).Error; err != nil {
			return err
		}
		return tx.Delete(&entryModel{}, "id = ?", row.ID).Error
	})
}

// RecordAttempt bumps the attempt counter for a symbol whose training failed
// but stays queued.
func (s *Store) RecordAttempt(ctx context.Context, symbol string) error {
	return s.db.WithContext(ctx).Model(&entryModel{}).
		Where("symbol = ?", symbol).
		Updates(map[string]any{
			"attempts":   gorm.Expr("attempts + 1"),
			"updated_at": time.Now().UTC().Unix(),
		}).Error
}

func toEntry(r entryModel) (Entry, error) {
	e := Entry{
		ID:          r.ID,
		Symbol:      r.Symbol,
		Reason:      r.Reason,
		RequestedAt: time.Unix(r.RequestedAt, 0).UTC(),
		Attempts:    r.Attempts,
	}
	if r.Symbol == "" {
		return e, fmt.Errorf("missing symbol")
	}
	if len(r.ContextJSON) > 0 {
		if err := json.Unmarshal(r.ContextJSON, &e.Context); err != nil {
			return e, fmt.Errorf("context json: %w", err)
		}
	}
	return e, nil
}

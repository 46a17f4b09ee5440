package history

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

// candleModel mirrors the table the external data collector maintains. This
// process only reads it.
type candleModel struct {
	ID     int64   `gorm:"column:id;primaryKey;autoIncrement"`
	Symbol string  `gorm:"column:symbol;uniqueIndex:idx_candle,priority:1"`
	TS     int64   `gorm:"column:ts;uniqueIndex:idx_candle,priority:2"`
	Open   float64 `gorm:"column:open"`
	High   float64 `gorm:"column:high"`
	Low    float64 `gorm:"column:low"`
	Close  float64 `gorm:"column:close"`
	Volume float64 `gorm:"column:volume"`
}

func (candleModel) TableName() string { return "candles" }

// CandleStore derives history metrics from stored candles: available_days is
// the span between first and last candle, coverage_pct the fraction of
// expected candles actually present for that span.
type CandleStore struct {
	db              *gorm.DB
	intervalMinutes int
}

func NewCandleStore(path string, intervalMinutes int) (*CandleStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("candle store path cannot be empty")
	}
	if intervalMinutes <= 0 {
		return nil, fmt.Errorf("candle interval must be positive, got %d", intervalMinutes)
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
	if err := db.AutoMigrate(&candleModel{}); err != nil {
		return nil, err
	}
	return &CandleStore{db: db, intervalMinutes: intervalMinutes}, nil
}

func (s *CandleStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

type spanRow struct {
	MinTS int64
	MaxTS int64
	N     int64
}

// Metrics implements Provider. A symbol with no candles yields zero metrics,
// not an error: missing data is a policy decision for the classifier.
func (s *CandleStore) Metrics(ctx context.Context, symbol string) (Metrics, error) {
	var row spanRow
	err := s.db.WithContext(ctx).Model(&candleModel{}).
		Select("MIN(ts) AS min_ts, MAX(ts) AS max_ts, COUNT(*) AS n").
		Where("symbol = ?", symbol).
		Scan(&row).Error
	if err != nil {
		return Metrics{}, fmt.Errorf("history lookup for %s: %w", symbol, err)
	}
	if row.N == 0 {
		return Metrics{}, nil
	}

	spanSeconds := row.MaxTS - row.MinTS
	availableDays := int(spanSeconds / 86400)
	expected := float64(spanSeconds) / float64(s.intervalMinutes*60)
	coverage := 0.0
	if expected > 0 {
		coverage = float64(row.N) / expected
		if coverage > 1 {
			coverage = 1
		}
	}
	return Metrics{
		AvailableDays: availableDays,
		CoveragePct:   coverage,
		TotalCandles:  row.N,
	}, nil
}

// Seed inserts candles; used by tests and the replay harness.
func (s *CandleStore) Seed(ctx context.Context, symbol string, startTS int64, count int, stepSeconds int64) error {
	rows := make([]candleModel, 0, count)
	for i := 0; i < count; i++ {
		rows = append(rows, candleModel{
			Symbol: symbol,
			TS:     startTS + int64(i)*stepSeconds,
			Close:  1,
		})
	}
	return s.db.WithContext(ctx).CreateInBatches(rows, 500).Error
}

package trainqueue

import (
	"gorm.io/datatypes"
)

// entryModel is one pending training request. Symbol is unique: a symbol with
// a pending entry cannot be enqueued again until the external trainer consumes
// it (which removes the row).
type entryModel struct {
	ID            string         `gorm:"column:id;primaryKey"`
	Symbol        string         `gorm:"column:symbol;uniqueIndex"`
	Reason        string         `gorm:"column:reason"`
	RequestedAt   int64          `gorm:"column:requested_at"`
	Attempts      int            `gorm:"column:attempts"`
	ContextJSON   datatypes.JSON `gorm:"column:context_json;type:TEXT"`
	CreatedAtUnix int64          `gorm:"column:created_at"`
	UpdatedAtUnix int64          `gorm:"column:updated_at"`
}

func (entryModel) TableName() string { return "training_queue" }

// historyModel records consumed or permanently failed requests for audit.
type historyModel struct {
	ID            int64          `gorm:"column:id;primaryKey;autoIncrement"`
	EntryID       string         `gorm:"column:entry_id;index"`
	Symbol        string         `gorm:"column:symbol;index"`
	Reason        string         `gorm:"column:reason"`
	Result        string         `gorm:"column:result"`
	RequestedAt   int64          `gorm:"column:requested_at"`
	FinishedAt    int64          `gorm:"column:finished_at"`
	ContextJSON   datatypes.JSON `gorm:"column:context_json;type:TEXT"`
	CreatedAtUnix int64          `gorm:"column:created_at"`
}

func (historyModel) TableName() string { return "training_queue_history" }

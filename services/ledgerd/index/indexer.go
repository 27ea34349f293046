package index

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"solaire/core/events"
)

// Record is one committed ledger notification.
type Record struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Sequence   uint64    `gorm:"uniqueIndex" json:"sequence"`
	Type       string    `gorm:"index" json:"type"`
	Account    string    `gorm:"index" json:"account,omitempty"`
	Attributes string    `json:"-"`
	CreatedAt  time.Time `gorm:"index" json:"createdAt"`
}

// TableName pins the table regardless of naming strategy.
func (Record) TableName() string { return "ledger_events" }

// Attrs decodes the stored attribute map.
func (r Record) Attrs() map[string]string {
	out := map[string]string{}
	if r.Attributes != "" {
		_ = json.Unmarshal([]byte(r.Attributes), &out)
	}
	return out
}

// Filter narrows Query results. Zero values match everything.
type Filter struct {
	Type     string
	Account  string
	AfterSeq uint64
	Limit    int
}

const (
	defaultLimit = 100
	maxLimit     = 1000
	emitTimeout  = 5 * time.Second
)

// accountKeys lists the attributes that identify the primary account of an
// event, in priority order.
var accountKeys = []string{"account", "from", "owner", "newOwner", "to"}

// Indexer persists committed events for later query.
type Indexer struct {
	db     *gorm.DB
	logger *slog.Logger
	now    func() time.Time

	mu  sync.Mutex
	seq uint64
}

// Open connects to the configured database and migrates the schema.
func Open(driver, dsn string, log *slog.Logger) (*Indexer, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("index: unsupported driver %q", driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("index: open: %w", err)
	}
	return New(db, log)
}

// New wraps an existing gorm handle.
func New(db *gorm.DB, log *slog.Logger) (*Indexer, error) {
	if db == nil {
		return nil, fmt.Errorf("index: database required")
	}
	if log == nil {
		log = slog.Default()
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("index: migrate: %w", err)
	}
	var last Record
	res := db.Order("sequence desc").Limit(1).Find(&last)
	if res.Error != nil {
		return nil, fmt.Errorf("index: load sequence: %w", res.Error)
	}
	return &Indexer{
		db:     db,
		logger: log,
		now:    func() time.Time { return time.Now().UTC() },
		seq:    last.Sequence,
	}, nil
}

// Record stores a single event.
func (ix *Indexer) Record(ctx context.Context, evt events.Event) (Record, error) {
	if evt == nil {
		return Record{}, fmt.Errorf("index: nil event")
	}
	attrs := map[string]string{}
	if typed, ok := evt.(events.Typed); ok {
		if flat := typed.Event(); flat != nil && flat.Attributes != nil {
			attrs = flat.Attributes
		}
	}
	encoded, err := json.Marshal(attrs)
	if err != nil {
		return Record{}, fmt.Errorf("index: encode attributes: %w", err)
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	rec := Record{
		ID:         uuid.New(),
		Sequence:   ix.seq + 1,
		Type:       evt.EventType(),
		Account:    primaryAccount(attrs),
		Attributes: string(encoded),
		CreatedAt:  ix.now(),
	}
	if err := ix.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return Record{}, fmt.Errorf("index: insert: %w", err)
	}
	ix.seq = rec.Sequence
	return rec, nil
}

// Emit persists evt before returning so the index never skips a committed
// event. The ledger has already committed, so failures are only logged.
func (ix *Indexer) Emit(evt events.Event) {
	if evt == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), emitTimeout)
	defer cancel()
	if _, err := ix.Record(ctx, evt); err != nil {
		ix.logger.Error("index event failed",
			slog.String("type", evt.EventType()),
			slog.String("error", err.Error()))
	}
}

// Query returns events in commit order.
func (ix *Indexer) Query(ctx context.Context, filter Filter) ([]Record, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	q := ix.db.WithContext(ctx).Model(&Record{})
	if filter.Type != "" {
		q = q.Where("type = ?", filter.Type)
	}
	if filter.Account != "" {
		q = q.Where("account = ?", filter.Account)
	}
	if filter.AfterSeq > 0 {
		q = q.Where("sequence > ?", filter.AfterSeq)
	}
	var out []Record
	if err := q.Order("sequence asc").Limit(limit).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("index: query: %w", err)
	}
	return out, nil
}

// Close releases the underlying connection pool.
func (ix *Indexer) Close() error {
	sqlDB, err := ix.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func primaryAccount(attrs map[string]string) string {
	for _, key := range accountKeys {
		if v := attrs[key]; v != "" {
			return v
		}
	}
	return ""
}

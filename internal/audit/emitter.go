package audit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/keyward/licensing-backend/pkg/config"
	"github.com/keyward/licensing-backend/pkg/db/models"
	"github.com/keyward/licensing-backend/pkg/enums"
	"github.com/keyward/licensing-backend/pkg/logger"
)

// Entry is one audit record to persist.
type Entry struct {
	Event      enums.AuditEvent
	Action     string
	ActorType  enums.ActorType
	ActorID    *string
	ObjectType string
	ObjectID   string
	Metadata   map[string]any
}

// Emitter records audit entries. Implementations must not block the caller's
// request path; callers emit after their transaction has committed.
type Emitter interface {
	Emit(ctx context.Context, entry Entry)
}

// DBEmitter writes audit_logs rows from a single worker goroutine fed by a
// bounded queue. When the queue is full the entry is dropped and a warning is
// logged; audit is advisory and never backpressures the mutation path.
type DBEmitter struct {
	db      *gorm.DB
	logg    *logger.Logger
	queue   chan Entry
	timeout time.Duration

	closeOnce sync.Once
	done      chan struct{}
}

// NewDBEmitter builds the emitter and starts its worker.
func NewDBEmitter(conn *gorm.DB, logg *logger.Logger, cfg config.AuditConfig) *DBEmitter {
	size := cfg.QueueSize
	if size <= 0 {
		size = 256
	}
	timeout := cfg.WriteTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	e := &DBEmitter{
		db:      conn,
		logg:    logg,
		queue:   make(chan Entry, size),
		timeout: timeout,
		done:    make(chan struct{}),
	}
	go e.run()
	return e
}

// Emit enqueues the entry without blocking.
func (e *DBEmitter) Emit(ctx context.Context, entry Entry) {
	select {
	case e.queue <- entry:
	default:
		if e.logg != nil {
			ctx = e.logg.WithField(ctx, "audit_object", entry.ObjectType+":"+entry.ObjectID)
			e.logg.Warn(ctx, "audit queue full, dropping entry")
		}
	}
}

// Close stops accepting entries and drains the queue.
func (e *DBEmitter) Close() {
	e.closeOnce.Do(func() {
		close(e.queue)
		<-e.done
	})
}

func (e *DBEmitter) run() {
	defer close(e.done)
	for entry := range e.queue {
		e.write(entry)
	}
}

func (e *DBEmitter) write(entry Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
	defer cancel()

	row := models.AuditLog{
		ID:        uuid.New(),
		Event:     entry.Event,
		Action:    entry.Action,
		ActorType: entry.ActorType,
		ActorID:   entry.ActorID,
	}
	if entry.ObjectType != "" {
		objectType := entry.ObjectType
		row.ObjectType = &objectType
	}
	if entry.ObjectID != "" {
		objectID := entry.ObjectID
		row.ObjectID = &objectID
	}
	if len(entry.Metadata) > 0 {
		if raw, err := json.Marshal(entry.Metadata); err == nil {
			row.Metadata = raw
		} else if e.logg != nil {
			e.logg.Error(ctx, "marshal audit metadata", err)
		}
	}

	if err := e.db.WithContext(ctx).Create(&row).Error; err != nil && e.logg != nil {
		e.logg.Error(ctx, "write audit log", err)
	}
}

// NoopEmitter discards all entries.
type NoopEmitter struct{}

// Emit implements Emitter.
func (NoopEmitter) Emit(context.Context, Entry) {}

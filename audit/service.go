// Package audit records wardrobe activity asynchronously.
package audit

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kasuganosora/magicwardrobe/model"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Actions recorded by the API.
const (
	ActionGarmentAdd     = "garment.add"
	ActionGarmentUpdate  = "garment.update"
	ActionGarmentDelete  = "garment.delete"
	ActionGarmentAnalyze = "garment.analyze"
	ActionGarmentWear    = "garment.wear"
	ActionOutfitGenerate = "outfit.generate"
	ActionOutfitConfirm  = "outfit.confirm"
)

// Entry is one audit event.
type Entry struct {
	TraceID    string
	AccountID  *int64
	GarmentID  *int64
	Action     string
	Request    any
	Response   any
	Error      string
	IP         string
	DurationMs int
}

// Options tunes batching. Zero values use the defaults.
type Options struct {
	Buffer        int
	BatchSize     int
	FlushInterval time.Duration
}

func (o Options) withDefaults() Options {
	if o.Buffer <= 0 {
		o.Buffer = 1024
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 100
	}
	if o.FlushInterval <= 0 {
		o.FlushInterval = 2 * time.Second
	}
	return o
}

// Service writes audit entries in batches from a background worker.
type Service struct {
	db       *gorm.DB
	opts     Options
	ch       chan *model.AuditLog
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	dropped  atomic.Int64
	logger   *zap.Logger
}

// New creates a new audit Service and starts its background worker.
func New(db *gorm.DB, opts Options, logger *zap.Logger) *Service {
	opts = opts.withDefaults()
	svc := &Service{
		db:     db,
		opts:   opts,
		ch:     make(chan *model.AuditLog, opts.Buffer),
		stopCh: make(chan struct{}),
		logger: logger,
	}
	svc.wg.Add(1)
	go svc.worker()
	return svc
}

// Log enqueues an entry. It never blocks; entries are dropped when the
// buffer is full.
func (svc *Service) Log(entry Entry) {
	record := &model.AuditLog{
		TraceID:    entry.TraceID,
		AccountID:  entry.AccountID,
		GarmentID:  entry.GarmentID,
		Action:     entry.Action,
		Request:    marshal(entry.Request),
		Response:   marshal(entry.Response),
		Error:      entry.Error,
		IP:         entry.IP,
		DurationMs: entry.DurationMs,
	}
	select {
	case svc.ch <- record:
	default:
		svc.dropped.Add(1)
		svc.logger.Warn("audit channel full, dropping entry",
			zap.String("action", entry.Action))
	}
}

func marshal(v any) datatypes.JSON {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return datatypes.JSON(b)
}

// Dropped returns how many entries were discarded because the buffer was full.
func (svc *Service) Dropped() int64 { return svc.dropped.Load() }

// Stop flushes remaining entries and shuts down the worker.
// It blocks until the worker goroutine has finished.
func (svc *Service) Stop(_ context.Context) {
	svc.stopOnce.Do(func() { close(svc.stopCh) })
	svc.wg.Wait()
}

func (svc *Service) worker() {
	defer svc.wg.Done()
	ticker := time.NewTicker(svc.opts.FlushInterval)
	defer ticker.Stop()

	batch := make([]*model.AuditLog, 0, svc.opts.BatchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := svc.db.Create(&batch).Error; err != nil {
			svc.logger.Error("audit batch write failed", zap.Int("size", len(batch)), zap.Error(err))
		}
		batch = batch[:0]
	}

	for {
		select {
		case entry := <-svc.ch:
			batch = append(batch, entry)
			if len(batch) >= svc.opts.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-svc.stopCh:
			for {
				select {
				case entry := <-svc.ch:
					batch = append(batch, entry)
				default:
					flush()
					return
				}
			}
		}
	}
}

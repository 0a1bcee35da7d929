package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"formaflix-backend/internal/models"
)

const (
	// RefreshQueueKey is the Redis list the worker pool consumes.
	RefreshQueueKey = "queue:stream-refresh"

	refreshBatchLimit = 100
)

// RefreshScheduler periodically sweeps ingested-but-not-ready assets and
// enqueues refresh jobs for the worker pool. It is the safety net for
// webhook deliveries that never arrived.
type RefreshScheduler struct {
	ingestion *IngestionService
	queue     *redis.Client
	interval  time.Duration
	log       *logrus.Logger
	stopChan  chan struct{}
}

// NewRefreshScheduler builds a scheduler; an interval of zero or less
// disables it entirely.
func NewRefreshScheduler(ingestion *IngestionService, queue *redis.Client, interval time.Duration, log *logrus.Logger) *RefreshScheduler {
	return &RefreshScheduler{
		ingestion: ingestion,
		queue:     queue,
		interval:  interval,
		log:       log,
		stopChan:  make(chan struct{}),
	}
}

func (s *RefreshScheduler) Start() {
	if s.interval <= 0 {
		s.log.Info("Stream refresh scheduler disabled")
		return
	}
	go s.loop()
	s.log.WithField("interval", s.interval.String()).Info("Stream refresh scheduler started")
}

func (s *RefreshScheduler) Stop() {
	select {
	case <-s.stopChan:
		return
	default:
		close(s.stopChan)
	}
}

func (s *RefreshScheduler) loop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.sweep(context.Background())
		}
	}
}

func (s *RefreshScheduler) sweep(ctx context.Context) {
	pending, err := s.ingestion.ListPending(ctx, refreshBatchLimit)
	if err != nil {
		s.log.WithError(err).Warn("Failed to list pending stream assets")
		return
	}

	for _, p := range pending {
		job := models.RefreshJob{
			ID:         uuid.New(),
			Kind:       p.Kind,
			EntityID:   p.EntityID,
			AssetID:    p.AssetID,
			EnqueuedAt: time.Now().UTC(),
		}
		payload, err := json.Marshal(job)
		if err != nil {
			continue
		}
		if err := s.queue.LPush(ctx, RefreshQueueKey, payload).Err(); err != nil {
			s.log.WithError(err).Warn("Failed to enqueue stream refresh job")
			return
		}
	}

	if len(pending) > 0 {
		s.log.WithField("count", len(pending)).Debug("Enqueued stream refresh jobs")
	}
}

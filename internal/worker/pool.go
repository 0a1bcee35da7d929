package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"formaflix-backend/internal/models"
	"formaflix-backend/internal/services"
)

const maxRetries = 3

// Pool consumes stream refresh jobs: each one polls the platform for an
// asset's status and feeds the result through the reconciler. Jobs are
// deduplicated across workers with a short Redis lock keyed by asset id, so
// a sweep that enqueues an asset twice still polls it once.
type Pool struct {
	redis       *redis.Client
	ingestion   *services.IngestionService
	workerCount int
	log         *logrus.Logger
	stopChan    chan struct{}
}

func NewPool(redisClient *redis.Client, ingestion *services.IngestionService, workerCount int, log *logrus.Logger) *Pool {
	return &Pool{
		redis:       redisClient,
		ingestion:   ingestion,
		workerCount: workerCount,
		log:         log,
		stopChan:    make(chan struct{}),
	}
}

func (p *Pool) Start() {
	for i := 0; i < p.workerCount; i++ {
		go p.worker(i)
	}
	p.log.WithField("count", p.workerCount).Info("Started stream refresh workers")
}

func (p *Pool) Stop() {
	close(p.stopChan)
}

func (p *Pool) worker(id int) {
	for {
		select {
		case <-p.stopChan:
			p.log.WithField("worker", id).Info("Stream refresh worker shutting down")
			return
		default:
		}

		ctx := context.Background()

		// BLPOP with 30s timeout
		result, err := p.redis.BLPop(ctx, 30*time.Second, services.RefreshQueueKey).Result()
		if err != nil {
			continue // Timeout or error, retry
		}
		if len(result) < 2 {
			continue
		}

		var job models.RefreshJob
		if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
			p.log.WithError(err).WithField("worker", id).Warn("Failed to parse refresh job")
			continue
		}

		// Lock per asset rather than per job: two jobs for the same asset
		// are the same work.
		lockKey := fmt.Sprintf("stream_refresh_lock:%s", job.AssetID)
		locked, err := p.redis.SetNX(ctx, lockKey, "1", 10*time.Minute).Result()
		if err != nil || !locked {
			continue // Another worker has this asset
		}

		if err := p.process(ctx, &job); err != nil {
			p.handleFailure(&job, err)
		}

		p.redis.Del(ctx, lockKey)
	}
}

func (p *Pool) process(ctx context.Context, job *models.RefreshJob) error {
	res, err := p.ingestion.Refresh(ctx, job.Kind, job.EntityID)
	if err != nil {
		return err
	}

	switch res.Outcome {
	case services.ApplyUpdated:
		p.log.WithFields(logrus.Fields{
			"asset_id":  job.AssetID,
			"kind":      job.Kind,
			"entity_id": job.EntityID,
		}).Info("Refresh updated stream asset state")
	case services.ApplyNoMatchingEntity:
		p.log.WithField("asset_id", job.AssetID).Warn("Refresh found no entity for asset")
	}
	return nil
}

func (p *Pool) handleFailure(job *models.RefreshJob, err error) {
	job.RetryCount++

	if job.RetryCount >= maxRetries {
		p.log.WithError(err).WithFields(logrus.Fields{
			"asset_id": job.AssetID,
			"retries":  job.RetryCount,
		}).Error("Refresh job failed permanently")
		return
	}

	p.log.WithError(err).WithFields(logrus.Fields{
		"asset_id": job.AssetID,
		"attempt":  job.RetryCount,
	}).Warn("Refresh job failed, retrying")

	// Re-queue after backoff
	jobBytes, _ := json.Marshal(job)
	backoff := time.Duration(1<<uint(job.RetryCount)) * time.Second
	time.AfterFunc(backoff, func() {
		p.redis.LPush(context.Background(), services.RefreshQueueKey, string(jobBytes))
	})
}

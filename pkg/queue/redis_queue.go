package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"vendorhub/internal/util"
)

// Handler delivers one job. A returned error schedules a retry until
// MaxRetries attempts have been made.
type Handler func(context.Context, Job) error

// Enqueuer is the producer side used by the API.
type Enqueuer interface {
	Enqueue(ctx context.Context, n Notification) (Job, error)
	EnqueueBatch(ctx context.Context, ns []Notification) ([]Job, error)
}

type RedisQueueConfig struct {
	Addr       string
	Password   string
	Stream     string
	Group      string
	Consumer   string
	JobTTL     time.Duration
	MaxRetries int
	Block      time.Duration
	ClaimIdle  time.Duration
	RetryDelay time.Duration
	MaxLen     int64
	ReadCount  int64
	ClaimCount int64
}

// RedisQueue is a notification queue on a Redis stream. Job state lives in a
// hash next to the stream so producers can look it up.
type RedisQueue struct {
	client       redis.UniversalClient
	stream       string
	group        string
	consumerBase string
	jobTTL       time.Duration
	maxRetries   int
	block        time.Duration
	claimIdle    time.Duration
	retryDelay   time.Duration
	maxLen       int64
	readCount    int64
	claimCount   int64
	groupOnce    sync.Once
	groupErr     error
	wg           sync.WaitGroup
	now          func() time.Time
}

// NewRedisQueue dials cfg.Addr.
func NewRedisQueue(cfg RedisQueueConfig) (*RedisQueue, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, errors.New("redis addr required")
	}
	return NewRedisQueueWithClient(redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Password}), cfg)
}

// NewRedisQueueWithClient shares an existing client. cfg.Addr is ignored.
func NewRedisQueueWithClient(client redis.UniversalClient, cfg RedisQueueConfig) (*RedisQueue, error) {
	if client == nil {
		return nil, errors.New("redis client required")
	}
	stream := strings.TrimSpace(cfg.Stream)
	if stream == "" {
		return nil, errors.New("queue stream required")
	}
	q := &RedisQueue{
		client:       client,
		stream:       stream,
		group:        orDefault(strings.TrimSpace(cfg.Group), "notifier"),
		consumerBase: orDefault(strings.TrimSpace(cfg.Consumer), util.NewID()),
		jobTTL:       positiveDuration(cfg.JobTTL, 24*time.Hour),
		maxRetries:   cfg.MaxRetries,
		block:        positiveDuration(cfg.Block, 5*time.Second),
		claimIdle:    positiveDuration(cfg.ClaimIdle, 30*time.Second),
		retryDelay:   positiveDuration(cfg.RetryDelay, 2*time.Second),
		maxLen:       positiveInt(cfg.MaxLen, 100000),
		readCount:    positiveInt(cfg.ReadCount, 10),
		claimCount:   positiveInt(cfg.ClaimCount, 10),
		now:          func() time.Time { return time.Now().UTC() },
	}
	if q.maxRetries <= 0 {
		q.maxRetries = 3
	}
	return q, nil
}

func (q *RedisQueue) Enqueue(ctx context.Context, n Notification) (Job, error) {
	jobs, err := q.EnqueueBatch(ctx, []Notification{n})
	if err != nil {
		return Job{}, err
	}
	return jobs[0], nil
}

// EnqueueBatch writes all jobs in one pipeline. Either every notification is
// valid and submitted or none is.
func (q *RedisQueue) EnqueueBatch(ctx context.Context, ns []Notification) ([]Job, error) {
	if len(ns) == 0 {
		return nil, nil
	}
	now := q.now()
	jobs := make([]Job, 0, len(ns))
	for i, n := range ns {
		if err := n.validate(); err != nil {
			return nil, fmt.Errorf("notification %d: %w", i, err)
		}
		jobs = append(jobs, Job{
			ID:           util.NewID(),
			Notification: n,
			Status:       StatusQueued,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	}
	pipe := q.client.Pipeline()
	for _, job := range jobs {
		payload, err := json.Marshal(job.Notification)
		if err != nil {
			return nil, fmt.Errorf("encode notification: %w", err)
		}
		q.queueStatus(ctx, pipe, job, payload)
		pipe.XAdd(ctx, q.addArgs(job.ID, payload))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("enqueue notifications: %w", err)
	}
	return jobs, nil
}

func (q *RedisQueue) GetJob(ctx context.Context, jobID string) (Job, bool, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return Job{}, false, nil
	}
	data, err := q.client.HGetAll(ctx, q.jobKey(jobID)).Result()
	if err != nil {
		return Job{}, false, err
	}
	if len(data) == 0 {
		return Job{}, false, nil
	}
	job, err := decodeJob(jobID, data)
	if err != nil {
		return Job{}, false, err
	}
	return job, true, nil
}

// Start launches concurrency consumers. They stop when ctx is canceled; Wait
// blocks until they have returned.
func (q *RedisQueue) Start(ctx context.Context, concurrency int, handler Handler) error {
	if concurrency <= 0 {
		concurrency = 1
	}
	if err := q.ensureGroup(ctx); err != nil {
		return err
	}
	for i := 0; i < concurrency; i++ {
		consumer := fmt.Sprintf("%s-%d", q.consumerBase, i)
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			q.consumeLoop(ctx, consumer, handler)
		}()
	}
	return nil
}

func (q *RedisQueue) Wait() { q.wg.Wait() }

func (q *RedisQueue) Close() error { return q.client.Close() }

func (q *RedisQueue) ensureGroup(ctx context.Context) error {
	q.groupOnce.Do(func() {
		err := q.client.XGroupCreateMkStream(ctx, q.stream, q.group, "0").Err()
		if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
			q.groupErr = fmt.Errorf("create consumer group %s: %w", q.group, err)
		}
	})
	return q.groupErr
}

func (q *RedisQueue) consumeLoop(ctx context.Context, consumer string, handler Handler) {
	logger := slog.Default().With("stream", q.stream, "consumer", consumer)
	for ctx.Err() == nil {
		msgs, err := q.claimPending(ctx, consumer)
		if err != nil && ctx.Err() == nil {
			logger.Warn("queue claim failed", "err", err)
		}
		for _, msg := range msgs {
			q.handleMessage(ctx, msg, handler)
		}

		streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    q.group,
			Consumer: consumer,
			Streams:  []string{q.stream, ">"},
			Count:    q.readCount,
			Block:    q.block,
		}).Result()
		if err != nil {
			if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
				logger.Warn("queue read failed", "err", err)
				sleep(ctx, q.retryDelay)
			}
			continue
		}
		for _, stream := range streams {
			for _, msg := range stream.Messages {
				q.handleMessage(ctx, msg, handler)
			}
		}
	}
}

func (q *RedisQueue) claimPending(ctx context.Context, consumer string) ([]redis.XMessage, error) {
	res, _, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   q.stream,
		Group:    q.group,
		Consumer: consumer,
		MinIdle:  q.claimIdle,
		Start:    "0-0",
		Count:    q.claimCount,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return res, err
}

func (q *RedisQueue) handleMessage(ctx context.Context, msg redis.XMessage, handler Handler) {
	jobID, _ := msg.Values["job_id"].(string)
	payload, _ := msg.Values["payload"].(string)
	if jobID == "" || payload == "" {
		q.ackAndDel(ctx, msg.ID)
		return
	}
	job, err := q.markProcessing(ctx, jobID, payload)
	if err != nil {
		slog.Warn("queue job unreadable", "job_id", jobID, "err", err)
		q.ackAndDel(ctx, msg.ID)
		return
	}
	herr := handler(ctx, job)
	if herr == nil {
		_ = q.setStatus(ctx, job, StatusDone, "")
		q.ackAndDel(ctx, msg.ID)
		return
	}
	if job.Attempts >= q.maxRetries {
		slog.Error("notification failed", "job_id", jobID, "attempts", job.Attempts, "err", herr)
		_ = q.setStatus(ctx, job, StatusFailed, herr.Error())
		q.ackAndDel(ctx, msg.ID)
		return
	}
	_ = q.setStatus(ctx, job, StatusQueued, herr.Error())
	if !sleep(ctx, q.retryDelay) {
		return
	}
	if err := q.requeueAndAck(ctx, msg.ID, jobID, payload); err != nil {
		// left pending; XAUTOCLAIM picks it up after claimIdle
		slog.Warn("notification requeue failed", "job_id", jobID, "err", err)
	}
}

func (q *RedisQueue) ackAndDel(ctx context.Context, msgID string) {
	_, _ = q.client.XAck(ctx, q.stream, q.group, msgID).Result()
	_, _ = q.client.XDel(ctx, q.stream, msgID).Result()
}

func (q *RedisQueue) requeueAndAck(ctx context.Context, msgID, jobID, payload string) error {
	pipe := q.client.TxPipeline()
	pipe.XAdd(ctx, q.addArgs(jobID, []byte(payload)))
	pipe.XAck(ctx, q.stream, q.group, msgID)
	pipe.XDel(ctx, q.stream, msgID)
	_, err := pipe.Exec(ctx)
	return err
}

func (q *RedisQueue) addArgs(jobID string, payload []byte) *redis.XAddArgs {
	return &redis.XAddArgs{
		Stream: q.stream,
		MaxLen: q.maxLen,
		Approx: true,
		Values: map[string]any{"job_id": jobID, "payload": string(payload)},
	}
}

func (q *RedisQueue) markProcessing(ctx context.Context, jobID, payload string) (Job, error) {
	job, found, err := q.GetJob(ctx, jobID)
	if err != nil {
		return Job{}, err
	}
	if !found {
		job = Job{ID: jobID, CreatedAt: q.now()}
		if err := json.Unmarshal([]byte(payload), &job.Notification); err != nil {
			return Job{}, fmt.Errorf("decode payload: %w", err)
		}
	}
	job.Attempts++
	if err := q.setStatus(ctx, job, StatusProcessing, job.ErrorMessage); err != nil {
		return Job{}, err
	}
	job.Status = StatusProcessing
	return job, nil
}

func (q *RedisQueue) setStatus(ctx context.Context, job Job, status, errMsg string) error {
	job.Status = status
	job.ErrorMessage = errMsg
	job.UpdatedAt = q.now()
	payload, err := json.Marshal(job.Notification)
	if err != nil {
		return err
	}
	pipe := q.client.Pipeline()
	q.queueStatus(ctx, pipe, job, payload)
	_, err = pipe.Exec(ctx)
	return err
}

func (q *RedisQueue) queueStatus(ctx context.Context, pipe redis.Pipeliner, job Job, payload []byte) {
	key := q.jobKey(job.ID)
	pipe.HSet(ctx, key, map[string]any{
		"payload":   string(payload),
		"status":    job.Status,
		"error":     job.ErrorMessage,
		"attempts":  strconv.Itoa(job.Attempts),
		"createdAt": job.CreatedAt.Format(time.RFC3339Nano),
		"updatedAt": job.UpdatedAt.Format(time.RFC3339Nano),
	})
	pipe.Expire(ctx, key, q.jobTTL)
}

func (q *RedisQueue) jobKey(jobID string) string {
	return fmt.Sprintf("job:%s:%s", q.stream, jobID)
}

func decodeJob(jobID string, data map[string]string) (Job, error) {
	job := Job{ID: jobID, Status: data["status"], ErrorMessage: data["error"]}
	if err := json.Unmarshal([]byte(data["payload"]), &job.Notification); err != nil {
		return Job{}, fmt.Errorf("decode job %s: %w", jobID, err)
	}
	if n, err := strconv.Atoi(data["attempts"]); err == nil {
		job.Attempts = n
	}
	if t, err := time.Parse(time.RFC3339Nano, data["createdAt"]); err == nil {
		job.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, data["updatedAt"]); err == nil {
		job.UpdatedAt = t
	}
	return job, nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func positiveDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func positiveInt(v, def int64) int64 {
	if v <= 0 {
		return def
	}
	return v
}

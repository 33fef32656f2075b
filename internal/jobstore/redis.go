package jobstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"dubber/internal/config"
	"dubber/internal/jobs"
)

// Redis key layout:
//
//	dubber:job:<id>            JSON(jobs.Job)
//	dubber:jobs                sorted set of ids, score = CreatedAt unix nanos
//	dubber:jobs:status:<s>     set of ids currently in status s
const (
	redisJobPrefix    = "dubber:job:"
	redisJobsKey      = "dubber:jobs"
	redisStatusPrefix = "dubber:jobs:status:"
)

// RedisStore implements Store on a Redis instance, for deployments where
// multiple processes need to read job state.
type RedisStore struct {
	client *redis.Client
}

// OpenRedis connects to the configured Redis instance and verifies it.
func OpenRedis(ctx context.Context, cfg *config.Config) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Store.RedisAddr,
		Password: cfg.Store.RedisPassword,
		DB:       cfg.Store.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

// NewRedisStore wraps an existing client (used in tests).
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Close releases the Redis connection.
func (r *RedisStore) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close()
}

func jobKey(id string) string { return redisJobPrefix + id }

func statusKey(status jobs.Status) string { return redisStatusPrefix + string(status) }

// Create persists a new job record.
func (r *RedisStore) Create(ctx context.Context, job *jobs.Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	if job.ID == "" {
		return errors.New("job id must be set")
	}

	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now

	key := jobKey(job.ID)
	exists, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("check job exists: %w", err)
	}
	if exists > 0 {
		return fmt.Errorf("job %s already exists", job.ID)
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, key, payload, 0)
	pipe.ZAdd(ctx, redisJobsKey, redis.Z{Score: float64(job.CreatedAt.UnixNano()), Member: job.ID})
	pipe.SAdd(ctx, statusKey(job.Status), job.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// GetByID fetches a job, returning (nil, nil) when it does not exist.
func (r *RedisStore) GetByID(ctx context.Context, id string) (*jobs.Job, error) {
	payload, err := r.client.Get(ctx, jobKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	var job jobs.Job
	if err := json.Unmarshal(payload, &job); err != nil {
		return nil, fmt.Errorf("decode job: %w", err)
	}
	return &job, nil
}

// Update persists changes to an existing job, keeping the status sets in sync.
func (r *RedisStore) Update(ctx context.Context, job *jobs.Job) error {
	if job == nil {
		return errors.New("job is nil")
	}

	previous, err := r.GetByID(ctx, job.ID)
	if err != nil {
		return err
	}
	if previous == nil {
		return fmt.Errorf("job %s not found for update", job.ID)
	}

	job.UpdatedAt = time.Now().UTC()
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, jobKey(job.ID), payload, 0)
	if previous.Status != job.Status {
		pipe.SRem(ctx, statusKey(previous.Status), job.ID)
		pipe.SAdd(ctx, statusKey(job.Status), job.ID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return nil
}

// Remove deletes a job record, reporting whether it existed.
func (r *RedisStore) Remove(ctx context.Context, id string) (bool, error) {
	previous, err := r.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if previous == nil {
		return false, nil
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, jobKey(id))
	pipe.ZRem(ctx, redisJobsKey, id)
	pipe.SRem(ctx, statusKey(previous.Status), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("delete job: %w", err)
	}
	return true, nil
}

// List returns a page of jobs ordered by creation time, newest first.
func (r *RedisStore) List(ctx context.Context, opts ListOptions) (ListResult, error) {
	ids, err := r.client.ZRevRange(ctx, redisJobsKey, 0, -1).Result()
	if err != nil {
		return ListResult{}, fmt.Errorf("list job ids: %w", err)
	}

	var matched []*jobs.Job
	for _, id := range ids {
		job, err := r.GetByID(ctx, id)
		if err != nil {
			return ListResult{}, err
		}
		if job == nil {
			continue
		}
		if opts.Status != "" && job.Status != opts.Status {
			continue
		}
		matched = append(matched, job)
	}

	total := len(matched)
	limit, offset := clampPage(opts.Limit, opts.Offset, total)
	end := offset + limit
	if end > total {
		end = total
	}
	page := matched[offset:end]

	return ListResult{
		Jobs:    page,
		Total:   total,
		HasMore: hasMore(offset, len(page), total),
	}, nil
}

// Count returns the number of jobs, optionally restricted to statuses.
func (r *RedisStore) Count(ctx context.Context, statuses ...jobs.Status) (int, error) {
	if len(statuses) == 0 {
		total, err := r.client.ZCard(ctx, redisJobsKey).Result()
		if err != nil {
			return 0, fmt.Errorf("count jobs: %w", err)
		}
		return int(total), nil
	}

	var total int64
	for _, status := range statuses {
		count, err := r.client.SCard(ctx, statusKey(status)).Result()
		if err != nil {
			return 0, fmt.Errorf("count jobs by status: %w", err)
		}
		total += count
	}
	return int(total), nil
}

// Stats returns a count of jobs grouped by status.
func (r *RedisStore) Stats(ctx context.Context) (map[jobs.Status]int, error) {
	stats := make(map[jobs.Status]int)
	for _, status := range jobs.AllStatuses() {
		count, err := r.client.SCard(ctx, statusKey(status)).Result()
		if err != nil {
			return nil, fmt.Errorf("stats for %s: %w", status, err)
		}
		if count > 0 {
			stats[status] = int(count)
		}
	}
	return stats, nil
}

package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const cleanupTimeout = 30 * time.Second

type AuthSessionCleaner interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

type MagicLinkCleaner interface {
	DeleteStale(ctx context.Context, olderThan time.Time) (int64, error)
}

type PendingSessionCanceller interface {
	CancelStalePending(ctx context.Context) (int64, error)
}

// CleanupJob periodically removes expired auth state and cancels pending
// bookings whose start time has passed.
type CleanupJob struct {
	authSessions       AuthSessionCleaner
	magicLinks         MagicLinkCleaner
	bookings           PendingSessionCanceller
	magicLinkRetention time.Duration
	interval           time.Duration
	now                func() time.Time
	done               chan struct{}
	stopOnce           sync.Once
	wg                 sync.WaitGroup
}

func NewCleanupJob(
	authSessions AuthSessionCleaner,
	magicLinks MagicLinkCleaner,
	bookings PendingSessionCanceller,
	magicLinkRetention time.Duration,
	interval time.Duration,
) *CleanupJob {
	return &CleanupJob{
		authSessions:       authSessions,
		magicLinks:         magicLinks,
		bookings:           bookings,
		magicLinkRetention: magicLinkRetention,
		interval:           interval,
		now:                time.Now,
		done:               make(chan struct{}),
	}
}

func (j *CleanupJob) Start() {
	j.wg.Add(1)
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("cleanup job started")
}

// Stop halts the job and waits for an in-flight pass to finish.
func (j *CleanupJob) Stop() {
	j.stopOnce.Do(func() {
		close(j.done)
		j.wg.Wait()
		log.Info().Msg("cleanup job stopped")
	})
}

func (j *CleanupJob) run() {
	defer j.wg.Done()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.cleanup()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.cleanup()
		}
	}
}

func (j *CleanupJob) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	if j.authSessions != nil {
		j.runCleanup(ctx, "auth sessions", j.authSessions.DeleteExpired)
	}
	if j.magicLinks != nil {
		cutoff := j.now().Add(-j.magicLinkRetention)
		j.runCleanup(ctx, "magic links", func(ctx context.Context) (int64, error) {
			return j.magicLinks.DeleteStale(ctx, cutoff)
		})
	}
	if j.bookings != nil {
		j.runCleanup(ctx, "stale pending sessions", j.bookings.CancelStalePending)
	}
}

func (j *CleanupJob) runCleanup(ctx context.Context, name string, fn func(context.Context) (int64, error)) {
	count, err := fn(ctx)
	if err != nil {
		log.Error().Err(err).Msgf("failed to cleanup %s", name)
	} else if count > 0 {
		log.Info().Int64("count", count).Msgf("cleaned up %s", name)
	}
}

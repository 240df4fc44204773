package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/convene/internal/cli"
	"horse.fit/convene/internal/config"
	"horse.fit/convene/internal/db"
	"horse.fit/convene/internal/extract"
	"horse.fit/convene/internal/logging"
	"horse.fit/convene/internal/notify"
	"horse.fit/convene/internal/pipeline"
	"horse.fit/convene/internal/resilience"
	"horse.fit/convene/internal/resolve"
	"horse.fit/convene/internal/similarity"
	extractschema "horse.fit/convene/schema"
)

// Malformed extractor responses get one retry before the job fails decode.
const decodeMaxAttempts = 2

// runtime is the shared bootstrap: env, config, logger, database.
type runtime struct {
	cfg    *config.Config
	logger zerolog.Logger
	pool   *db.Pool
}

// setupRuntime loads the environment and connects to the database. On
// failure it prints the problem and returns a non-zero exit code.
func setupRuntime(envLoader *cli.EnvLoader, dbTimeout time.Duration) (*runtime, int) {
	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return nil, 1
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return nil, 1
	}

	dbCtx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()

	pool, err := db.NewPool(dbCtx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("failed to connect to database")
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return nil, 1
	}

	return &runtime{cfg: cfg, logger: logger, pool: pool}, 0
}

func (r *runtime) close() {
	if r != nil && r.pool != nil {
		_ = r.pool.Close()
	}
}

// notifier returns the Kafka publisher when brokers are configured and the
// log notifier otherwise.
func (r *runtime) notifier() notify.Notifier {
	brokers := r.cfg.KafkaBrokerList()
	if len(brokers) == 0 {
		return notify.NewLogNotifier(r.logger)
	}

	kafkaNotifier, err := notify.NewKafkaNotifier(brokers, r.cfg.KafkaTopicPrefix, r.logger)
	if err != nil {
		r.logger.Warn().Err(err).Msg("kafka unavailable, falling back to log notifications")
		return notify.NewLogNotifier(r.logger)
	}
	return kafkaNotifier
}

func (r *runtime) newResolver() *resolve.Resolver {
	scorer := similarity.NewScorer(r.cfg.DomainOverride)
	thresholds := resolve.Thresholds{
		AutoMerge: r.cfg.AutoMergeThreshold,
		Review:    r.cfg.ReviewThreshold,
	}
	return resolve.NewResolver(scorer, thresholds, r.cfg.BlockingKeyLength, r.logger)
}

// newExtractor stacks the single-flight cache over the retrying,
// circuit-broken HTTP client.
func (r *runtime) newExtractor() *extract.Cache {
	client := extract.NewClient(r.cfg.ExtractorURL, r.cfg.ExtractorTimeout, r.logger)

	policy := resilience.RetryPolicy{
		MaxAttempts:       r.cfg.RetryMaxAttempts,
		DecodeMaxAttempts: decodeMaxAttempts,
		BaseDelay:         r.cfg.RetryBaseDelay,
		Factor:            r.cfg.RetryFactor,
		MaxDelay:          r.cfg.RetryMaxDelay,
	}
	breaker := resilience.NewBreaker(r.cfg.BreakerFailureThreshold, r.cfg.BreakerResetTimeout)
	caller := resilience.NewCaller(policy, breaker, r.logger)

	resilient := extract.ExtractorFunc(func(ctx context.Context, text string) (*extractschema.Payload, error) {
		var payload *extractschema.Payload
		err := caller.Call(ctx, func(ctx context.Context) error {
			result, callErr := client.Extract(ctx, text)
			if callErr != nil {
				return callErr
			}
			payload = result
			return nil
		})
		if err != nil {
			return nil, err
		}
		return payload, nil
	})

	return extract.NewCache(resilient, r.cfg.CacheTTL, r.logger)
}

func (r *runtime) newService(notifier notify.Notifier) *pipeline.Service {
	opts := pipeline.Options{
		ConfidenceFloor: r.cfg.ConfidenceThreshold,
		JobTimeout:      r.cfg.JobTimeout,
		WorkerCount:     r.cfg.WorkerCount,
		QueueDepth:      r.cfg.QueueDepth,
	}
	return pipeline.NewService(r.pool, r.newExtractor(), r.newResolver(), notifier, opts, r.logger)
}

// Command embed-worker consumes embedding jobs from NATS and runs them
// through the embedding manager. Jobs that fail are dead-lettered for
// inspection and replay.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/LexbaseAI/lexbase-mvp/engine/domain"
	"github.com/LexbaseAI/lexbase-mvp/engine/embed"
	"github.com/LexbaseAI/lexbase-mvp/engine/library"
	"github.com/LexbaseAI/lexbase-mvp/engine/semantic"
	"github.com/LexbaseAI/lexbase-mvp/pkg/fn"
	"github.com/LexbaseAI/lexbase-mvp/pkg/metrics"
	"github.com/LexbaseAI/lexbase-mvp/pkg/natsutil"
	"github.com/LexbaseAI/lexbase-mvp/pkg/openai"
)

var met = metrics.New()

var (
	mJobs     = met.Counter("lexbase_worker_jobs_total", "Embed jobs consumed")
	mOutcome  = func(status string) *metrics.Counter { return met.Counter(metrics.WithLabels("lexbase_worker_outcomes_total", "status", status), "Per-resource embed outcomes") }
	mJobDur   = met.Histogram("lexbase_worker_job_duration_seconds", "Per-job wall time", nil)
	mInFlight = met.Gauge("lexbase_worker_jobs_in_flight", "Jobs currently processing")
)

func main() {
	var (
		natsURL     = flag.String("nats", envOr("NATS_URL", nats.DefaultURL), "NATS server URL")
		queue       = flag.String("queue", "embed-workers", "NATS queue group")
		neo4jURL    = flag.String("neo4j", envOr("NEO4J_URL", "neo4j://localhost:7687"), "Neo4j bolt URL")
		neo4jUser   = flag.String("neo4j-user", envOr("NEO4J_USER", "neo4j"), "Neo4j username")
		neo4jPass   = flag.String("neo4j-pass", envOr("NEO4J_PASS", "password"), "Neo4j password")
		qdrantAddr  = flag.String("qdrant", envOr("QDRANT_URL", "localhost:6334"), "Qdrant gRPC address")
		collection  = flag.String("collection", envOr("QDRANT_COLLECTION", "lexbase"), "Qdrant collection name")
		embedModel  = flag.String("model", envOr("OPENAI_EMBED_MODEL", openai.DefaultEmbedModel), "embedding model")
		metricsPort = flag.Int("metrics-port", 9091, "metrics HTTP port")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	met.CollectRuntime("lexbase_worker", 15*time.Second)
	met.ServeAsync(*metricsPort)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	driver, err := neo4j.NewDriverWithContext(*neo4jURL, neo4j.BasicAuth(*neo4jUser, *neo4jPass, ""))
	if err != nil {
		logger.Error("neo4j connect failed", "error", err)
		os.Exit(1)
	}
	defer driver.Close(ctx)
	lib := library.New(driver)

	store, err := semantic.New(*qdrantAddr, *collection)
	if err != nil {
		logger.Error("qdrant connect failed", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	if err := store.EnsureCollection(ctx, openai.EmbedDims); err != nil {
		logger.Error("qdrant ensure collection failed", "error", err)
		os.Exit(1)
	}

	oa := openai.New(openai.Config{APIKey: os.Getenv("OPENAI_API_KEY")})
	manager := embed.New(lib, store, oa, *embedModel, logger)

	nc, err := nats.Connect(*natsURL, nats.Name("lexbase-embed-worker"))
	if err != nil {
		logger.Error("nats connect failed", "error", err)
		os.Exit(1)
	}
	defer nc.Close()

	process := newProcessor(lib, manager, logger)

	sub, err := natsutil.Consume(nc, embed.SubjectJobs, *queue, embed.SubjectDLQ, logger, process)
	if err != nil {
		logger.Error("subscribe failed", "error", err)
		os.Exit(1)
	}
	defer sub.Unsubscribe()

	logger.Info("embed worker running", "subject", embed.SubjectJobs, "queue", *queue)
	<-ctx.Done()
	logger.Info("shutting down")
	nc.Drain()
}

// categoryExpander resolves a category to its member resources.
type categoryExpander interface {
	ResourcesByCategory(ctx context.Context, categoryID string) ([]domain.Resource, error)
}

// embedRunner is the manager side of the job pipeline.
type embedRunner interface {
	EmbedResources(ctx context.Context, ids []string, opts embed.Options) embed.Report
}

// expansion is the intermediate pipeline value: the job plus its resolved
// resource id set.
type expansion struct {
	job embed.Job
	ids []string
}

// newProcessor builds the job handler as a traced two-stage pipeline:
// expand the job to resource ids, then run the embedding manager. The
// expansion stage retries because a transient store error should not
// dead-letter the whole job.
func newProcessor(lib categoryExpander, manager embedRunner, logger *slog.Logger) func(context.Context, embed.Job) error {
	expand := fn.TracedStage("job.expand", fn.RetryStage(
		fn.RetryOpts{MaxAttempts: 3, InitialWait: time.Second, MaxWait: 10 * time.Second, Jitter: true},
		func(ctx context.Context, job embed.Job) fn.Result[expansion] {
			ids := job.ResourceIDs
			if job.CategoryID != "" {
				resources, err := lib.ResourcesByCategory(ctx, job.CategoryID)
				if err != nil {
					return fn.Err[expansion](fmt.Errorf("expand category %s: %w", job.CategoryID, err))
				}
				ids = append(ids, fn.Map(resources, func(r domain.Resource) string { return r.ID })...)
			}
			return fn.Ok(expansion{job: job, ids: fn.Dedup(ids)})
		}))

	run := fn.TracedStage("job.embed", func(ctx context.Context, ex expansion) fn.Result[embed.Report] {
		return fn.Ok(manager.EmbedResources(ctx, ex.ids, embed.Options{Force: ex.job.Force, Clean: ex.job.Clean}))
	})

	pipeline := fn.Then(expand, run)

	return func(ctx context.Context, j embed.Job) error {
		mJobs.Inc()
		mInFlight.Inc()
		defer mInFlight.Dec()
		start := time.Now()
		defer mJobDur.Since(start)

		report, err := pipeline(ctx, j).Unwrap()
		if err != nil {
			return err
		}

		mOutcome(embed.StatusSuccess).Add(int64(report.Success))
		mOutcome(embed.StatusSkipped).Add(int64(report.Skipped))
		mOutcome(embed.StatusError).Add(int64(report.Failed))
		logger.Info("job done",
			"success", report.Success,
			"skipped", report.Skipped,
			"failed", report.Failed,
			"duration", time.Since(start),
		)

		// Successes are durable; the dead-lettered job replays cleanly
		// because unchanged resources are skipped on the next pass.
		if report.Failed > 0 {
			return fmt.Errorf("embed job: %d of %d resources failed: %s",
				report.Failed, len(report.Outcomes), strings.Join(failedIDs(report), ", "))
		}
		return nil
	}
}

func failedIDs(report embed.Report) []string {
	var ids []string
	for _, out := range report.Outcomes {
		if out.Status == embed.StatusError {
			ids = append(ids, out.ResourceID)
		}
	}
	return ids
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

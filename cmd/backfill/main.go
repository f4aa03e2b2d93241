// Command backfill (re)embeds the whole resource library. It pages through
// Neo4j, batches resource ids, and runs the embedding manager over the
// batches with bounded concurrency. With -force, existing embeddings are
// rebuilt in place; without it, already-embedded resources are skipped.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/LexbaseAI/lexbase-mvp/engine/domain"
	"github.com/LexbaseAI/lexbase-mvp/engine/embed"
	"github.com/LexbaseAI/lexbase-mvp/engine/library"
	"github.com/LexbaseAI/lexbase-mvp/engine/semantic"
	"github.com/LexbaseAI/lexbase-mvp/pkg/fn"
	"github.com/LexbaseAI/lexbase-mvp/pkg/openai"
)

func main() {
	var (
		force      = flag.Bool("force", false, "rebuild existing embeddings")
		noClean    = flag.Bool("no-clean", false, "embed raw text without cleaning")
		category   = flag.String("category", "", "limit to one category id")
		batchSize  = flag.Int("batch", 25, "resources per batch")
		workers    = flag.Int("workers", 4, "concurrent batches")
		pageSize   = flag.Int("page", 500, "resources fetched per store page")
		embedModel = flag.String("model", envOr("OPENAI_EMBED_MODEL", openai.DefaultEmbedModel), "embedding model")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	neo4jURL := envOr("NEO4J_URL", "neo4j://localhost:7687")
	neo4jUser := envOr("NEO4J_USER", "neo4j")
	neo4jPass := envOr("NEO4J_PASS", "password")
	qdrantAddr := envOr("QDRANT_URL", "localhost:6334")
	collection := envOr("QDRANT_COLLECTION", "lexbase")

	driver, err := neo4j.NewDriverWithContext(neo4jURL, neo4j.BasicAuth(neo4jUser, neo4jPass, ""))
	if err != nil {
		log.Fatalf("neo4j connect: %v", err)
	}
	defer driver.Close(ctx)
	lib := library.New(driver)

	store, err := semantic.New(qdrantAddr, collection)
	if err != nil {
		log.Fatalf("qdrant connect: %v", err)
	}
	defer store.Close()
	if err := store.EnsureCollection(ctx, openai.EmbedDims); err != nil {
		log.Fatalf("qdrant ensure collection: %v", err)
	}

	oa := openai.New(openai.Config{APIKey: os.Getenv("OPENAI_API_KEY")})
	manager := embed.New(lib, store, oa, *embedModel, slog.Default())

	ids, err := collectIDs(ctx, lib, *category, *pageSize)
	if err != nil {
		log.Fatalf("list resources: %v", err)
	}
	log.Printf("Found %d resources to process (force=%v)", len(ids), *force)

	opts := embed.Options{Force: *force, Clean: !*noClean}

	embedBatch := func(ctx context.Context, batch []string) fn.Result[embed.Report] {
		return fn.Ok(manager.EmbedResources(ctx, batch, opts))
	}
	runAll := fn.BatchStage(*workers, fn.Stage[[]string, embed.Report](embedBatch))

	reports, err := runAll(ctx, fn.Chunk(ids, *batchSize)).Unwrap()
	if err != nil {
		log.Fatalf("backfill run: %v", err)
	}

	var success, skipped, failed int
	for _, r := range reports {
		success += r.Success
		skipped += r.Skipped
		failed += r.Failed
		for _, out := range r.Outcomes {
			if out.Status == embed.StatusError {
				log.Printf("  %s: %s", out.ResourceID, out.Error)
			}
		}
	}
	log.Printf("Done! Embedded: %d, Skipped: %d, Errors: %d, Total: %d", success, skipped, failed, len(ids))

	if global, err := manager.GlobalStatus(ctx); err == nil {
		log.Printf("Collection now holds %d embeddings across %d resources",
			global.TotalEmbeddings, global.EmbeddedResources)
	}
}

// collectIDs pages through the library and returns every resource id,
// optionally limited to one category.
func collectIDs(ctx context.Context, lib *library.Library, category string, pageSize int) ([]string, error) {
	if category != "" {
		resources, err := lib.ResourcesByCategory(ctx, category)
		if err != nil {
			return nil, err
		}
		return fn.Map(resources, func(r domain.Resource) string { return r.ID }), nil
	}

	var ids []string
	for offset := 0; ; offset += pageSize {
		page, err := lib.ListResources(ctx, offset, pageSize)
		if err != nil {
			return nil, err
		}
		ids = append(ids, fn.Map(page, func(r domain.Resource) string { return r.ID })...)
		if len(page) < pageSize {
			return ids, nil
		}
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

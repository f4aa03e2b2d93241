// Package main implements the Lexbase API server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/LexbaseAI/lexbase-mvp/engine/answer"
	"github.com/LexbaseAI/lexbase-mvp/engine/clean"
	"github.com/LexbaseAI/lexbase-mvp/engine/domain"
	"github.com/LexbaseAI/lexbase-mvp/engine/embed"
	"github.com/LexbaseAI/lexbase-mvp/engine/library"
	"github.com/LexbaseAI/lexbase-mvp/engine/retrieve"
	"github.com/LexbaseAI/lexbase-mvp/engine/semantic"
	"github.com/LexbaseAI/lexbase-mvp/pkg/gemini"
	"github.com/LexbaseAI/lexbase-mvp/pkg/metrics"
	"github.com/LexbaseAI/lexbase-mvp/pkg/mid"
	"github.com/LexbaseAI/lexbase-mvp/pkg/natsutil"
	"github.com/LexbaseAI/lexbase-mvp/pkg/openai"
	"github.com/LexbaseAI/lexbase-mvp/pkg/resilience"
)

// Config holds all environment-based configuration.
type Config struct {
	Port          string
	Neo4jURL      string
	Neo4jUser     string
	Neo4jPass     string
	QdrantURL     string
	Collection    string
	OpenAIBaseURL string
	OpenAIKey     string
	EmbedModel    string
	GeminiKey     string
	NATSURL       string
	CORSOrigin    string
}

func loadConfig() Config {
	return Config{
		Port:          envOr("PORT", "8080"),
		Neo4jURL:      envOr("NEO4J_URL", "neo4j://localhost:7687"),
		Neo4jUser:     envOr("NEO4J_USER", "neo4j"),
		Neo4jPass:     envOr("NEO4J_PASS", "password"),
		QdrantURL:     envOr("QDRANT_URL", "localhost:6334"),
		Collection:    envOr("QDRANT_COLLECTION", "lexbase"),
		OpenAIBaseURL: envOr("OPENAI_BASE_URL", openai.DefaultBaseURL),
		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		EmbedModel:    envOr("OPENAI_EMBED_MODEL", openai.DefaultEmbedModel),
		GeminiKey:     os.Getenv("GEMINI_API_KEY"),
		NATSURL:       envOr("NATS_URL", nats.DefaultURL),
		CORSOrigin:    envOr("CORS_ORIGIN", "*"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := loadConfig()

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Connect to Neo4j ---
	neo4jDriver, err := neo4j.NewDriverWithContext(cfg.Neo4jURL, neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPass, ""))
	if err != nil {
		return fmt.Errorf("neo4j driver: %w", err)
	}
	defer neo4jDriver.Close(ctx)

	lib := library.New(neo4jDriver)

	// --- Connect to Qdrant ---
	vectorStore, err := semantic.New(cfg.QdrantURL, cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer vectorStore.Close()
	if err := vectorStore.EnsureCollection(ctx, openai.EmbedDims); err != nil {
		return fmt.Errorf("qdrant ensure collection: %w", err)
	}

	// --- Model backends ---
	oa := openai.New(openai.Config{BaseURL: cfg.OpenAIBaseURL, APIKey: cfg.OpenAIKey})
	chatGuard := &guardedChat{breaker: resilience.NewBreaker(resilience.DefaultBreakerOpts), client: oa}

	var direct answer.ContextGenerator = disabledGemini{}
	if cfg.GeminiKey != "" {
		gc, err := gemini.New(ctx, cfg.GeminiKey)
		if err != nil {
			return fmt.Errorf("gemini client: %w", err)
		}
		direct = &guardedGemini{breaker: resilience.NewBreaker(resilience.DefaultBreakerOpts), client: gc}
	}

	// --- Engine services ---
	manager := embed.New(lib, vectorStore, oa, cfg.EmbedModel, logger)
	retriever := retrieve.New(oa, vectorStore, lib, cfg.EmbedModel, logger)
	synth := answer.New(retriever, lib, lib, chatGuard, direct, logger)

	// --- NATS (optional; embed jobs run inline when unavailable) ---
	var publish func(context.Context, embed.Job) error
	if nc, err := nats.Connect(cfg.NATSURL); err == nil {
		defer nc.Close()
		publish = func(ctx context.Context, job embed.Job) error {
			return natsutil.Publish(ctx, nc, embed.SubjectJobs, job)
		}
		logger.Info("connected to NATS", "url", cfg.NATSURL)
	} else {
		logger.Warn("nats unavailable, embed jobs run inline", "err", err)
	}

	met := metrics.New()
	srv := newServer(synth, lib, manager, publish, met, logger)

	handler := mid.Chain(srv.routes(),
		mid.Recover(logger),
		mid.Logger(logger),
		mid.Metrics(met, "lexbase_api"),
		mid.CORS(cfg.CORSOrigin),
		mid.OTel("lexbase-api"),
	)

	httpSrv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// --- Graceful shutdown ---
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutCtx)
}

// --- Service interfaces (narrow, test-injectable) ---

type answerer interface {
	Answer(ctx context.Context, req domain.ChatRequest) (*answer.Response, error)
}

type libraryStore interface {
	Resource(ctx context.Context, id string) (domain.Resource, error)
	ListResources(ctx context.Context, offset, limit int) ([]domain.Resource, error)
	ResourcesByCategory(ctx context.Context, categoryID string) ([]domain.Resource, error)
	SaveResource(ctx context.Context, r domain.Resource) (domain.Resource, error)
	UpdateResource(ctx context.Context, r domain.Resource) (domain.Resource, error)
	DeleteResource(ctx context.Context, id string) error
	Sessions(ctx context.Context, limit int) ([]domain.ChatSession, error)
	History(ctx context.Context, sessionID string, limit int) ([]domain.ChatMessage, error)
	DeleteSession(ctx context.Context, id string) error
}

type embedManager interface {
	EmbedResources(ctx context.Context, ids []string, opts embed.Options) embed.Report
	Delete(ctx context.Context, resourceID string) error
	Status(ctx context.Context, resourceID string) (embed.ResourceStatus, error)
	StatusByCategory(ctx context.Context, categoryID string) (embed.CategoryStatus, error)
	GlobalStatus(ctx context.Context) (embed.GlobalStatus, error)
}

type server struct {
	answers answerer
	lib     libraryStore
	embeds  embedManager
	publish func(context.Context, embed.Job) error
	met     *metrics.Registry
	logger  *slog.Logger
}

func newServer(a answerer, lib libraryStore, m embedManager, publish func(context.Context, embed.Job) error, met *metrics.Registry, logger *slog.Logger) *server {
	if logger == nil {
		logger = slog.Default()
	}
	if met == nil {
		met = metrics.New()
	}
	return &server{answers: a, lib: lib, embeds: m, publish: publish, met: met, logger: logger}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.Handle("GET /metrics", s.met.Handler())

	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("POST /api/clean", s.handleClean)

	mux.HandleFunc("GET /api/resources", s.handleListResources)
	mux.HandleFunc("POST /api/resources", s.handleCreateResource)
	mux.HandleFunc("GET /api/resources/{id}", s.handleGetResource)
	mux.HandleFunc("PUT /api/resources/{id}", s.handleUpdateResource)
	mux.HandleFunc("DELETE /api/resources/{id}", s.handleDeleteResource)

	mux.HandleFunc("POST /api/embed", s.handleEmbed)
	mux.HandleFunc("GET /api/embed/status", s.handleEmbedStatus)

	mux.HandleFunc("GET /api/sessions", s.handleListSessions)
	mux.HandleFunc("GET /api/sessions/{id}/messages", s.handleSessionMessages)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.handleDeleteSession)
	return mux
}

// --- Handlers ---

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req domain.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := s.answers.Answer(r.Context(), req)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// CleanRequest is the JSON body for POST /api/clean. Extract runs the
// readability pass first, pulling the main content out of a full HTML page
// before the cleaning passes see it.
type CleanRequest struct {
	Text    string         `json:"text"`
	Extract bool           `json:"extract,omitempty"`
	Options *clean.Options `json:"options,omitempty"`
}

// CleanResponse returns the cleaned text with reduction stats. Title is only
// set on extract requests whose page carried one.
type CleanResponse struct {
	Text  string              `json:"text"`
	Title string              `json:"title,omitempty"`
	Stats clean.CleaningStats `json:"stats"`
}

func (s *server) handleClean(w http.ResponseWriter, r *http.Request) {
	var req CleanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	opts := clean.DefaultOptions()
	if req.Options != nil {
		opts = *req.Options
	}
	text := req.Text
	var title string
	if req.Extract {
		text, title = clean.Extract(text)
	}
	cleaned := clean.Clean(text, opts)
	writeJSON(w, http.StatusOK, CleanResponse{
		Text:  cleaned,
		Title: title,
		Stats: clean.Stats(req.Text, cleaned),
	})
}

func (s *server) handleListResources(w http.ResponseWriter, r *http.Request) {
	if cat := r.URL.Query().Get("category_id"); cat != "" {
		resources, err := s.lib.ResourcesByCategory(r.Context(), cat)
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"resources": resources})
		return
	}

	offset := queryInt(r, "offset", 0)
	limit := queryInt(r, "limit", 100)
	resources, err := s.lib.ListResources(r.Context(), offset, limit)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"resources": resources})
}

func (s *server) handleCreateResource(w http.ResponseWriter, r *http.Request) {
	var res domain.Resource
	if err := json.NewDecoder(r.Body).Decode(&res); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	saved, err := s.lib.SaveResource(r.Context(), res)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

func (s *server) handleGetResource(w http.ResponseWriter, r *http.Request) {
	res, err := s.lib.Resource(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *server) handleUpdateResource(w http.ResponseWriter, r *http.Request) {
	var res domain.Resource
	if err := json.NewDecoder(r.Body).Decode(&res); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	res.ID = r.PathValue("id")
	updated, err := s.lib.UpdateResource(r.Context(), res)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *server) handleDeleteResource(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.lib.DeleteResource(r.Context(), id); err != nil {
		s.writeDomainError(w, err)
		return
	}
	// Embeddings are derivatives of the resource; removing the resource
	// cascades into the vector store.
	if err := s.embeds.Delete(r.Context(), id); err != nil {
		s.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// EmbedRequest is the JSON body for POST /api/embed.
type EmbedRequest struct {
	ResourceIDs []string `json:"resource_ids,omitempty"`
	CategoryID  string   `json:"category_id,omitempty"`
	Force       bool     `json:"force"`
	Clean       *bool    `json:"clean,omitempty"`
	Async       bool     `json:"async"`
}

func (s *server) handleEmbed(w http.ResponseWriter, r *http.Request) {
	var req EmbedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.ResourceIDs) == 0 && req.CategoryID == "" {
		writeError(w, http.StatusBadRequest, "resource_ids or category_id is required")
		return
	}

	cleanContent := true
	if req.Clean != nil {
		cleanContent = *req.Clean
	}

	if req.Async && s.publish != nil {
		job := embed.Job{
			ResourceIDs: req.ResourceIDs,
			CategoryID:  req.CategoryID,
			Force:       req.Force,
			Clean:       cleanContent,
			RequestedAt: time.Now().UTC(),
		}
		if err := s.publish(r.Context(), job); err != nil {
			s.logger.Error("embed job publish failed", "err", err)
			writeError(w, http.StatusServiceUnavailable, "embed queue unavailable")
			return
		}
		s.met.Counter("lexbase_api_embed_jobs_published_total", "Embed jobs queued").Inc()
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
		return
	}

	ids := req.ResourceIDs
	if req.CategoryID != "" {
		resources, err := s.lib.ResourcesByCategory(r.Context(), req.CategoryID)
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		for _, res := range resources {
			ids = append(ids, res.ID)
		}
	}

	report := s.embeds.EmbedResources(r.Context(), ids, embed.Options{Force: req.Force, Clean: cleanContent})
	writeJSON(w, http.StatusOK, report)
}

func (s *server) handleEmbedStatus(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	switch {
	case q.Get("resource_id") != "":
		st, err := s.embeds.Status(r.Context(), q.Get("resource_id"))
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	case q.Get("category_id") != "":
		st, err := s.embeds.StatusByCategory(r.Context(), q.Get("category_id"))
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	default:
		st, err := s.embeds.GlobalStatus(r.Context())
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

func (s *server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.lib.Sessions(r.Context(), queryInt(r, "limit", library.DefaultSessionLimit))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (s *server) handleSessionMessages(w http.ResponseWriter, r *http.Request) {
	messages, err := s.lib.History(r.Context(), r.PathValue("id"), queryInt(r, "limit", 0))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

func (s *server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.lib.DeleteSession(r.Context(), r.PathValue("id")); err != nil {
		s.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Error mapping ---

func (s *server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case domain.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, resilience.ErrCircuitOpen):
		writeError(w, http.StatusServiceUnavailable, "model backend unavailable")
	default:
		var be *domain.BackendError
		if errors.As(err, &be) {
			s.logger.Error("backend call failed", "backend", be.Backend, "err", err)
			writeError(w, http.StatusBadGateway, "upstream backend error")
			return
		}
		s.logger.Error("request failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func queryInt(r *http.Request, key string, fallback int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// --- Breaker adapters ---

// guardedChat wraps the OpenAI-compatible completion client with a circuit
// breaker so a failing backend sheds load fast instead of queueing timeouts.
type guardedChat struct {
	breaker *resilience.Breaker
	client  *openai.Client
}

func (g *guardedChat) Complete(ctx context.Context, model string, messages []openai.Message, temperature float32) (string, error) {
	var out string
	err := g.breaker.Call(ctx, func(ctx context.Context) error {
		var err error
		out, err = g.client.Complete(ctx, model, messages, temperature)
		return err
	})
	return out, err
}

// guardedGemini wraps the Gemini client the same way.
type guardedGemini struct {
	breaker *resilience.Breaker
	client  *gemini.Client
}

func (g *guardedGemini) Generate(ctx context.Context, model, systemPrompt, prompt, contextBlob string, temperature float32) (string, error) {
	var out string
	err := g.breaker.Call(ctx, func(ctx context.Context) error {
		var err error
		out, err = g.client.Generate(ctx, model, systemPrompt, prompt, contextBlob, temperature)
		return err
	})
	return out, err
}

// disabledGemini stands in when no GEMINI_API_KEY is configured.
type disabledGemini struct{}

func (disabledGemini) Generate(context.Context, string, string, string, string, float32) (string, error) {
	return "", domain.NewBackendError("gemini", "generate", errors.New("GEMINI_API_KEY not configured"))
}

package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/docchat-ai/docchat/internal/adapter/ai"
	"github.com/docchat-ai/docchat/internal/adapter/processing"
	"github.com/docchat-ai/docchat/internal/adapter/store"
	"github.com/docchat-ai/docchat/internal/adapter/vector"
	"github.com/docchat-ai/docchat/internal/handler"
	"github.com/docchat-ai/docchat/internal/mcp"
	"github.com/docchat-ai/docchat/internal/middleware"
	"github.com/docchat-ai/docchat/internal/service"
	"github.com/docchat-ai/docchat/pkg/config"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/joho/godotenv"

	_ "github.com/lib/pq"
)

func main() {
	// ── Load .env file ───────────────────────────────────────────────────
	_ = godotenv.Load() // silently ignore if .env doesn't exist

	// ── Configuration ────────────────────────────────────────────────────
	cfg := config.Load()

	slog.Info("🚀 Starting DocChat AI",
		"port", cfg.Port,
		"ollama_embed", cfg.OllamaEmbedURL,
		"ollama_chat", cfg.OllamaChatURL,
		"processing", cfg.ProcessingURL,
		"mcp_enabled", cfg.MCPEnabled,
	)

	// ── Database ─────────────────────────────────────────────────────────
	pgStore, err := store.NewPostgresStore(cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pgStore.Close()

	// ── Adapters ─────────────────────────────────────────────────────────
	ollamaAI := ai.NewOllamaProvider(
		ai.OllamaEndpointConfig{
			BaseURL: cfg.OllamaEmbedURL,
			Model:   cfg.OllamaEmbedModel,
			Token:   cfg.OllamaEmbedToken,
		},
		ai.OllamaEndpointConfig{
			BaseURL: cfg.OllamaChatURL,
			Model:   cfg.OllamaChatModel,
			Token:   cfg.OllamaChatToken,
		},
	)

	vectorIndex := vector.NewClient(vector.Config{
		APIURL: cfg.VectorAPIURL,
		APIKey: cfg.VectorAPIKey,
		Cloud:  cfg.VectorCloud,
		Region: cfg.VectorRegion,
	})

	processingClient := processing.NewClient(cfg.ProcessingURL)

	// ── Services ─────────────────────────────────────────────────────────
	poller := service.NewJobPoller(processingClient, cfg.JobPollTimeout, cfg.JobPollInterval)
	ingestService := service.NewIngestService(
		ollamaAI, vectorIndex, processingClient, poller, pgStore,
		cfg.VectorIndexBase, cfg.ChunkSize, cfg.ChunkOverlap,
	)
	ragService := service.NewRAGService(ollamaAI, vectorIndex, cfg.VectorIndexBase, cfg.RetrievalTopK)

	// ── Fiber App ────────────────────────────────────────────────────────
	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: []string{cfg.FrontendURL},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
	}))

	// Audit middleware (logs all requests)
	app.Use(middleware.AuditMiddleware(pgStore))

	// Health check
	app.Get("/api/v1/health", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"app":     cfg.AppName,
			"version": "1.0.0",
		})
	})

	// ── Routes ───────────────────────────────────────────────────────────
	api := app.Group("/api/v1")

	documentHandler := handler.NewDocumentHandler(ingestService, pgStore)
	documentHandler.Register(api)

	conversationHandler := handler.NewConversationHandler(ingestService, pgStore)
	conversationHandler.Register(api)

	chatHandler := handler.NewChatHandler(ragService, pgStore)
	chatHandler.Register(api)

	auditHandler := handler.NewAuditHandler(pgStore)
	auditHandler.Register(api)

	// ── MCP Server (separate port) ───────────────────────────────────────
	if cfg.MCPEnabled {
		mcpServer := mcp.NewServer(ragService, pgStore, cfg.MCPPort)
		go func() {
			if err := mcpServer.Start(); err != nil {
				slog.Error("MCP server failed", "error", err)
			}
		}()
	}

	// ── Start ────────────────────────────────────────────────────────────
	slog.Info("🌐 Fiber listening", "port", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

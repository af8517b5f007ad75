package api

import (
	"github.com/gin-gonic/gin"
	"github.com/marketmatch/marketmatch/internal/api/handler"
	"github.com/marketmatch/marketmatch/internal/api/middleware"
	"github.com/marketmatch/marketmatch/internal/service"
)

// SetupRouter configures the Gin router with all routes.
func SetupRouter(
	ingestService *service.IngestService,
	ragService *service.RAGService,
	adminService *service.AdminService,
	docs service.DocumentStore,
	mode string,
	cors middleware.CORSConfig,
) *gin.Engine {
	switch mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware())
	r.Use(middleware.CORS(cors))

	healthHandler := handler.NewHealthHandler()
	documentHandler := handler.NewDocumentHandler(ingestService, docs)
	queryHandler := handler.NewQueryHandler(ragService)
	adminHandler := handler.NewAdminHandler(adminService)

	r.GET("/health", healthHandler.Health)

	v1 := r.Group("/api/v1")
	{
		// Documents
		v1.POST("/documents", documentHandler.Upload)
		v1.GET("/documents", documentHandler.List)
		v1.GET("/documents/:id", documentHandler.Get)
		v1.DELETE("/documents/:id", documentHandler.Delete)

		// Question answering
		v1.POST("/query", queryHandler.Ask)
		v1.GET("/queries", queryHandler.History)

		// Pipeline lifecycle
		rag := v1.Group("/rag")
		{
			rag.GET("/status", adminHandler.Status)
			rag.POST("/reset", adminHandler.Reset)
			rag.PUT("/backend", adminHandler.SetBackend)
			rag.POST("/reindex", adminHandler.Reindex)
		}
	}

	return r
}

package handlers

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Routes holds the handlers mounted by NewRouter. Search and Admin are optional.
type Routes struct {
	Snapshots    *SnapshotHandler
	Search       *SearchHandler
	Admin        *AdminHandler
	AllowOrigins []string
}

// NewRouter builds the read-only API plus the admin group.
func NewRouter(routes Routes) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	origins := routes.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:8501"}
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", healthCheck)

	api := r.Group("/api")
	{
		api.GET("/snapshots", routes.Snapshots.ListSnapshots)
		api.GET("/snapshots/latest/active", routes.Snapshots.GetLatestActive)
		api.GET("/snapshots/latest/sold", routes.Snapshots.GetLatestSold)
		api.GET("/stats", routes.Snapshots.GetStats)

		if routes.Search != nil {
			api.GET("/search", routes.Search.Search)
		}
	}

	if routes.Admin != nil {
		admin := r.Group("/api/admin")
		{
			admin.POST("/run", routes.Admin.TriggerRun)
			admin.GET("/runs", routes.Admin.GetRuns)
			admin.POST("/cleanup/run", routes.Admin.RunCleanup)
			admin.GET("/ratelimit", routes.Admin.GetRateLimitStats)
			admin.POST("/ratelimit/reset", routes.Admin.ResetRateLimit)
		}
	}

	return r
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

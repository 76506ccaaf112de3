package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/trailsocial/engagement/internal/middleware"
)

// RouteOptions carries the per-route middleware chosen at startup.
type RouteOptions struct {
	ViewLimit gin.HandlerFunc
	ClapLimit gin.HandlerFunc
	Redis     Pinger
}

func passThrough(c *gin.Context) { c.Next() }

// RegisterRoutes mounts the engagement API on r. Authentication is expected
// to have been resolved by an earlier middleware.
func (h *Handlers) RegisterRoutes(r *gin.Engine, opts RouteOptions) {
	viewLimit := opts.ViewLimit
	if viewLimit == nil {
		viewLimit = passThrough
	}
	clapLimit := opts.ClapLimit
	if clapLimit == nil {
		clapLimit = passThrough
	}

	r.GET("/health", h.Health(opts.Redis))

	api := r.Group("/api")
	{
		entries := api.Group("/entries/:token")
		{
			entries.POST("/views", viewLimit, h.RecordEntryView)
			entries.GET("/views", h.GetEntryViews)
			entries.POST("/claps", middleware.RequireAuth(), clapLimit, h.AddEntryClap)
			entries.GET("/claps", h.GetEntryClaps)
		}

		comments := api.Group("/comments/:token")
		{
			comments.POST("/views", viewLimit, h.RecordCommentView)
			comments.GET("/views", h.GetCommentViews)
			comments.POST("/claps", middleware.RequireAuth(), clapLimit, h.AddCommentClap)
			comments.GET("/claps", h.GetCommentClaps)
		}

		users := api.Group("/users/:nickname")
		{
			users.POST("/views", viewLimit, h.RecordProfileView)
			users.GET("/view-stats", h.GetProfileViewStats)
		}

		api.GET("/views", h.GetViewCounts)
		api.GET("/claps", h.GetClapCounts)

		admin := api.Group("/admin", middleware.RequireAdmin())
		{
			admin.POST("/view-counts/rebuild", h.RebuildViewCounts)
		}
	}
}

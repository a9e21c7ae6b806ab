package dashboard

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/skimmer/internal/export"
	"github.com/zulandar/skimmer/internal/session"
)

// registerRoutes sets up all dashboard routes on the Gin router.
func registerRoutes(router *gin.Engine, opts StartOpts) {
	api := router.Group("/api")
	api.GET("/state", handleState(opts.Session))
	api.POST("/start", handleStart(opts.Session, opts.Defaults))
	api.POST("/pause", handleCommand(opts.Session, func(c *gin.Context) error { return opts.Session.Pause() }))
	api.POST("/resume", handleCommand(opts.Session, func(c *gin.Context) error { return opts.Session.Resume() }))
	api.POST("/stop", handleCommand(opts.Session, func(c *gin.Context) error { return opts.Session.Stop(c.Request.Context()) }))
	api.POST("/clear", handleCommand(opts.Session, func(c *gin.Context) error { return opts.Session.ClearData(c.Request.Context()) }))
	api.GET("/export/:format", handleExport(opts.Session))
	api.GET("/runs", handleRuns(opts.Runs))
	api.GET("/events", handleSSE(opts.Hub))
}

func handleState(ctl Controller) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, ctl.State())
	}
}

// handleStart starts a run. The body, when present, overrides fields of
// the default settings.
func handleStart(ctl Controller, defaults session.Settings) gin.HandlerFunc {
	return func(c *gin.Context) {
		settings := defaults
		if err := c.ShouldBindJSON(&settings); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := ctl.Start(c.Request.Context(), settings); err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusAccepted, ctl.State())
	}
}

func handleCommand(ctl Controller, run func(c *gin.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := run(c); err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, ctl.State())
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrAlreadyRunning), errors.Is(err, session.ErrNotRunning):
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

func handleExport(ctl Controller) gin.HandlerFunc {
	return func(c *gin.Context) {
		format, err := export.ParseFormat(c.Param("format"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		st := ctl.State()
		src := export.Source{
			Store:       ctl.Store(),
			ChannelID:   st.ChannelID,
			ChannelName: st.ChannelName,
			TimeRange:   st.ActiveTimeRange,
			Now:         time.Now(),
		}
		name := st.ChannelName
		if name == "" {
			name = st.ChannelID
		}
		c.Header("Content-Type", format.ContentType())
		c.Header("Content-Disposition", `attachment; filename="`+export.FileName(name, format, src.Now)+`"`)
		c.Status(http.StatusOK)
		if err := export.Write(c.Writer, format, src); err != nil {
			_ = c.Error(err)
		}
	}
}

func handleRuns(runs RunLister) gin.HandlerFunc {
	return func(c *gin.Context) {
		if runs == nil {
			c.JSON(http.StatusOK, gin.H{"runs": []any{}})
			return
		}
		limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
		if err != nil || limit <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		list, err := runs.Recent(c.Request.Context(), limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"runs": list})
	}
}

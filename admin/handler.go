package admin

import (
	"context"
	"errors"
	"net/http"

	job_scheduler "github.com/TimeWtr/job_scheduler"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handler struct {
	svc    Service
	logger job_scheduler.Logger
}

func NewHandler(svc Service, logger job_scheduler.Logger) *Handler {
	if logger == nil {
		logger = job_scheduler.NewNopLogger()
	}
	return &Handler{svc: svc, logger: logger}
}

// NewRouter 管理接口与/metrics
func NewRouter(svc Service, gatherer prometheus.Gatherer, logger job_scheduler.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	NewHandler(svc, logger).Register(r)
	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
	return r
}

func (h *Handler) Register(r gin.IRouter) {
	g := r.Group("/jobs")
	g.GET("", h.list)
	g.GET("/:name", h.get)
	g.POST("/:name/start", h.start)
	g.POST("/:name/stop", h.stop)
	g.POST("/:name/pause", h.pause)
	g.POST("/:name/unpause", h.unpause)
	g.POST("/:name/invoke", h.invoke)
}

func (h *Handler) list(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"jobs": h.svc.List()})
}

func (h *Handler) get(c *gin.Context) {
	s, err := h.svc.Get(c.Param("name"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *Handler) start(c *gin.Context) {
	name := c.Param("name")
	if err := h.svc.Start(c.Request.Context(), name); err != nil {
		h.fail(c, err)
		return
	}
	h.respond(c, name)
}

func (h *Handler) stop(c *gin.Context) {
	name := c.Param("name")
	ok, err := h.svc.Stop(name)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"name": name, "stopped": ok})
}

func (h *Handler) pause(c *gin.Context) {
	name := c.Param("name")
	if err := h.svc.Pause(name); err != nil {
		h.fail(c, err)
		return
	}
	h.respond(c, name)
}

func (h *Handler) unpause(c *gin.Context) {
	name := c.Param("name")
	if err := h.svc.Unpause(name); err != nil {
		h.fail(c, err)
		return
	}
	h.respond(c, name)
}

// invoke 默认同步执行；async=true时在后台执行并立即返回202
func (h *Handler) invoke(c *gin.Context) {
	name := c.Param("name")
	if c.Query("async") == "true" {
		if _, err := h.svc.Get(name); err != nil {
			h.fail(c, err)
			return
		}
		ctx := context.WithoutCancel(c.Request.Context())
		go func() {
			if _, err := h.svc.Invoke(ctx, name); err != nil {
				h.logger.Error("async invoke failed", job_scheduler.String("job", name), job_scheduler.Error(err))
			}
		}()
		c.JSON(http.StatusAccepted, gin.H{"name": name})
		return
	}

	ran, err := h.svc.Invoke(c.Request.Context(), name)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"name": name, "ran": ran})
}

func (h *Handler) respond(c *gin.Context, name string) {
	s, err := h.svc.Get(name)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *Handler) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, job_scheduler.ErrJobNotFound):
		status = http.StatusNotFound
	case errors.Is(err, job_scheduler.ErrInvalidCron):
		status = http.StatusBadRequest
	default:
		h.logger.Error("admin request failed", job_scheduler.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// Package api serves the controller's state as JSON for a browser dashboard.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"lora-control/internal/controller"
	"lora-control/internal/dispatch"
	"lora-control/internal/groups"
	"lora-control/internal/lora"
	"lora-control/internal/storage"
	"lora-control/internal/view"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// History is the journal view the router needs.
type History interface {
	Recent(ctx context.Context, deviceID string, limit int) ([]storage.Entry, error)
}

type Router struct {
	engine  *gin.Engine
	ctl     *controller.Controller
	history History
	logger  *slog.Logger
}

// NewRouter wires every route. history may be nil when no journal is open.
func NewRouter(ctl *controller.Controller, history History, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	engine := gin.New()
	setupMiddleware(engine, logger)

	r := &Router{engine: engine, ctl: ctl, history: history, logger: logger}
	r.setupRoutes()
	return r
}

func (r *Router) Handler() http.Handler { return r.engine }

func (r *Router) setupRoutes() {
	r.engine.GET("/healthz", r.health)

	api := r.engine.Group("/api")
	{
		devices := api.Group("/devices")
		devices.GET("", r.listDevices)
		devices.GET("/:id", r.getDevice)
		devices.POST("/:id/:action", r.actOnDevice)

		api.GET("/pending", r.listPending)
		api.GET("/map", r.deviceMap)
		api.GET("/history", r.listHistory)

		grp := api.Group("/groups")
		grp.GET("", r.listGroups)
		grp.GET("/:id/schedules", r.listSchedules)
		grp.POST("/:id/:action", r.actOnGroup)
	}
}

func (r *Router) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"devices": r.ctl.Registry().Len(),
		"pending": r.ctl.Pending().Len(),
	})
}

func criteriaFromQuery(c *gin.Context) (view.Criteria, error) {
	state, err := view.ParseState(c.Query("estado"))
	if err != nil {
		return view.Criteria{}, err
	}
	gw, err := view.ParseGateway(c.Query("gateway"))
	if err != nil {
		return view.Criteria{}, err
	}
	motor, err := view.ParseMotor(c.Query("motor"))
	if err != nil {
		return view.Criteria{}, err
	}
	return view.Criteria{Alias: c.Query("alias"), State: state, Gateway: gw, Motor: motor}, nil
}

func (r *Router) listDevices(c *gin.Context) {
	criteria, err := criteriaFromQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "bad_filter", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, r.ctl.View(criteria))
}

func (r *Router) getDevice(c *gin.Context) {
	d, err := r.ctl.Device(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, d)
}

func (r *Router) actOnDevice(c *gin.Context) {
	action, err := lora.ParseAction(c.Param("action"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "unknown_action", Message: err.Error()})
		return
	}
	o, err := r.ctl.Act(c.Request.Context(), c.Param("id"), action)
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: err.Error()})
		return
	}
	c.JSON(outcomeStatus(o), o)
}

func outcomeStatus(o dispatch.Outcome) int {
	switch {
	case o.OK():
		return http.StatusOK
	case o.Status == dispatch.StatusRejected:
		return http.StatusBadGateway
	case o.Timeout():
		return http.StatusGatewayTimeout
	default:
		return http.StatusServiceUnavailable
	}
}

func (r *Router) listPending(c *gin.Context) {
	c.JSON(http.StatusOK, r.ctl.Pending().Snapshot())
}

func (r *Router) deviceMap(c *gin.Context) {
	criteria, err := criteriaFromQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "bad_filter", Message: err.Error()})
		return
	}
	devices := r.ctl.Projector().Project(r.ctl.Registry().All(), criteria)
	c.JSON(http.StatusOK, view.Markers(devices))
}

func (r *Router) listHistory(c *gin.Context) {
	if r.history == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "no_journal", Message: "action journal is disabled"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	entries, err := r.history.Recent(c.Request.Context(), c.Query("id"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "journal_error", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, entries)
}

type groupView struct {
	ID      string                  `json:"id"`
	Name    string                  `json:"nombre"`
	Members []controller.DeviceView `json:"miembros"`
}

func (r *Router) listGroups(c *gin.Context) {
	gs, err := r.ctl.Groups().List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: "backend_error", Message: err.Error()})
		return
	}
	out := make([]groupView, 0, len(gs))
	for _, g := range gs {
		out = append(out, groupView{ID: g.ID, Name: g.Name, Members: r.ctl.Members(g)})
	}
	c.JSON(http.StatusOK, out)
}

func (r *Router) listSchedules(c *gin.Context) {
	g, err := r.ctl.Groups().Find(c.Request.Context(), c.Param("id"))
	if err != nil {
		r.groupError(c, err)
		return
	}
	list, err := r.ctl.Schedules().List(c.Request.Context(), g.ID)
	if err != nil {
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: "backend_error", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, list)
}

func (r *Router) actOnGroup(c *gin.Context) {
	action, err := lora.ParseAction(c.Param("action"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "unknown_action", Message: err.Error()})
		return
	}
	res, err := r.ctl.RunGroup(c.Request.Context(), c.Param("id"), action)
	if err != nil {
		r.groupError(c, err)
		return
	}
	status := http.StatusOK
	if len(res.Succeeded) == 0 && len(res.Failed) > 0 {
		status = http.StatusBadGateway
	} else if len(res.Failed) > 0 {
		status = http.StatusMultiStatus
	}
	c.JSON(status, res)
}

func (r *Router) groupError(c *gin.Context, err error) {
	if errors.Is(err, groups.ErrGroupNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: err.Error()})
		return
	}
	c.JSON(http.StatusBadGateway, ErrorResponse{Error: "backend_error", Message: err.Error()})
}

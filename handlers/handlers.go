package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"citifix/database"
	"citifix/engine"
	"citifix/mapaggr"
	"citifix/middleware"
	"citifix/models"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
)

// Handler exposes the HTTP surface over the engine and the store.
type Handler struct {
	engine *engine.Engine
	db     *database.Service
	auth   *middleware.Auth
}

func New(e *engine.Engine, db *database.Service, auth *middleware.Auth) *Handler {
	return &Handler{engine: e, db: db, auth: auth}
}

// writeError maps storage errors onto HTTP statuses. Anything unmapped is
// an internal error and gets logged with its cause.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, database.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, database.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, database.ErrAlreadyVoted):
		c.JSON(http.StatusConflict, gin.H{"error": "already voted"})
	case errors.Is(err, database.ErrInvalidTransition):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		log.Errorf("Internal error handling %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

// Register creates a user account and returns it with a signed token.
func (h *Handler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.db.CreateUser(c.Request.Context(), req.Name, req.Role)
	if err != nil {
		writeError(c, err)
		return
	}

	token, err := h.auth.GenerateToken(user.ID, user.Name, user.Role)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": user, "token": token})
}

// Login issues a fresh token for an existing user.
func (h *Handler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.db.GetUser(c.Request.Context(), req.UserID)
	if err != nil {
		writeError(c, err)
		return
	}

	token, err := h.auth.GenerateToken(user.ID, user.Name, user.Role)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user, "token": token})
}

// CreateComplaint submits a new complaint for the authenticated citizen.
func (h *Handler) CreateComplaint(c *gin.Context) {
	var req models.CreateComplaintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	complaint, err := h.engine.Submit(c.Request.Context(), &req,
		c.GetString(middleware.ContextUserID), c.GetString(middleware.ContextUserName))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, complaint)
}

// ListComplaints returns complaints filtered by query parameters.
func (h *Handler) ListComplaints(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	filter := &models.ComplaintFilter{
		Status:      c.Query("status"),
		Category:    c.Query("category"),
		Search:      c.Query("q"),
		SortByVotes: c.Query("sort") == "votes",
		Limit:       limit,
	}

	complaints, err := h.db.ListComplaints(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, complaints)
}

// GetComplaint returns one complaint by id.
func (h *Handler) GetComplaint(c *gin.Context) {
	complaint, err := h.db.GetComplaint(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, complaint)
}

// Vote records the caller's vote. A duplicate vote is a 409.
func (h *Handler) Vote(c *gin.Context) {
	complaint, err := h.engine.Vote(c.Request.Context(),
		c.Param("id"), c.GetString(middleware.ContextUserID))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, complaint)
}

// UpdateStatus applies an admin status change.
func (h *Handler) UpdateStatus(c *gin.Context) {
	var req models.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	complaint, err := h.engine.SetStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, complaint)
}

// AssignDepartment routes a complaint to a department.
func (h *Handler) AssignDepartment(c *gin.Context) {
	var req models.AssignDepartmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	complaint, err := h.db.AssignDepartment(c.Request.Context(), c.Param("id"), req.Department)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, complaint)
}

// StatusCounts returns complaint totals per status for the analytics view.
func (h *Handler) StatusCounts(c *gin.Context) {
	counts, err := h.db.StatusCounts(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, counts)
}

// Map returns pins for the requested viewport, aggregated into clusters
// when aggregate=true.
func (h *Handler) Map(c *gin.Context) {
	var vp models.ViewPort
	if err := c.ShouldBindQuery(&vp); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if vp.LatMin >= vp.LatMax || vp.LonMin >= vp.LonMax {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid viewport"})
		return
	}

	pins, err := h.db.PinsInViewport(c.Request.Context(), &vp)
	if err != nil {
		writeError(c, err)
		return
	}
	if c.Query("aggregate") == "true" {
		pins = mapaggr.Aggregate(&vp, pins)
	}
	c.JSON(http.StatusOK, pins)
}

// Leaderboard returns the top reward point earners.
func (h *Handler) Leaderboard(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	users, err := h.db.Leaderboard(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

// UserStats returns a reporter's dashboard counters.
func (h *Handler) UserStats(c *gin.Context) {
	stats, err := h.db.GetUserStats(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

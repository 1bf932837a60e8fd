package roomhandler

import (
	"boardsync/internal/auth"
	"boardsync/internal/services/board"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const userKey = "userId"

// Memberships answers which rooms a user's live connections joined.
type Memberships interface {
	RoomsOf(userID string) []int64
}

type Handler struct {
	svc          board.IBoardService
	members      Memberships
	verifier     auth.Verifier
	defaultLimit int
	maxLimit     int
}

func New(svc board.IBoardService, members Memberships, verifier auth.Verifier, defaultLimit, maxLimit int) *Handler {
	return &Handler{
		svc:          svc,
		members:      members,
		verifier:     verifier,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
	}
}

func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/rooms/:roomId/shapes", h.requireUser, h.history)
	r.GET("/me/rooms", h.requireUser, h.rooms)
}

// requireUser verifies the bearer token and stores the user id on the
// context.
func (h *Handler) requireUser(c *gin.Context) {
	userID, err := h.verifier.Verify(auth.BearerToken(c.GetHeader("Authorization")))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}
	c.Set(userKey, userID)
	c.Next()
}

// @Summary		Room shape history
// @Description	Returns the most recent persisted shapes of a room, oldest first.
// @Tags			Rooms
// @Security		BearerAuth
// @Param			roomId	path		int	true	"Room ID"	default(7)
// @Param			limit	query		int	false	"Max shapes"	minimum(1)	default(100)
// @Success		200		{object}	HistoryResponse
// @Failure		400		{object}	ErrorResponse
// @Failure		401		{object}	ErrorResponse
// @Failure		500		{object}	ErrorResponse
// @Router			/rooms/{roomId}/shapes [get]
func (h *Handler) history(c *gin.Context) {
	var uri RoomURI
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	var q HistoryQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	limit := q.Limit
	if limit == 0 {
		limit = h.defaultLimit
	}
	if limit > h.maxLimit {
		limit = h.maxLimit
	}

	shapes, err := h.svc.History(c.Request.Context(), uri.RoomID, limit)
	if err != nil {
		if errors.Is(err, board.ErrInvalidRoom) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
		zap.L().Error("http.history", zap.Int64("room", uri.RoomID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "history unavailable"})
		return
	}
	c.JSON(http.StatusOK, HistoryResponse{RoomID: uri.RoomID, Shapes: shapes})
}

// @Summary		Joined rooms
// @Description	Lists the rooms the caller's live connections have joined.
// @Tags			Rooms
// @Security		BearerAuth
// @Success		200	{object}	RoomsResponse
// @Failure		401	{object}	ErrorResponse
// @Router			/me/rooms [get]
func (h *Handler) rooms(c *gin.Context) {
	userID := c.GetString(userKey)
	c.JSON(http.StatusOK, RoomsResponse{UserID: userID, Rooms: h.members.RoomsOf(userID)})
}

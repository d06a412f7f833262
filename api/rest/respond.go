package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pulsewire/server/social/circle"
	"github.com/pulsewire/server/social/friendship"
	"github.com/pulsewire/server/social/pulse"
	"github.com/pulsewire/server/social/reaction"
)

// writeDomainError maps a core sentinel error to its HTTP response. Each
// outcome keeps its own message so clients can tell them apart.
func writeDomainError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	msg := "internal error"

	switch {
	case errors.Is(err, friendship.ErrSelfReference),
		errors.Is(err, friendship.ErrMessageTooLong),
		errors.Is(err, pulse.ErrEmptyMessage),
		errors.Is(err, pulse.ErrMessageTooLong),
		errors.Is(err, reaction.ErrInvalidReactionType):
		status, msg = http.StatusBadRequest, err.Error()

	case errors.Is(err, friendship.ErrAlreadyFriends),
		errors.Is(err, friendship.ErrRequestPending),
		errors.Is(err, friendship.ErrRequestResolved),
		errors.Is(err, circle.ErrAlreadyMember),
		errors.Is(err, circle.ErrCircleFull),
		errors.Is(err, pulse.ErrEmptyCircle):
		status, msg = http.StatusConflict, err.Error()

	case errors.Is(err, friendship.ErrNotAuthorized),
		errors.Is(err, friendship.ErrNotFriends),
		errors.Is(err, circle.ErrCircleNotOwned),
		errors.Is(err, circle.ErrNotMember),
		errors.Is(err, pulse.ErrNotAuthorized),
		errors.Is(err, reaction.ErrNotAuthorized):
		status, msg = http.StatusForbidden, err.Error()

	case errors.Is(err, friendship.ErrRequestNotFound),
		errors.Is(err, circle.ErrCircleNotFound),
		errors.Is(err, pulse.ErrPulseNotFound):
		status, msg = http.StatusNotFound, err.Error()
	}

	c.JSON(status, gin.H{"error": msg})
}

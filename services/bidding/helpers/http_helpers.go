package helpers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"auction-house/internal/biddingerrors"
	model "auction-house/internal/models"
	"auction-house/utils"

	"github.com/gin-gonic/gin"
)

// UserContextKey is where the auth middleware stores the resolved user
const UserContextKey = "auction.user"

// HandleBindError sends a standardized JSON error for binding failures
func HandleBindError(c *gin.Context, handlerName string, err error) {
	wrappedErr := fmt.Errorf("invalid request payload: %w", err)
	utils.JSONError(c, http.StatusBadRequest, wrappedErr, "invalid request payload")
	utils.Warn(handlerName+": binding error", map[string]any{"error": err.Error()})
}

// MapErrorToHTTP maps domain/service errors to HTTP status code and message
func MapErrorToHTTP(err error) (int, string) {
	switch {
	case errors.Is(err, biddingerrors.ErrAuctionNotFound):
		return http.StatusNotFound, "auction not found"
	case errors.Is(err, biddingerrors.ErrInvalidBid):
		return http.StatusBadRequest, "invalid bid details"
	case errors.Is(err, biddingerrors.ErrIdentityRequired):
		return http.StatusUnauthorized, "authentication required"
	case errors.Is(err, biddingerrors.ErrSelfBid):
		return http.StatusForbidden, "cannot bid on your own auction"
	case errors.Is(err, biddingerrors.ErrAuctionNotActive):
		return http.StatusConflict, "auction is not active"
	case errors.Is(err, biddingerrors.ErrAuctionEnded):
		return http.StatusConflict, "auction has ended"
	case errors.Is(err, biddingerrors.ErrBidTooLow):
		return http.StatusConflict, "bid amount too low"
	case errors.Is(err, biddingerrors.ErrCommitConflict):
		return http.StatusConflict, "auction is busy, retry the bid"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// WriteServiceError maps err to a response. BidTooLow carries the value to beat.
func WriteServiceError(c *gin.Context, err error) {
	status, message := MapErrorToHTTP(err)

	var tooLow *biddingerrors.BidTooLowError
	if errors.As(err, &tooLow) {
		utils.JSONErrorWithDetails(c, status, fmt.Errorf("%s: %w", message, err), message, gin.H{
			"current_highest_bid": tooLow.CurrentHighestBid,
		})
		return
	}
	utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
}

// CurrentUser returns the user the auth middleware resolved for this request
func CurrentUser(c *gin.Context) (model.User, bool) {
	v, ok := c.Get(UserContextKey)
	if !ok {
		return model.User{}, false
	}
	user, ok := v.(model.User)
	return user, ok && user.UserID != ""
}

// ParseLimit reads the optional ?limit= query parameter. Zero means "use the default".
func ParseLimit(c *gin.Context) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return 0, fmt.Errorf("%w - limit must be a positive integer", biddingerrors.ErrInvalidBid)
	}
	return limit, nil
}

// LogSuccess is a small helper to standardize logging of successful operations
func LogSuccess(handlerName, message string, ctx map[string]any) {
	utils.Info(handlerName+": "+message, ctx)
}

// Package handlers contains the gin handlers for the admin dashboard API and
// the ScholarFinder wizard endpoints.
package handlers

import (
	"encoding/json"
	"fmt"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"scholarfinder-back/internal/apierr"
	"scholarfinder-back/internal/models"
)

// Activity action constants recorded by admin mutations.
const (
	ActionLogin         = "LOGIN"
	ActionUserInvited   = "USER_INVITED"
	ActionInviteAccept  = "INVITE_ACCEPTED"
	ActionRoleUpdated   = "USER_ROLE_UPDATED"
	ActionStatusUpdated = "USER_STATUS_UPDATED"
	ActionUserDeleted   = "USER_DELETED"
	ActionProcessCreate = "PROCESS_CREATED"
	ActionProcessUpdate = "PROCESS_UPDATED"
	ActionProcessDelete = "PROCESS_DELETED"
	ActionStageReset    = "PROCESS_STAGE_RESET"
	ActionExport        = "DATA_EXPORTED"
	ActionUpload        = "MANUSCRIPT_UPLOADED"
)

// respondError renders a taxonomy error with its HTTP status; rate-limited
// errors also carry the Retry-After header in seconds.
func respondError(c *gin.Context, err error) {
	apiErr := apierr.AsError(err)
	if apiErr.RetryAfter > 0 {
		c.Header("Retry-After", fmt.Sprintf("%d", int(apiErr.RetryAfter.Seconds())))
	}
	c.JSON(apiErr.Status(), gin.H{
		"type":       apiErr.Type,
		"message":    apiErr.Message,
		"retryable":  apiErr.Retryable,
		"retryAfter": apiErr.RetryAfterMillis(),
	})
}

// recordActivity appends an activity log row. Failures are swallowed; logging
// must never fail the mutation it describes.
func recordActivity(db *gorm.DB, userID uint, userEmail string, processID *uint, action string, details interface{}) {
	var raw []byte
	if details != nil {
		raw, _ = json.Marshal(details)
	}
	db.Create(&models.ActivityLog{
		UserID:    userID,
		UserEmail: userEmail,
		ProcessID: processID,
		Action:    action,
		Details:   datatypes.JSON(raw),
	})
}

// currentUser loads the authenticated user from the request context.
func currentUser(c *gin.Context, db *gorm.DB) (*models.User, error) {
	userID := c.GetUint("userID")
	var user models.User
	if err := db.First(&user, userID).Error; err != nil {
		return nil, fmt.Errorf("load user %d: %w", userID, err)
	}
	return &user, nil
}

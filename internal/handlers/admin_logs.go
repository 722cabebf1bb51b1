package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"scholarfinder-back/internal/apierr"
	"scholarfinder-back/internal/models"
	"scholarfinder-back/internal/query"
)

func ListLogs(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		params := query.FromContext(c, "action", "user_id", "process_id")

		base := db.Model(&models.ActivityLog{}).
			Scopes(query.Scope(params, "created_at", "user_email", "action"))

		var total int64
		if err := base.Count(&total).Error; err != nil {
			respondError(c, apierr.Server("Failed to count logs"))
			return
		}

		var logs []models.ActivityLog
		if err := base.
			Scopes(query.OrderAndPage(params, "created_at", "action", "user_email")).
			Find(&logs).Error; err != nil {
			respondError(c, apierr.Server("Failed to load logs"))
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"data":       logs,
			"pagination": query.NewPagination(params.Page, params.Limit, total),
		})
	}
}

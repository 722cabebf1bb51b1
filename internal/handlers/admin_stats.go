package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"scholarfinder-back/internal/apierr"
	"scholarfinder-back/internal/models"
	"scholarfinder-back/internal/poller"
)

func GetStats(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var (
			userCount      int64
			processCount   int64
			completedCount int64
			errorCount     int64
			logCount       int64
			activeToday    int64
		)

		db.Model(&models.User{}).Count(&userCount)
		db.Model(&models.Process{}).Count(&processCount)
		db.Model(&models.Process{}).Where("status = ?", models.ProcessCompleted).Count(&completedCount)
		db.Model(&models.Process{}).Where("status = ?", models.ProcessError).Count(&errorCount)
		db.Model(&models.ActivityLog{}).Count(&logCount)

		since := time.Now().Add(-24 * time.Hour)
		db.Model(&models.User{}).Where("last_login_at >= ?", since).Count(&activeToday)

		c.JSON(http.StatusOK, gin.H{
			"users":               userCount,
			"processes":           processCount,
			"completed_processes": completedCount,
			"failed_processes":    errorCount,
			"activity_logs":       logCount,
			"active_users_24h":    activeToday,
		})
	}
}

// SystemHealth serves the snapshot the background poller maintains.
func SystemHealth(monitor *poller.HealthMonitor) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, monitor.Snapshot())
	}
}

func ListAlerts(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var alerts []models.SystemAlert
		if err := db.Where("acknowledged_at IS NULL").
			Order("created_at DESC").Limit(100).Find(&alerts).Error; err != nil {
			respondError(c, apierr.Server("Failed to load alerts"))
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": alerts})
	}
}

func AcknowledgeAlert(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var alert models.SystemAlert
		if err := db.First(&alert, c.Param("id")).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Alert not found"})
			return
		}

		now := time.Now()
		alert.AcknowledgedAt = &now
		if err := db.Save(&alert).Error; err != nil {
			respondError(c, apierr.Server("Failed to acknowledge alert"))
			return
		}

		c.JSON(http.StatusOK, alert)
	}
}

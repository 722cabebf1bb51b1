package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"scholarfinder-back/internal/apierr"
	"scholarfinder-back/internal/models"
	"scholarfinder-back/internal/query"
	"scholarfinder-back/internal/wizard"
)

type CreateProcessRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
}

type UpdateProcessRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

type ResetStageRequest struct {
	Step string `json:"step" binding:"required"`
}

// processRow carries the owner's email alongside the process, as the admin
// table shows it.
type processRow struct {
	models.Process
	UserEmail string `json:"user_email"`
}

func ListProcesses(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		params := query.FromContext(c, "status", "current_step", "user_id")

		base := db.Model(&models.Process{}).
			Scopes(query.Scope(params, "processes.created_at", "title", "description"))

		var total int64
		if err := base.Count(&total).Error; err != nil {
			respondError(c, apierr.Server("Failed to count processes"))
			return
		}

		var processes []models.Process
		if err := base.Preload("User").
			Scopes(query.OrderAndPage(params, "created_at", "title", "status", "updated_at")).
			Find(&processes).Error; err != nil {
			respondError(c, apierr.Server("Failed to load processes"))
			return
		}

		rows := make([]processRow, len(processes))
		for i, p := range processes {
			rows[i] = processRow{Process: p, UserEmail: p.User.Email}
		}

		c.JSON(http.StatusOK, gin.H{
			"data":       rows,
			"pagination": query.NewPagination(params.Page, params.Limit, total),
		})
	}
}

func CreateProcess(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateProcessRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, apierr.Validation("Title is required"))
			return
		}

		user, err := currentUser(c, db)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}

		process := models.Process{
			UserID:      user.ID,
			Title:       req.Title,
			Description: req.Description,
			CurrentStep: string(wizard.StepUpload),
			Status:      models.ProcessCreated,
		}
		if err := db.Create(&process).Error; err != nil {
			respondError(c, apierr.Server("Failed to create process"))
			return
		}

		recordActivity(db, user.ID, user.Email, &process.ID, ActionProcessCreate,
			gin.H{"title": process.Title})

		c.JSON(http.StatusCreated, process)
	}
}

func UpdateProcess(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req UpdateProcessRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, apierr.Validation(err.Error()))
			return
		}

		var process models.Process
		if err := db.First(&process, c.Param("id")).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Process not found"})
			return
		}

		if req.Title != nil {
			if *req.Title == "" {
				respondError(c, apierr.Validation("Title cannot be empty"))
				return
			}
			process.Title = *req.Title
		}
		if req.Description != nil {
			process.Description = *req.Description
		}
		if err := db.Save(&process).Error; err != nil {
			respondError(c, apierr.Server("Failed to update process"))
			return
		}

		user, _ := currentUser(c, db)
		if user != nil {
			recordActivity(db, user.ID, user.Email, &process.ID, ActionProcessUpdate, nil)
		}

		c.JSON(http.StatusOK, process)
	}
}

func DeleteProcess(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var process models.Process
		if err := db.First(&process, c.Param("id")).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Process not found"})
			return
		}

		if err := db.Delete(&process).Error; err != nil {
			respondError(c, apierr.Server("Failed to delete process"))
			return
		}

		user, _ := currentUser(c, db)
		if user != nil {
			recordActivity(db, user.ID, user.Email, &process.ID, ActionProcessDelete,
				gin.H{"title": process.Title})
		}

		c.Status(http.StatusNoContent)
	}
}

// ResetStage rewinds a process to an earlier wizard step, discarding the step
// data from that point on.
func ResetStage(db *gorm.DB, engine *wizard.Engine, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ResetStageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, apierr.Validation("Step is required"))
			return
		}

		step := wizard.Step(req.Step)
		if !wizard.Valid(step) {
			respondError(c, apierr.Validation("Unknown step: "+req.Step))
			return
		}

		var process models.Process
		if err := db.First(&process, c.Param("id")).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Process not found"})
			return
		}

		if err := engine.ResetToStep(&process, step); err != nil {
			respondError(c, apierr.Server("Failed to reset stage"))
			return
		}

		logger.Info("process stage reset",
			zap.Uint("process_id", process.ID),
			zap.String("step", req.Step))

		user, _ := currentUser(c, db)
		if user != nil {
			recordActivity(db, user.ID, user.Email, &process.ID, ActionStageReset,
				gin.H{"step": req.Step})
		}

		c.JSON(http.StatusOK, process)
	}
}

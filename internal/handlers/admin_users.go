package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"scholarfinder-back/internal/apierr"
	"scholarfinder-back/internal/models"
	"scholarfinder-back/internal/query"
)

type InviteUserRequest struct {
	Email string      `json:"email" binding:"required,email"`
	Role  models.Role `json:"role"`
}

type UpdateRoleRequest struct {
	Role models.Role `json:"role" binding:"required"`
}

type UpdateStatusRequest struct {
	Status models.UserStatus `json:"status" binding:"required"`
}

// userRow is a user list entry with the per-user counts the table shows.
type userRow struct {
	models.User
	ProcessCount  int64 `json:"process_count"`
	ActivityCount int64 `json:"activity_count"`
}

func ListUsers(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		params := query.FromContext(c, "role", "status")

		base := db.Model(&models.User{}).
			Scopes(query.Scope(params, "created_at", "email", "name"))

		var total int64
		if err := base.Count(&total).Error; err != nil {
			respondError(c, apierr.Server("Failed to count users"))
			return
		}

		var users []models.User
		if err := base.
			Scopes(query.OrderAndPage(params, "created_at", "email", "role", "status", "last_login_at")).
			Find(&users).Error; err != nil {
			respondError(c, apierr.Server("Failed to load users"))
			return
		}

		rows := make([]userRow, len(users))
		for i, u := range users {
			rows[i] = userRow{User: u}
			db.Model(&models.Process{}).Where("user_id = ?", u.ID).Count(&rows[i].ProcessCount)
			db.Model(&models.ActivityLog{}).Where("user_id = ?", u.ID).Count(&rows[i].ActivityCount)
		}

		c.JSON(http.StatusOK, gin.H{
			"data":       rows,
			"pagination": query.NewPagination(params.Page, params.Limit, total),
		})
	}
}

func InviteUser(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req InviteUserRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, apierr.Validation("Please enter a valid email address"))
			return
		}

		role := req.Role
		if role == "" {
			role = models.RoleUser
		}
		if !models.ValidRole(role) {
			respondError(c, apierr.Validation("Unknown role"))
			return
		}

		var existing models.User
		if err := db.Where("email = ?", req.Email).First(&existing).Error; err == nil {
			c.JSON(http.StatusConflict, gin.H{"error": "Email already registered"})
			return
		}

		// The placeholder password is random and unusable until the invite is
		// accepted; login is gated on status anyway.
		user := models.User{
			Email:       req.Email,
			Password:    uuid.New().String(),
			Role:        role,
			Status:      models.StatusInvited,
			InviteToken: uuid.New().String(),
		}
		if err := db.Create(&user).Error; err != nil {
			respondError(c, apierr.Server("Failed to create user"))
			return
		}

		admin, _ := currentUser(c, db)
		if admin != nil {
			recordActivity(db, admin.ID, admin.Email, nil, ActionUserInvited,
				gin.H{"invited_email": user.Email, "role": user.Role})
		}

		c.JSON(http.StatusCreated, gin.H{
			"user":         user,
			"invite_token": user.InviteToken,
		})
	}
}

func UpdateUserRole(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req UpdateRoleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, apierr.Validation(err.Error()))
			return
		}
		if !models.ValidRole(req.Role) {
			respondError(c, apierr.Validation("Unknown role"))
			return
		}

		var user models.User
		if err := db.First(&user, c.Param("id")).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}

		previous := user.Role
		user.Role = req.Role
		if err := db.Save(&user).Error; err != nil {
			respondError(c, apierr.Server("Failed to update role"))
			return
		}

		admin, _ := currentUser(c, db)
		if admin != nil {
			recordActivity(db, admin.ID, admin.Email, nil, ActionRoleUpdated,
				gin.H{"user_id": user.ID, "from": previous, "to": user.Role})
		}

		c.JSON(http.StatusOK, user)
	}
}

func UpdateUserStatus(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req UpdateStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, apierr.Validation(err.Error()))
			return
		}
		if !models.ValidUserStatus(req.Status) {
			respondError(c, apierr.Validation("Unknown status"))
			return
		}

		var user models.User
		if err := db.First(&user, c.Param("id")).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}

		user.Status = req.Status
		if err := db.Save(&user).Error; err != nil {
			respondError(c, apierr.Server("Failed to update status"))
			return
		}

		admin, _ := currentUser(c, db)
		if admin != nil {
			recordActivity(db, admin.ID, admin.Email, nil, ActionStatusUpdated,
				gin.H{"user_id": user.ID, "status": user.Status})
		}

		c.JSON(http.StatusOK, user)
	}
}

func DeleteUser(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var user models.User
		if err := db.First(&user, c.Param("id")).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}

		if user.ID == c.GetUint("userID") {
			respondError(c, apierr.Validation("You cannot delete your own account"))
			return
		}

		if err := db.Delete(&user).Error; err != nil {
			respondError(c, apierr.Server("Failed to delete user"))
			return
		}

		admin, _ := currentUser(c, db)
		if admin != nil {
			recordActivity(db, admin.ID, admin.Email, nil, ActionUserDeleted,
				gin.H{"user_id": user.ID, "email": user.Email})
		}

		c.Status(http.StatusNoContent)
	}
}

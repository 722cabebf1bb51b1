package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"scholarfinder-back/internal/auth"
	"scholarfinder-back/internal/models"
)

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type AcceptInviteRequest struct {
	Token    string `json:"token" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
}

type AuthResponse struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

func Login(db *gorm.DB, manager *auth.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		var user models.User
		if err := db.Where("email = ?", req.Email).First(&user).Error; err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}

		if user.Status == models.StatusBlocked {
			c.JSON(http.StatusForbidden, gin.H{"error": "Account is blocked"})
			return
		}
		if user.Status == models.StatusInvited {
			c.JSON(http.StatusForbidden, gin.H{"error": "Invite not accepted yet"})
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}

		now := time.Now()
		user.LastLoginAt = &now
		if err := db.Save(&user).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update login time"})
			return
		}

		token, err := manager.GenerateToken(user.ID, user.Role)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
			return
		}

		recordActivity(db, user.ID, user.Email, nil, ActionLogin, nil)

		c.SetCookie("auth_token", token, 86400, "/", "", false, true)
		c.JSON(http.StatusOK, AuthResponse{Token: token, User: user})
	}
}

// AcceptInvite redeems an invite token, sets the password, and activates the
// account.
func AcceptInvite(db *gorm.DB, manager *auth.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AcceptInviteRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		var user models.User
		if err := db.Where("invite_token = ? AND status = ?", req.Token, models.StatusInvited).
			First(&user).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Invite not found or already used"})
			return
		}

		hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
			return
		}

		user.Password = string(hashed)
		user.Name = req.Name
		user.Status = models.StatusActive
		user.InviteToken = ""
		if err := db.Save(&user).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to activate account"})
			return
		}

		token, err := manager.GenerateToken(user.ID, user.Role)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
			return
		}

		recordActivity(db, user.ID, user.Email, nil, ActionInviteAccept, nil)

		c.SetCookie("auth_token", token, 86400, "/", "", false, true)
		c.JSON(http.StatusOK, AuthResponse{Token: token, User: user})
	}
}

func GetProfile(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := currentUser(c, db)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

func Logout(c *gin.Context) {
	c.SetCookie("auth_token", "", -1, "/", "", false, true)
	c.Status(http.StatusOK)
}

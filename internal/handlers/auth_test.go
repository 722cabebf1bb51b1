package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"scholarfinder-back/internal/auth"
	"scholarfinder-back/internal/models"
)

func newAuthManager() *auth.Manager {
	return auth.NewManager("test-secret", time.Hour)
}

func TestLogin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)

	hashed, err := bcrypt.GenerateFromPassword([]byte("s3cret-pass"), bcrypt.MinCost)
	require.NoError(t, err)
	user := &models.User{
		Email:    "member@x.org",
		Password: string(hashed),
		Role:     models.RoleUser,
		Status:   models.StatusActive,
	}
	require.NoError(t, db.Create(user).Error)

	manager := newAuthManager()
	router := gin.New()
	router.POST("/login", Login(db, manager))

	t.Run("valid credentials issue a token and update last login", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/login",
			gin.H{"email": "member@x.org", "password": "s3cret-pass"})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "token")

		var reloaded models.User
		require.NoError(t, db.First(&reloaded, user.ID).Error)
		require.NotNil(t, reloaded.LastLoginAt)

		var loginLog models.ActivityLog
		require.NoError(t, db.Where("action = ?", ActionLogin).First(&loginLog).Error)
		assert.Equal(t, user.ID, loginLog.UserID)
	})

	t.Run("wrong password is unauthorized", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/login",
			gin.H{"email": "member@x.org", "password": "wrong"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("malformed email fails binding", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/login",
			gin.H{"email": "nope", "password": "x"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("blocked account is forbidden", func(t *testing.T) {
		require.NoError(t, db.Model(user).Update("status", models.StatusBlocked).Error)
		w := doJSON(t, router, http.MethodPost, "/login",
			gin.H{"email": "member@x.org", "password": "s3cret-pass"})
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestAcceptInvite(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)

	invited := &models.User{
		Email:       "invitee@x.org",
		Password:    "placeholder",
		Role:        models.RoleQC,
		Status:      models.StatusInvited,
		InviteToken: "tok-123",
	}
	require.NoError(t, db.Create(invited).Error)

	manager := newAuthManager()
	router := gin.New()
	router.POST("/accept-invite", AcceptInvite(db, manager))
	router.POST("/login", Login(db, manager))

	// Login before acceptance is refused.
	w := doJSON(t, router, http.MethodPost, "/login",
		gin.H{"email": "invitee@x.org", "password": "anything-8ch"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(t, router, http.MethodPost, "/accept-invite",
		gin.H{"token": "wrong", "name": "I", "password": "longenough"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, router, http.MethodPost, "/accept-invite",
		gin.H{"token": "tok-123", "name": "Invitee", "password": "longenough"})
	require.Equal(t, http.StatusOK, w.Code)

	var activated models.User
	require.NoError(t, db.First(&activated, invited.ID).Error)
	assert.Equal(t, models.StatusActive, activated.Status)
	assert.Empty(t, activated.InviteToken)

	// The token is single-use.
	w = doJSON(t, router, http.MethodPost, "/accept-invite",
		gin.H{"token": "tok-123", "name": "Again", "password": "longenough"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	// And the set password now logs in.
	w = doJSON(t, router, http.MethodPost, "/login",
		gin.H{"email": "invitee@x.org", "password": "longenough"})
	assert.Equal(t, http.StatusOK, w.Code)
}

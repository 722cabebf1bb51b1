package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"scholarfinder-back/internal/enrich"
	"scholarfinder-back/internal/models"
	"scholarfinder-back/internal/wizard"
)

func seedProcess(t *testing.T, db *gorm.DB, owner *models.User, step wizard.Step) *models.Process {
	t.Helper()
	process := &models.Process{
		UserID:      owner.ID,
		Title:       "Manuscript",
		CurrentStep: string(step),
		Status:      wizard.StatusFor(step),
		JobID:       "job-1",
	}
	require.NoError(t, db.Create(process).Error)
	return process
}

func newEnrichClient(t *testing.T, handler http.Handler) *enrich.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return enrich.NewClient(srv.URL, 5*time.Second, 0, zap.NewNop())
}

func TestEnhanceKeywordsEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	owner := seedAdmin(t, db)
	process := seedProcess(t, db, owner, wizard.StepKeywords)

	var upstreamCalls int
	client := newEnrichClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upstreamCalls++
		json.NewEncoder(w).Encode(enrich.Result{
			Message: "keywords enhanced",
			JobID:   process.JobID,
			Data:    json.RawMessage(`{"enhanced_keywords":["genomics","sequencing"]}`),
		})
	}))
	engine := wizard.NewEngine(db, client, zap.NewNop())

	router := gin.New()
	router.POST("/scholar/processes/:id/keyword-enhancement", asUser(owner), EnhanceKeywords(db, engine))

	body := gin.H{"keywords": []string{"genomics"}}
	w := doJSON(t, router, http.MethodPost, "/scholar/processes/1/keyword-enhancement", body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "enhanced_keywords")

	// Second request is served from the cached step data.
	w = doJSON(t, router, http.MethodPost, "/scholar/processes/1/keyword-enhancement", body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, upstreamCalls)
}

func TestEnhanceKeywordsRateLimited(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	owner := seedAdmin(t, db)
	seedProcess(t, db, owner, wizard.StepKeywords)

	client := newEnrichClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "60")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(gin.H{"type": "RATE_LIMIT_ERROR", "message": "slow down"})
	}))
	engine := wizard.NewEngine(db, client, zap.NewNop())

	router := gin.New()
	router.POST("/scholar/processes/:id/keyword-enhancement", asUser(owner), EnhanceKeywords(db, engine))

	w := doJSON(t, router, http.MethodPost, "/scholar/processes/1/keyword-enhancement",
		gin.H{"keywords": []string{"x"}})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))

	var resp struct {
		Type       string `json:"type"`
		Retryable  bool   `json:"retryable"`
		RetryAfter int64  `json:"retryAfter"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "EXTERNAL_API_ERROR", resp.Type)
	assert.True(t, resp.Retryable)
	assert.Equal(t, int64(60000), resp.RetryAfter)
}

func TestDatabaseSearchRequiresStrings(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	owner := seedAdmin(t, db)
	seedProcess(t, db, owner, wizard.StepSearch)

	client := newEnrichClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(enrich.Result{Message: "search started", JobID: "job-1"})
	}))
	engine := wizard.NewEngine(db, client, zap.NewNop())

	router := gin.New()
	router.POST("/scholar/processes/:id/database-search", asUser(owner), DatabaseSearch(db, engine, client))

	w := doJSON(t, router, http.MethodPost, "/scholar/processes/1/database-search",
		gin.H{"search_strings": gin.H{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, http.MethodPost, "/scholar/processes/1/database-search",
		gin.H{"search_strings": gin.H{"pubmed": "genomics AND review"}})
	require.Equal(t, http.StatusOK, w.Code)

	payload, found, err := engine.StepPayload(1, wizard.StepSearch)
	require.NoError(t, err)
	require.True(t, found)
	assert.NotNil(t, payload["search_strings"])
}

func TestAdvanceStepEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	owner := seedAdmin(t, db)
	process := seedProcess(t, db, owner, wizard.StepKeywords)

	engine := wizard.NewEngine(db, nil, zap.NewNop())

	router := gin.New()
	router.POST("/scholar/processes/:id/advance", asUser(owner), AdvanceStep(db, engine))
	router.POST("/scholar/processes/:id/back", asUser(owner), BackStep(db, engine))

	// Guard failure keeps the step.
	w := doJSON(t, router, http.MethodPost, "/scholar/processes/1/advance",
		gin.H{"selected_keywords": []string{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var current models.Process
	require.NoError(t, db.First(&current, process.ID).Error)
	assert.Equal(t, string(wizard.StepKeywords), current.CurrentStep)

	w = doJSON(t, router, http.MethodPost, "/scholar/processes/1/advance",
		gin.H{"selected_keywords": []string{"genomics"}})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, db.First(&current, process.ID).Error)
	assert.Equal(t, string(wizard.StepSearch), current.CurrentStep)

	// Back has no gate.
	w = doJSON(t, router, http.MethodPost, "/scholar/processes/1/back", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, db.First(&current, process.ID).Error)
	assert.Equal(t, string(wizard.StepKeywords), current.CurrentStep)
}

func TestResetStageEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	admin := seedAdmin(t, db)
	process := seedProcess(t, db, admin, wizard.StepValidation)

	engine := wizard.NewEngine(db, nil, zap.NewNop())
	require.NoError(t, engine.SaveStepData(process.ID, wizard.StepKeywords, wizard.Payload{"v": 1}))
	require.NoError(t, engine.SaveStepData(process.ID, wizard.StepSearch, wizard.Payload{"v": 2}))

	router := gin.New()
	router.POST("/admin/processes/:id/reset-stage", asUser(admin), ResetStage(db, engine, zap.NewNop()))

	w := doJSON(t, router, http.MethodPost, "/admin/processes/1/reset-stage",
		gin.H{"step": "teleport"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, http.MethodPost, "/admin/processes/1/reset-stage",
		gin.H{"step": "search"})
	require.Equal(t, http.StatusOK, w.Code)

	var current models.Process
	require.NoError(t, db.First(&current, process.ID).Error)
	assert.Equal(t, string(wizard.StepSearch), current.CurrentStep)

	_, found, err := engine.StepPayload(process.ID, wizard.StepSearch)
	require.NoError(t, err)
	assert.False(t, found)

	_, found, err = engine.StepPayload(process.ID, wizard.StepKeywords)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestProcessOwnershipEnforced(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	owner := seedAdmin(t, db)
	seedProcess(t, db, owner, wizard.StepKeywords)

	other := &models.User{Email: "other@x.org", Password: "x", Role: models.RoleUser, Status: models.StatusActive}
	require.NoError(t, db.Create(other).Error)

	engine := wizard.NewEngine(db, nil, zap.NewNop())

	router := gin.New()
	router.GET("/scholar/processes/:id/steps/:step", asUser(other), GetStepData(db, engine))

	w := doJSON(t, router, http.MethodGet, "/scholar/processes/1/steps/keywords", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

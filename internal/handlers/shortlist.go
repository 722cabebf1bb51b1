package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"scholarfinder-back/internal/apierr"
	"scholarfinder-back/internal/models"
	"scholarfinder-back/internal/shortlist"
	"scholarfinder-back/pkg/export"
)

// HistoryStore keeps the recent shortlist actions per process. It is
// display-only and in-memory; nothing replays it and a restart clears it.
type HistoryStore struct {
	mu        sync.Mutex
	byProcess map[uint][]shortlist.Action
}

func NewHistoryStore() *HistoryStore {
	return &HistoryStore{byProcess: map[uint][]shortlist.Action{}}
}

func (h *HistoryStore) Record(processID uint, actionType shortlist.ActionType, ids []uint) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.byProcess[processID] = shortlist.AppendHistory(h.byProcess[processID], shortlist.Action{
		Type:      actionType,
		IDs:       ids,
		Timestamp: time.Now().UTC(),
	})
}

func (h *HistoryStore) For(processID uint) []shortlist.Action {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]shortlist.Action(nil), h.byProcess[processID]...)
}

func loadShortlist(db *gorm.DB, processID uint) ([]models.Reviewer, error) {
	var list []models.Reviewer
	err := db.Where("process_id = ?", processID).Order("position ASC").Find(&list).Error
	return list, err
}

func saveShortlistOrder(db *gorm.DB, list []models.Reviewer) error {
	for _, r := range list {
		if err := db.Model(&models.Reviewer{}).Where("id = ?", r.ID).
			Update("position", r.Position).Error; err != nil {
			return err
		}
	}
	return nil
}

func GetShortlist(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		process, ok := ownedProcess(c, db)
		if !ok {
			return
		}
		list, err := loadShortlist(db, process.ID)
		if err != nil {
			respondError(c, apierr.Server("Failed to load shortlist"))
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": list})
	}
}

type AddReviewerRequest struct {
	Email              string `json:"email" binding:"required,email"`
	Name               string `json:"name"`
	Affiliation        string `json:"affiliation"`
	Country            string `json:"country"`
	PublicationCount   int    `json:"publication_count"`
	RecentPublications int    `json:"recent_publications"`
	CoAuthor           bool   `json:"co_author"`
	AffiliationMatch   bool   `json:"affiliation_match"`
	CountryMatch       bool   `json:"country_match"`
	ConditionsMet      int    `json:"conditions_met"`
}

func AddReviewer(db *gorm.DB, history *HistoryStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		process, ok := ownedProcess(c, db)
		if !ok {
			return
		}

		var req AddReviewerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, apierr.Validation("Please enter a valid email address"))
			return
		}

		var count int64
		db.Model(&models.Reviewer{}).Where("process_id = ?", process.ID).Count(&count)

		reviewer := models.Reviewer{
			ProcessID:          process.ID,
			Email:              req.Email,
			Name:               req.Name,
			Affiliation:        req.Affiliation,
			Country:            req.Country,
			PublicationCount:   req.PublicationCount,
			RecentPublications: req.RecentPublications,
			CoAuthor:           req.CoAuthor,
			AffiliationMatch:   req.AffiliationMatch,
			CountryMatch:       req.CountryMatch,
			ConditionsMet:      req.ConditionsMet,
			Position:           int(count),
		}
		if err := db.Create(&reviewer).Error; err != nil {
			respondError(c, apierr.Server("Failed to add reviewer"))
			return
		}

		history.Record(process.ID, shortlist.ActionAdd, []uint{reviewer.ID})
		c.JSON(http.StatusCreated, reviewer)
	}
}

func RemoveReviewer(db *gorm.DB, history *HistoryStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		process, ok := ownedProcess(c, db)
		if !ok {
			return
		}

		var reviewer models.Reviewer
		if err := db.Where("id = ? AND process_id = ?", c.Param("reviewerId"), process.ID).
			First(&reviewer).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Reviewer not found"})
			return
		}

		if err := db.Delete(&reviewer).Error; err != nil {
			respondError(c, apierr.Server("Failed to remove reviewer"))
			return
		}

		list, err := loadShortlist(db, process.ID)
		if err == nil {
			if err := saveShortlistOrder(db, shortlist.Renumber(list)); err != nil {
				respondError(c, apierr.Server("Failed to renumber shortlist"))
				return
			}
		}

		history.Record(process.ID, shortlist.ActionRemove, []uint{reviewer.ID})
		c.Status(http.StatusNoContent)
	}
}

type BulkRemoveRequest struct {
	IDs []uint `json:"ids" binding:"required,min=1"`
}

// BulkRemoveReviewers deletes exactly the listed reviewers and renumbers the
// rest.
func BulkRemoveReviewers(db *gorm.DB, history *HistoryStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		process, ok := ownedProcess(c, db)
		if !ok {
			return
		}

		var req BulkRemoveRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, apierr.Validation("Select at least one reviewer to remove"))
			return
		}

		if err := db.Where("process_id = ? AND id IN ?", process.ID, req.IDs).
			Delete(&models.Reviewer{}).Error; err != nil {
			respondError(c, apierr.Server("Failed to remove reviewers"))
			return
		}

		list, err := loadShortlist(db, process.ID)
		if err != nil {
			respondError(c, apierr.Server("Failed to load shortlist"))
			return
		}
		if err := saveShortlistOrder(db, shortlist.Renumber(list)); err != nil {
			respondError(c, apierr.Server("Failed to renumber shortlist"))
			return
		}

		history.Record(process.ID, shortlist.ActionBulkRemove, req.IDs)
		c.JSON(http.StatusOK, gin.H{"data": list})
	}
}

type ReorderRequest struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// ReorderShortlist is the drag/move-up/move-down operation: a pure splice over
// the ordered list, persisted as rewritten positions.
func ReorderShortlist(db *gorm.DB, history *HistoryStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		process, ok := ownedProcess(c, db)
		if !ok {
			return
		}

		var req ReorderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, apierr.Validation(err.Error()))
			return
		}

		list, err := loadShortlist(db, process.ID)
		if err != nil {
			respondError(c, apierr.Server("Failed to load shortlist"))
			return
		}

		reordered, err := shortlist.Reorder(list, req.From, req.To)
		if err != nil {
			respondError(c, apierr.Validation(fmt.Sprintf("Invalid reorder: %v", err)))
			return
		}

		if err := saveShortlistOrder(db, reordered); err != nil {
			respondError(c, apierr.Server("Failed to save order"))
			return
		}

		moved := []uint{}
		if req.From >= 0 && req.From < len(list) {
			moved = append(moved, list[req.From].ID)
		}
		history.Record(process.ID, shortlist.ActionReorder, moved)

		c.JSON(http.StatusOK, gin.H{"data": reordered})
	}
}

func ShortlistHistory(db *gorm.DB, history *HistoryStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		process, ok := ownedProcess(c, db)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": history.For(process.ID)})
	}
}

type ShortlistExportRequest struct {
	Format string `json:"format" binding:"required,oneof=csv json"`
}

// ExportShortlist serializes the ordered shortlist to CSV or JSON.
func ExportShortlist(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		process, ok := ownedProcess(c, db)
		if !ok {
			return
		}

		var req ShortlistExportRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, apierr.Validation("Format must be csv or json"))
			return
		}

		list, err := loadShortlist(db, process.ID)
		if err != nil {
			respondError(c, apierr.Server("Failed to load shortlist"))
			return
		}

		filename := export.Filename("shortlist", req.Format, time.Now())
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))

		var buf bytes.Buffer
		if req.Format == "csv" {
			columns := []string{"position", "email", "name", "affiliation", "country",
				"publication_count", "recent_publications", "conditions_met"}
			rows := make([][]string, len(list))
			for i, r := range list {
				rows[i] = []string{
					export.Cell(r.Position),
					r.Email,
					r.Name,
					r.Affiliation,
					r.Country,
					export.Cell(r.PublicationCount),
					export.Cell(r.RecentPublications),
					export.Cell(r.ConditionsMet),
				}
			}
			if err := export.WriteCSV(&buf, columns, rows); err != nil {
				respondError(c, apierr.Server("Failed to serialize shortlist"))
				return
			}
			c.Data(http.StatusOK, "text/csv", buf.Bytes())
			return
		}

		if err := export.WriteJSON(&buf, len(list), list); err != nil {
			respondError(c, apierr.Server("Failed to serialize shortlist"))
			return
		}
		c.Data(http.StatusOK, "application/json", buf.Bytes())
	}
}

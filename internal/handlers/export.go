package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"scholarfinder-back/internal/apierr"
	"scholarfinder-back/internal/models"
	"scholarfinder-back/internal/query"
	"scholarfinder-back/pkg/export"
)

type ExportRequest struct {
	Type     string            `json:"type" binding:"required,oneof=users processes logs"`
	Format   string            `json:"format" binding:"required,oneof=csv json"`
	Search   string            `json:"search"`
	Filters  map[string]string `json:"filters"`
	DateFrom *time.Time        `json:"dateFrom"`
	DateTo   *time.Time        `json:"dateTo"`
}

// Filterable adapters so loaded rows go through the same in-memory transform
// the list views specify.
type logRecord models.ActivityLog

func (r logRecord) FilterFields() map[string]string {
	processID := ""
	if r.ProcessID != nil {
		processID = fmt.Sprintf("%d", *r.ProcessID)
	}
	return map[string]string{
		"user_email": r.UserEmail,
		"action":     r.Action,
		"user_id":    fmt.Sprintf("%d", r.UserID),
		"process_id": processID,
	}
}

func (r logRecord) FilterTime() time.Time { return r.CreatedAt }

type userRecord models.User

func (r userRecord) FilterFields() map[string]string {
	return map[string]string{
		"email":  r.Email,
		"name":   r.Name,
		"role":   string(r.Role),
		"status": string(r.Status),
	}
}

func (r userRecord) FilterTime() time.Time { return r.CreatedAt }

type processRecord models.Process

func (r processRecord) FilterFields() map[string]string {
	return map[string]string{
		"title":        r.Title,
		"description":  r.Description,
		"status":       string(r.Status),
		"current_step": r.CurrentStep,
		"user_id":      fmt.Sprintf("%d", r.UserID),
	}
}

func (r processRecord) FilterTime() time.Time { return r.CreatedAt }

// Export serializes the requested record type to CSV or JSON and streams it
// as a download. Zero matching rows yields a header-only/empty document.
func Export(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ExportRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, apierr.Validation(err.Error()))
			return
		}

		params := query.Params{
			Search:   req.Search,
			Filters:  req.Filters,
			DateFrom: req.DateFrom,
			DateTo:   req.DateTo,
		}

		var (
			columns []string
			rows    [][]string
			records interface{}
			err     error
		)
		switch req.Type {
		case "logs":
			columns, rows, records, err = exportLogs(db, params)
		case "users":
			columns, rows, records, err = exportUsers(db, params)
		case "processes":
			columns, rows, records, err = exportProcesses(db, params)
		}
		if err != nil {
			respondError(c, apierr.Server("Failed to load export data"))
			return
		}

		user, _ := currentUser(c, db)
		if user != nil {
			recordActivity(db, user.ID, user.Email, nil, ActionExport,
				gin.H{"type": req.Type, "format": req.Format, "rows": len(rows)})
		}

		filename := export.Filename(req.Type, req.Format, time.Now())
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))

		var buf bytes.Buffer
		if req.Format == "csv" {
			if err := export.WriteCSV(&buf, columns, rows); err != nil {
				respondError(c, apierr.Server("Failed to serialize export"))
				return
			}
			c.Data(http.StatusOK, "text/csv", buf.Bytes())
			return
		}

		if err := export.WriteJSON(&buf, len(rows), records); err != nil {
			respondError(c, apierr.Server("Failed to serialize export"))
			return
		}
		c.Data(http.StatusOK, "application/json", buf.Bytes())
	}
}

func exportLogs(db *gorm.DB, params query.Params) ([]string, [][]string, interface{}, error) {
	var logs []models.ActivityLog
	if err := db.Order("created_at DESC").Find(&logs).Error; err != nil {
		return nil, nil, nil, err
	}

	wrapped := make([]logRecord, len(logs))
	for i, l := range logs {
		wrapped[i] = logRecord(l)
	}
	matched := query.Filter(wrapped, params)

	columns := []string{"id", "user_id", "user_email", "process_id", "action", "details", "timestamp"}
	rows := make([][]string, len(matched))
	out := make([]models.ActivityLog, len(matched))
	for i, l := range matched {
		out[i] = models.ActivityLog(l)
		processID := ""
		if l.ProcessID != nil {
			processID = fmt.Sprintf("%d", *l.ProcessID)
		}
		rows[i] = []string{
			export.Cell(uint64(l.ID)),
			export.Cell(uint64(l.UserID)),
			l.UserEmail,
			processID,
			l.Action,
			string(l.Details),
			export.Cell(l.CreatedAt),
		}
	}
	return columns, rows, out, nil
}

func exportUsers(db *gorm.DB, params query.Params) ([]string, [][]string, interface{}, error) {
	var users []models.User
	if err := db.Order("created_at DESC").Find(&users).Error; err != nil {
		return nil, nil, nil, err
	}

	wrapped := make([]userRecord, len(users))
	for i, u := range users {
		wrapped[i] = userRecord(u)
	}
	matched := query.Filter(wrapped, params)

	columns := []string{"id", "email", "name", "role", "status", "last_login_at", "created_at"}
	rows := make([][]string, len(matched))
	out := make([]models.User, len(matched))
	for i, u := range matched {
		out[i] = models.User(u)
		lastLogin := ""
		if u.LastLoginAt != nil {
			lastLogin = export.Cell(*u.LastLoginAt)
		}
		rows[i] = []string{
			export.Cell(uint64(u.ID)),
			u.Email,
			u.Name,
			string(u.Role),
			string(u.Status),
			lastLogin,
			export.Cell(u.CreatedAt),
		}
	}
	return columns, rows, out, nil
}

func exportProcesses(db *gorm.DB, params query.Params) ([]string, [][]string, interface{}, error) {
	var processes []models.Process
	if err := db.Order("created_at DESC").Find(&processes).Error; err != nil {
		return nil, nil, nil, err
	}

	wrapped := make([]processRecord, len(processes))
	for i, p := range processes {
		wrapped[i] = processRecord(p)
	}
	matched := query.Filter(wrapped, params)

	columns := []string{"id", "user_id", "title", "current_step", "status", "created_at"}
	rows := make([][]string, len(matched))
	out := make([]models.Process, len(matched))
	for i, p := range matched {
		out[i] = models.Process(p)
		rows[i] = []string{
			export.Cell(uint64(p.ID)),
			export.Cell(uint64(p.UserID)),
			p.Title,
			p.CurrentStep,
			string(p.Status),
			export.Cell(p.CreatedAt),
		}
	}
	return columns, rows, out, nil
}

package handlers

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"scholarfinder-back/internal/apierr"
	"scholarfinder-back/internal/enrich"
	"scholarfinder-back/internal/models"
	"scholarfinder-back/internal/storage"
	"scholarfinder-back/internal/wizard"
)

var manuscriptContentTypes = map[string]string{
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

// ownedProcess loads the process only if the requester owns it.
func ownedProcess(c *gin.Context, db *gorm.DB) (*models.Process, bool) {
	var process models.Process
	err := db.Where("id = ? AND user_id = ?", c.Param("id"), c.GetUint("userID")).
		First(&process).Error
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Process not found"})
		return nil, false
	}
	return &process, true
}

// UploadManuscript stores the manuscript and starts metadata extraction on the
// enrichment service. The extraction job id becomes the process's correlation
// key for every later wizard call.
func UploadManuscript(db *gorm.DB, engine *wizard.Engine, client *enrich.Client, minioClient *storage.MinIOClient, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		process, ok := ownedProcess(c, db)
		if !ok {
			return
		}

		fileHeader, err := c.FormFile("file")
		if err != nil {
			respondError(c, apierr.File("No manuscript file provided"))
			return
		}

		ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
		contentType, allowed := manuscriptContentTypes[ext]
		if !allowed {
			respondError(c, apierr.FileFormat("Only PDF and Word manuscripts are allowed"))
			return
		}

		file, err := fileHeader.Open()
		if err != nil {
			respondError(c, apierr.File("Failed to read uploaded file"))
			return
		}
		defer file.Close()

		if ext == ".pdf" {
			if err := validatePDF(file); err != nil {
				respondError(c, err)
				return
			}
			if _, err := file.Seek(0, io.SeekStart); err != nil {
				respondError(c, apierr.File("Failed to read uploaded file"))
				return
			}
		}

		objectName := storage.ManuscriptObjectName(process.UserID, fileHeader.Filename)
		if _, err := minioClient.UploadFromReader(c.Request.Context(), objectName, file, fileHeader.Size, contentType); err != nil {
			respondError(c, apierr.Server("Failed to upload to storage"))
			return
		}

		// Second open for the extraction call; multipart bodies are replayable
		// from the header.
		extractionFile, err := fileHeader.Open()
		if err != nil {
			respondError(c, apierr.File("Failed to read uploaded file"))
			return
		}
		defer extractionFile.Close()

		result, err := client.ExtractMetadata(c.Request.Context(), fileHeader.Filename, extractionFile)
		if err != nil {
			process.Status = models.ProcessError
			process.ErrorMessage = apierr.AsError(err).Message
			db.Save(process)
			respondError(c, err)
			return
		}

		process.JobID = result.JobID
		process.ManuscriptURL = objectName
		process.Status = models.ProcessUploading
		process.CurrentStep = string(wizard.StepUpload)
		if err := db.Save(process).Error; err != nil {
			respondError(c, apierr.Server("Failed to save process"))
			return
		}

		if err := engine.SaveStepData(process.ID, wizard.StepUpload, wizard.Payload{
			"job_id":      result.JobID,
			"object_name": objectName,
			"filename":    fileHeader.Filename,
		}); err != nil {
			respondError(c, apierr.Server("Failed to save step data"))
			return
		}

		logger.Info("manuscript uploaded",
			zap.Uint("process_id", process.ID),
			zap.String("job_id", result.JobID))

		user, _ := currentUser(c, db)
		if user != nil {
			recordActivity(db, user.ID, user.Email, &process.ID, ActionUpload,
				gin.H{"filename": fileHeader.Filename})
		}

		c.JSON(http.StatusOK, gin.H{
			"message": result.Message,
			"job_id":  result.JobID,
			"data":    result.Data,
		})
	}
}

// ManuscriptURL returns a short-lived presigned download link for the stored
// manuscript.
func ManuscriptURL(db *gorm.DB, minioClient *storage.MinIOClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		process, ok := ownedProcess(c, db)
		if !ok {
			return
		}
		if process.ManuscriptURL == "" {
			c.JSON(http.StatusNotFound, gin.H{"error": "No manuscript uploaded"})
			return
		}

		url, err := minioClient.GetPresignedURL(c.Request.Context(), process.ManuscriptURL)
		if err != nil {
			respondError(c, apierr.Server("Failed to generate download link"))
			return
		}
		c.JSON(http.StatusOK, gin.H{"url": url})
	}
}

func validatePDF(file io.Reader) error {
	header := make([]byte, 5)
	if _, err := io.ReadFull(file, header); err != nil {
		return apierr.File("Uploaded file is empty or unreadable")
	}
	if string(header) != "%PDF-" {
		return apierr.FileFormat("File does not look like a PDF")
	}
	return nil
}

type EnhanceKeywordsRequest struct {
	Keywords []string `json:"keywords"`
}

// EnhanceKeywords triggers (or returns the cached result of) keyword
// enhancement for the process's job.
func EnhanceKeywords(db *gorm.DB, engine *wizard.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		process, ok := ownedProcess(c, db)
		if !ok {
			return
		}

		var req EnhanceKeywordsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, apierr.Validation(err.Error()))
			return
		}

		data, err := engine.EnsureEnhancement(c.Request.Context(), process, req.Keywords)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message": "keywords enhanced",
			"job_id":  process.JobID,
			"data":    data,
		})
	}
}

type DatabaseSearchRequest struct {
	SearchStrings map[string]string `json:"search_strings" binding:"required"`
}

func DatabaseSearch(db *gorm.DB, engine *wizard.Engine, client *enrich.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		process, ok := ownedProcess(c, db)
		if !ok {
			return
		}

		var req DatabaseSearchRequest
		if err := c.ShouldBindJSON(&req); err != nil || len(req.SearchStrings) == 0 {
			respondError(c, apierr.Validation("At least one search string is required"))
			return
		}

		result, err := client.DatabaseSearch(c.Request.Context(), process.JobID, req.SearchStrings)
		if err != nil {
			respondError(c, err)
			return
		}

		if err := engine.SaveStepData(process.ID, wizard.StepSearch, wizard.Payload{
			"search_strings": req.SearchStrings,
			"results":        result.Data,
		}); err != nil {
			respondError(c, apierr.Server("Failed to save step data"))
			return
		}

		process.Status = models.ProcessSearching
		db.Save(process)

		c.JSON(http.StatusOK, gin.H{
			"message": result.Message,
			"job_id":  result.JobID,
			"data":    result.Data,
		})
	}
}

type ManualSearchRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func ManualSearch(db *gorm.DB, client *enrich.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		process, ok := ownedProcess(c, db)
		if !ok {
			return
		}

		var req ManualSearchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, apierr.Validation(err.Error()))
			return
		}
		if req.Name == "" && req.Email == "" {
			respondError(c, apierr.Validation("Provide an author name or email to search for"))
			return
		}

		result, err := client.ManualSearch(c.Request.Context(), process.JobID, req.Name, req.Email)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message": result.Message,
			"job_id":  result.JobID,
			"data":    result.Data,
		})
	}
}

type ValidateAuthorsRequest struct {
	Authors []string `json:"authors" binding:"required,min=1"`
}

func ValidateAuthors(db *gorm.DB, engine *wizard.Engine, client *enrich.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		process, ok := ownedProcess(c, db)
		if !ok {
			return
		}

		var req ValidateAuthorsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, apierr.Validation("At least one author is required"))
			return
		}

		result, err := client.ValidateAuthors(c.Request.Context(), process.JobID, req.Authors)
		if err != nil {
			respondError(c, err)
			return
		}

		if err := engine.SaveStepData(process.ID, wizard.StepValidation, wizard.Payload{
			"validated": true,
			"authors":   req.Authors,
			"results":   result.Data,
		}); err != nil {
			respondError(c, apierr.Server("Failed to save step data"))
			return
		}

		process.Status = models.ProcessValidating
		db.Save(process)

		c.JSON(http.StatusOK, gin.H{
			"message": result.Message,
			"job_id":  result.JobID,
			"data":    result.Data,
		})
	}
}

// Recommendations proxies the ranked reviewer list for a job the requester
// owns.
func Recommendations(db *gorm.DB, client *enrich.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		jobID := c.Param("jobId")

		var process models.Process
		err := db.Where("job_id = ? AND user_id = ?", jobID, c.GetUint("userID")).
			First(&process).Error
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
			return
		}

		result, err := client.Recommendations(c.Request.Context(), jobID)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message": result.Message,
			"job_id":  result.JobID,
			"data":    result.Data,
		})
	}
}

// GetStepData returns the persisted payload for one wizard step.
func GetStepData(db *gorm.DB, engine *wizard.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		process, ok := ownedProcess(c, db)
		if !ok {
			return
		}

		step := wizard.Step(c.Param("step"))
		if !wizard.Valid(step) {
			respondError(c, apierr.Validation("Unknown step: "+c.Param("step")))
			return
		}

		payload, found, err := engine.StepPayload(process.ID, step)
		if err != nil {
			respondError(c, apierr.Server("Failed to load step data"))
			return
		}
		if !found {
			c.JSON(http.StatusOK, gin.H{"step": step, "payload": gin.H{}})
			return
		}
		c.JSON(http.StatusOK, gin.H{"step": step, "payload": payload})
	}
}

// SaveStepData upserts the payload for one wizard step without advancing.
func SaveStepData(db *gorm.DB, engine *wizard.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		process, ok := ownedProcess(c, db)
		if !ok {
			return
		}

		step := wizard.Step(c.Param("step"))
		if !wizard.Valid(step) {
			respondError(c, apierr.Validation("Unknown step: "+c.Param("step")))
			return
		}

		var payload wizard.Payload
		if err := c.ShouldBindJSON(&payload); err != nil {
			respondError(c, apierr.Validation(err.Error()))
			return
		}

		if err := engine.SaveStepData(process.ID, step, payload); err != nil {
			respondError(c, apierr.Server("Failed to save step data"))
			return
		}
		c.JSON(http.StatusOK, gin.H{"step": step, "payload": payload})
	}
}

// AdvanceStep validates the current step's payload and moves the process
// forward; BackStep moves it backward with no gate.
func AdvanceStep(db *gorm.DB, engine *wizard.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		process, ok := ownedProcess(c, db)
		if !ok {
			return
		}

		var payload wizard.Payload
		if err := c.ShouldBindJSON(&payload); err != nil {
			respondError(c, apierr.Validation(err.Error()))
			return
		}

		if err := engine.Advance(process, payload); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, process)
	}
}

func BackStep(db *gorm.DB, engine *wizard.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		process, ok := ownedProcess(c, db)
		if !ok {
			return
		}

		if err := engine.Back(process); err != nil {
			respondError(c, apierr.Validation(fmt.Sprintf("%v", err)))
			return
		}
		c.JSON(http.StatusOK, process)
	}
}

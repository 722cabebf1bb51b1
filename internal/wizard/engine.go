package wizard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"scholarfinder-back/internal/enrich"
	"scholarfinder-back/internal/models"
)

// Enhancer is the slice of the enrichment client the engine needs.
type Enhancer interface {
	EnhanceKeywords(ctx context.Context, jobID string, keywords []string) (*enrich.Result, error)
}

// Engine persists step data and drives transitions. It owns the one
// auto-trigger rule in the flow: keyword enhancement runs once per
// (jobId, absence of cached result), deduped across concurrent requests.
type Engine struct {
	db       *gorm.DB
	enhancer Enhancer
	group    singleflight.Group
	logger   *zap.Logger
}

func NewEngine(db *gorm.DB, enhancer Enhancer, logger *zap.Logger) *Engine {
	return &Engine{db: db, enhancer: enhancer, logger: logger}
}

// StepPayload loads the persisted payload for (process, step).
func (e *Engine) StepPayload(processID uint, step Step) (Payload, bool, error) {
	var record models.StepData
	err := e.db.Where("process_id = ? AND step = ?", processID, step).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("wizard: load step data: %w", err)
	}

	payload := Payload{}
	if len(record.Payload) > 0 {
		if err := json.Unmarshal([]byte(record.Payload), &payload); err != nil {
			return nil, false, fmt.Errorf("wizard: decode step data: %w", err)
		}
	}
	return payload, true, nil
}

// SaveStepData upserts the payload for (process, step).
func (e *Engine) SaveStepData(processID uint, step Step, payload Payload) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("wizard: encode step data: %w", err)
	}
	record := models.StepData{
		ProcessID: processID,
		Step:      string(step),
		Payload:   datatypes.JSON(raw),
	}
	err = e.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "process_id"}, {Name: "step"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "updated_at"}),
	}).Create(&record).Error
	if err != nil {
		return fmt.Errorf("wizard: save step data: %w", err)
	}
	return nil
}

// Advance validates the current step's payload, persists it, and moves the
// process to the next step. The payload save is the auto-save the frontend
// waits on before navigating.
func (e *Engine) Advance(process *models.Process, payload Payload) error {
	step := Step(process.CurrentStep)
	if !Valid(step) {
		return fmt.Errorf("wizard: process %d is on unknown step %q", process.ID, process.CurrentStep)
	}
	if err := Guard(step, payload); err != nil {
		return err
	}
	next, ok := Next(step)
	if !ok {
		return fmt.Errorf("wizard: step %s is terminal", step)
	}
	if err := e.SaveStepData(process.ID, step, payload); err != nil {
		return err
	}

	process.CurrentStep = string(next)
	process.Status = StatusFor(next)
	if err := e.db.Save(process).Error; err != nil {
		return fmt.Errorf("wizard: save process: %w", err)
	}
	return nil
}

// Back moves one step backward without any validation gate.
func (e *Engine) Back(process *models.Process) error {
	prev, ok := Previous(Step(process.CurrentStep))
	if !ok {
		return fmt.Errorf("wizard: already at first step")
	}
	process.CurrentStep = string(prev)
	process.Status = StatusFor(prev)
	if err := e.db.Save(process).Error; err != nil {
		return fmt.Errorf("wizard: save process: %w", err)
	}
	return nil
}

// ResetToStep rewinds the process and discards step data at and after the
// target step, so re-running the flow starts clean from there.
func (e *Engine) ResetToStep(process *models.Process, step Step) error {
	target := Index(step)
	if target < 0 {
		return fmt.Errorf("wizard: unknown step %q", step)
	}

	stale := make([]string, 0, len(Order)-target)
	for _, s := range Order[target:] {
		stale = append(stale, string(s))
	}
	if err := e.db.Where("process_id = ? AND step IN ?", process.ID, stale).
		Delete(&models.StepData{}).Error; err != nil {
		return fmt.Errorf("wizard: delete step data: %w", err)
	}

	process.CurrentStep = string(step)
	process.Status = StatusFor(step)
	process.ErrorMessage = ""
	if err := e.db.Save(process).Error; err != nil {
		return fmt.Errorf("wizard: save process: %w", err)
	}
	return nil
}

// EnsureEnhancement returns the cached enhancement result for the process's
// job, calling the enrichment service only when no cached result exists.
// Concurrent callers for the same job share one in-flight call.
func (e *Engine) EnsureEnhancement(ctx context.Context, process *models.Process, keywords []string) (json.RawMessage, error) {
	if process.JobID == "" {
		return nil, fmt.Errorf("wizard: process %d has no job", process.ID)
	}

	if cached, ok, err := e.cachedEnhancement(process.ID); err != nil {
		return nil, err
	} else if ok {
		return cached, nil
	}

	raw, err, _ := e.group.Do(process.JobID, func() (interface{}, error) {
		// Re-check under the flight lock: a racer may have just persisted it.
		if cached, ok, err := e.cachedEnhancement(process.ID); err != nil {
			return nil, err
		} else if ok {
			return cached, nil
		}

		e.logger.Info("triggering keyword enhancement",
			zap.Uint("process_id", process.ID),
			zap.String("job_id", process.JobID))

		result, err := e.enhancer.EnhanceKeywords(ctx, process.JobID, keywords)
		if err != nil {
			return nil, err
		}

		payload, _, loadErr := e.StepPayload(process.ID, StepKeywords)
		if loadErr != nil {
			return nil, loadErr
		}
		if payload == nil {
			payload = Payload{}
		}
		payload["enhancement"] = json.RawMessage(result.Data)
		if err := e.SaveStepData(process.ID, StepKeywords, payload); err != nil {
			return nil, err
		}
		return json.RawMessage(result.Data), nil
	})
	if err != nil {
		return nil, err
	}
	return raw.(json.RawMessage), nil
}

func (e *Engine) cachedEnhancement(processID uint) (json.RawMessage, bool, error) {
	payload, ok, err := e.StepPayload(processID, StepKeywords)
	if err != nil || !ok {
		return nil, false, err
	}
	cached, ok := payload["enhancement"]
	if !ok {
		return nil, false, nil
	}
	raw, err := json.Marshal(cached)
	if err != nil {
		return nil, false, fmt.Errorf("wizard: re-encode cached enhancement: %w", err)
	}
	return raw, true, nil
}

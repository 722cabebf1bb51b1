// Package wizard makes the reviewer-finder flow an explicit state machine:
// a fixed step order, per-step validation guards on forward transitions, an
// ungated backward transition, and a declared once-per-job auto-trigger for
// keyword enhancement instead of an implicit fire-on-mount effect.
package wizard

import (
	"fmt"

	"scholarfinder-back/internal/apierr"
	"scholarfinder-back/internal/models"
)

type Step string

const (
	StepUpload          Step = "upload"
	StepMetadata        Step = "metadata"
	StepKeywords        Step = "keywords"
	StepSearch          Step = "search"
	StepManual          Step = "manual"
	StepValidation      Step = "validation"
	StepRecommendations Step = "recommendations"
	StepShortlist       Step = "shortlist"
	StepExport          Step = "export"
)

// Order is the canonical step sequence; StepExport is terminal.
var Order = []Step{
	StepUpload,
	StepMetadata,
	StepKeywords,
	StepSearch,
	StepManual,
	StepValidation,
	StepRecommendations,
	StepShortlist,
	StepExport,
}

func Valid(s Step) bool {
	return Index(s) >= 0
}

func Index(s Step) int {
	for i, step := range Order {
		if step == s {
			return i
		}
	}
	return -1
}

// Next returns the following step, or false at the terminal step.
func Next(s Step) (Step, bool) {
	i := Index(s)
	if i < 0 || i == len(Order)-1 {
		return "", false
	}
	return Order[i+1], true
}

// Previous returns the preceding step, or false at the first step.
// Going back has no validation gate.
func Previous(s Step) (Step, bool) {
	i := Index(s)
	if i <= 0 {
		return "", false
	}
	return Order[i-1], true
}

// StatusFor maps the current step to the process status the dashboard shows.
func StatusFor(s Step) models.ProcessStatus {
	switch s {
	case StepUpload:
		return models.ProcessUploading
	case StepMetadata, StepKeywords:
		return models.ProcessProcessing
	case StepSearch, StepManual:
		return models.ProcessSearching
	case StepValidation, StepRecommendations:
		return models.ProcessValidating
	case StepShortlist:
		return models.ProcessValidating
	case StepExport:
		return models.ProcessCompleted
	default:
		return models.ProcessCreated
	}
}

// Payload is the opaque per-step data bag the wizard persists.
type Payload map[string]interface{}

// Guard validates the payload a step must provide before advancing. Guards
// only inspect the fields they name, so once a guard passes it keeps passing
// regardless of unrelated edits.
func Guard(s Step, payload Payload) error {
	switch s {
	case StepUpload:
		if str, _ := payload["job_id"].(string); str == "" {
			return apierr.Validation("Upload a manuscript before continuing")
		}
	case StepMetadata:
		if str, _ := payload["title"].(string); str == "" {
			return apierr.Validation("Manuscript title is required")
		}
	case StepKeywords:
		if listLen(payload["selected_keywords"]) < 1 {
			return apierr.Validation("Select at least one keyword")
		}
	case StepSearch:
		if mapLen(payload["search_strings"]) < 1 {
			return apierr.Validation("Generate at least one search string")
		}
	case StepManual:
		// Optional step, nothing required.
	case StepValidation:
		if ok, _ := payload["validated"].(bool); !ok {
			return apierr.Validation("Run author validation before continuing")
		}
	case StepRecommendations:
		// Viewing recommendations carries no obligation.
	case StepShortlist:
		if listLen(payload["selected_reviewers"]) < 1 {
			return apierr.Validation("Shortlist at least one reviewer")
		}
	case StepExport:
		return fmt.Errorf("wizard: %s is terminal", s)
	default:
		return fmt.Errorf("wizard: unknown step %q", s)
	}
	return nil
}

func listLen(v interface{}) int {
	switch val := v.(type) {
	case []interface{}:
		return len(val)
	case []string:
		return len(val)
	case []float64:
		return len(val)
	default:
		return 0
	}
}

func mapLen(v interface{}) int {
	switch val := v.(type) {
	case map[string]interface{}:
		return len(val)
	case map[string]string:
		return len(val)
	default:
		return 0
	}
}

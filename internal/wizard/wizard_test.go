package wizard

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"scholarfinder-back/internal/models"
)

func TestOrderAndTransitions(t *testing.T) {
	assert.Len(t, Order, 9)
	assert.Equal(t, StepUpload, Order[0])
	assert.Equal(t, StepExport, Order[len(Order)-1])

	next, ok := Next(StepUpload)
	assert.True(t, ok)
	assert.Equal(t, StepMetadata, next)

	_, ok = Next(StepExport)
	assert.False(t, ok)

	prev, ok := Previous(StepKeywords)
	assert.True(t, ok)
	assert.Equal(t, StepMetadata, prev)

	_, ok = Previous(StepUpload)
	assert.False(t, ok)

	assert.False(t, Valid(Step("review")))
}

func TestGuard(t *testing.T) {
	tests := []struct {
		name    string
		step    Step
		payload Payload
		wantErr bool
	}{
		{"upload without job", StepUpload, Payload{}, true},
		{"upload with job", StepUpload, Payload{"job_id": "job-1"}, false},
		{"metadata without title", StepMetadata, Payload{"title": ""}, true},
		{"metadata with title", StepMetadata, Payload{"title": "CRISPR review"}, false},
		{"keywords empty", StepKeywords, Payload{"selected_keywords": []interface{}{}}, true},
		{"keywords one selected", StepKeywords, Payload{"selected_keywords": []interface{}{"genomics"}}, false},
		{"search without strings", StepSearch, Payload{}, true},
		{"search with strings", StepSearch, Payload{"search_strings": map[string]interface{}{"pubmed": "q"}}, false},
		{"manual is optional", StepManual, Payload{}, false},
		{"validation not run", StepValidation, Payload{}, true},
		{"validation done", StepValidation, Payload{"validated": true}, false},
		{"recommendations view only", StepRecommendations, Payload{}, false},
		{"shortlist empty", StepShortlist, Payload{}, true},
		{"shortlist one reviewer", StepShortlist, Payload{"selected_reviewers": []interface{}{float64(3)}}, false},
		{"export is terminal", StepExport, Payload{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Guard(tt.step, tt.payload)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// Once a guard passes, edits to unrelated fields cannot make it fail again.
func TestGuardMonotonic(t *testing.T) {
	payload := Payload{"selected_keywords": []interface{}{"genomics"}}
	assert.NoError(t, Guard(StepKeywords, payload))

	payload["notes"] = "changed my mind"
	payload["search_strings"] = map[string]interface{}{}
	payload["title"] = ""
	assert.NoError(t, Guard(StepKeywords, payload))
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, models.ProcessUploading, StatusFor(StepUpload))
	assert.Equal(t, models.ProcessSearching, StatusFor(StepSearch))
	assert.Equal(t, models.ProcessValidating, StatusFor(StepValidation))
	assert.Equal(t, models.ProcessCompleted, StatusFor(StepExport))
}

// Package shortlist implements the ordered reviewer shortlist: splice-based
// reordering, bulk removal, and the informational action history shown under
// "recent actions". History is display-only; nothing replays it.
package shortlist

import (
	"fmt"
	"time"

	"scholarfinder-back/internal/models"
)

type ActionType string

const (
	ActionAdd        ActionType = "add"
	ActionRemove     ActionType = "remove"
	ActionBulkRemove ActionType = "bulk_remove"
	ActionReorder    ActionType = "reorder"
)

type Action struct {
	Type      ActionType `json:"type"`
	IDs       []uint     `json:"ids"`
	Timestamp time.Time  `json:"timestamp"`
}

// History keeps the most recent actions, newest first, capped at maxHistory.
const maxHistory = 20

func AppendHistory(history []Action, action Action) []Action {
	out := append([]Action{action}, history...)
	if len(out) > maxHistory {
		out = out[:maxHistory]
	}
	return out
}

// Reorder removes the entry at from and reinserts it at to, then renumbers
// positions. It is a pure permutation: length and membership are unchanged.
func Reorder(list []models.Reviewer, from, to int) ([]models.Reviewer, error) {
	if from < 0 || from >= len(list) {
		return nil, fmt.Errorf("shortlist: from index %d out of range [0,%d)", from, len(list))
	}
	if to < 0 || to >= len(list) {
		return nil, fmt.Errorf("shortlist: to index %d out of range [0,%d)", to, len(list))
	}

	out := make([]models.Reviewer, len(list))
	copy(out, list)

	moved := out[from]
	out = append(out[:from], out[from+1:]...)
	out = append(out[:to], append([]models.Reviewer{moved}, out[to:]...)...)

	return Renumber(out), nil
}

// MoveUp and MoveDown are the single-step reorders behind the arrow buttons.
func MoveUp(list []models.Reviewer, index int) ([]models.Reviewer, error) {
	if index == 0 {
		return Renumber(list), nil
	}
	return Reorder(list, index, index-1)
}

func MoveDown(list []models.Reviewer, index int) ([]models.Reviewer, error) {
	if index == len(list)-1 {
		return Renumber(list), nil
	}
	return Reorder(list, index, index+1)
}

// Remove drops the entry with the given id. Unknown ids are a no-op.
func Remove(list []models.Reviewer, id uint) []models.Reviewer {
	out := make([]models.Reviewer, 0, len(list))
	for _, r := range list {
		if r.ID != id {
			out = append(out, r)
		}
	}
	return Renumber(out)
}

// BulkRemove drops exactly the entries whose ids are listed and no others.
func BulkRemove(list []models.Reviewer, ids []uint) []models.Reviewer {
	drop := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	out := make([]models.Reviewer, 0, len(list))
	for _, r := range list {
		if _, gone := drop[r.ID]; !gone {
			out = append(out, r)
		}
	}
	return Renumber(out)
}

// Renumber rewrites Position to match slice order, the only ordering invariant.
func Renumber(list []models.Reviewer) []models.Reviewer {
	for i := range list {
		list[i].Position = i
	}
	return list
}

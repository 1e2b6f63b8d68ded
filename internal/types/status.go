// Package types provides the domain records exchanged with the HireOps API.
package types

import (
	"fmt"
	"strings"
)

// Status is an application's pipeline stage.
type Status string

// Application statuses, in pipeline order.
const (
	StatusApplied            Status = "applied"
	StatusScreening          Status = "screening"
	StatusInterviewScheduled Status = "interview_scheduled"
	StatusOfferExtended      Status = "offer_extended"
	StatusHired              Status = "hired"
	StatusRejected           Status = "rejected"
)

// AllStatuses is the full ordered status enumeration.
var AllStatuses = []Status{
	StatusApplied,
	StatusScreening,
	StatusInterviewScheduled,
	StatusOfferExtended,
	StatusHired,
	StatusRejected,
}

// KanbanStatuses is the subset of stages shown on the active pipeline board.
// Hired and rejected applications are terminal and stay off the board.
var KanbanStatuses = []Status{
	StatusApplied,
	StatusScreening,
	StatusInterviewScheduled,
	StatusOfferExtended,
}

// statusAliases maps short board column names to canonical statuses.
var statusAliases = map[string]Status{
	"interview": StatusInterviewScheduled,
	"offer":     StatusOfferExtended,
}

// Valid reports whether s is one of the enumerated statuses.
func (s Status) Valid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Label returns a human-readable label, e.g. "Interview Scheduled".
func (s Status) Label() string {
	words := strings.Split(string(s), "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// Index returns the position of s within AllStatuses, or -1.
func (s Status) Index() int {
	for i, known := range AllStatuses {
		if s == known {
			return i
		}
	}
	return -1
}

// ParseStatus converts user input into a Status. It accepts canonical values
// and the short column aliases "interview" and "offer".
func ParseStatus(raw string) (Status, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.ReplaceAll(normalized, "-", "_")
	normalized = strings.ReplaceAll(normalized, " ", "_")

	if alias, ok := statusAliases[normalized]; ok {
		return alias, nil
	}
	s := Status(normalized)
	if !s.Valid() {
		return "", fmt.Errorf("unknown status %q (expected one of %s)", raw, joinStatuses(AllStatuses))
	}
	return s, nil
}

// ParseStatuses parses a list of status names, rejecting duplicates.
func ParseStatuses(raw []string) ([]Status, error) {
	out := make([]Status, 0, len(raw))
	seen := make(map[Status]bool, len(raw))
	for _, r := range raw {
		s, err := ParseStatus(r)
		if err != nil {
			return nil, err
		}
		if seen[s] {
			return nil, fmt.Errorf("duplicate status %q", s)
		}
		seen[s] = true
		out = append(out, s)
	}
	return out, nil
}

func joinStatuses(statuses []Status) string {
	parts := make([]string, len(statuses))
	for i, s := range statuses {
		parts[i] = string(s)
	}
	return strings.Join(parts, ", ")
}

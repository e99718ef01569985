package handler

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/dettyhq/detty/pkg/models"
)

// Snapshot is the bounded context slice handed to a handler for one
// sub-task: current preferences, recent turns, and recent memory.
type Snapshot struct {
	UserID       string
	Preferences  map[models.PrefKey]string
	RecentTurns  []models.Turn
	RecentMemory map[models.MemoryBucket][]models.MemoryEntry
}

// SnapshotFrom builds a snapshot from a profile with the given bounds.
func SnapshotFrom(p *models.UserProfile, historyTurns, memoryEntries int) Snapshot {
	return Snapshot{
		UserID:       p.UserID,
		Preferences:  p.Preferences,
		RecentTurns:  p.RecentTurns(historyTurns),
		RecentMemory: p.RecentMemory(memoryEntries),
	}
}

// Render formats the snapshot as prompt context. Empty sections are
// omitted.
func (s Snapshot) Render() string {
	var b strings.Builder

	if s.UserID != "" {
		fmt.Fprintf(&b, "Visitor: %s\n", s.UserID)
	}
	if len(s.Preferences) > 0 {
		b.WriteString("Preferences:\n")
		for _, key := range models.KnownPrefKeys {
			if val, ok := s.Preferences[key]; ok {
				fmt.Fprintf(&b, "  %s: %s\n", key, val)
			}
		}
	}
	if len(s.RecentMemory) > 0 {
		b.WriteString("Memory:\n")
		for _, bucket := range models.MemoryBuckets {
			entries := s.RecentMemory[bucket]
			for _, entry := range entries {
				fmt.Fprintf(&b, "  [%s] %s\n", bucket, string(entry.Data))
			}
		}
	}
	if len(s.RecentTurns) > 0 {
		b.WriteString("Recent conversation:\n")
		for _, turn := range s.RecentTurns {
			fmt.Fprintf(&b, "  %s: %s\n", turn.Role, turn.Content)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// safetyScoreRe matches score statements like "safety score: 7",
// "score of 7/10", or a bare "7/10".
var safetyScoreRe = regexp.MustCompile(`(?i)(?:safety\s+)?score(?:\s+of)?\s*(?:is\s*)?[:=]?\s*(10|[1-9])(?:\s*/\s*10)?`)

var bareScoreRe = regexp.MustCompile(`\b(10|[1-9])\s*/\s*10\b`)

// ExtractSafetyScore finds a 1-10 safety score stated in the text.
func ExtractSafetyScore(text string) (int, bool) {
	m := safetyScoreRe.FindStringSubmatch(text)
	if m == nil {
		m = bareScoreRe.FindStringSubmatch(text)
	}
	if m == nil {
		return 0, false
	}
	score, err := strconv.Atoi(m[1])
	if err != nil || score < 1 || score > 10 {
		return 0, false
	}
	return score, true
}

// hasRecommendation reports whether the text carries at least one
// actionable recommendation: an explicit "recommend", an avoidance
// instruction, or a bulleted action list.
func hasRecommendation(text string) bool {
	lower := strings.ToLower(text)
	if strings.Contains(lower, "recommend") || strings.Contains(lower, "avoid") ||
		strings.Contains(lower, "stick to") || strings.Contains(lower, "use registered") {
		return true
	}
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "- ") || strings.HasPrefix(trimmed, "* ") {
			return true
		}
	}
	return false
}

// datedSelectionRe matches an explicit date in a booking request.
var datedSelectionRe = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b|\b(?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?\s+\d{1,2}\b|\b\d{1,2}\s+(?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\b`)

// mentionsDatedSelection reports whether the sub-task itself names a
// dated choice the booking handler can act on.
func mentionsDatedSelection(subTask string) bool {
	return datedSelectionRe.MatchString(strings.ToLower(subTask))
}

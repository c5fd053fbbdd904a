package reasoning

import (
	"encoding/json"
	"time"

	"github.com/harrison/tetrad/internal/filelock"
	"github.com/harrison/tetrad/internal/models"
)

// snapshotVersion identifies the export format.
const snapshotVersion = "2.0"

// Snapshot is the portable serialization of a bank: the distilled report
// plus every raw pattern, so another instance can rebuild equivalent state.
type Snapshot struct {
	Version    string           `json:"version"`
	ExportedAt string           `json:"exported_at"`
	Knowledge  *KnowledgeReport `json:"knowledge"`
	Patterns   []models.Pattern `json:"patterns"`
}

// ImportReport counts how imported patterns were handled.
type ImportReport struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
	Merged   int `json:"merged"`
}

// Export writes a snapshot of the bank to path. The write is atomic and
// guarded by a sibling lock file so concurrent exporters cannot interleave.
func (b *Bank) Export(path string) error {
	knowledge, err := b.Distill()
	if err != nil {
		return err
	}
	patterns, err := b.AllPatterns()
	if err != nil {
		return err
	}

	snapshot := Snapshot{
		Version:    snapshotVersion,
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		Knowledge:  knowledge,
		Patterns:   patterns,
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return models.ReasoningError("marshal snapshot", err)
	}
	if err := filelock.LockAndWrite(path, data); err != nil {
		return models.ReasoningError("write snapshot", err)
	}

	b.log.Info("exported %d pattern(s) to %s", len(patterns), path)
	return nil
}

// Import merges a snapshot file into the bank. Unknown patterns are
// inserted; known ones are merged when the snapshot carries more evidence
// or fresher observations, and skipped otherwise.
func (b *Bank) Import(path string) (*ImportReport, error) {
	data, err := filelock.LockAndRead(path)
	if err != nil {
		return nil, models.ReasoningError("read snapshot", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, models.ReasoningError("parse snapshot", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	report := &ImportReport{}
	for _, incoming := range snapshot.Patterns {
		existing, err := b.findPatternLocked(incoming.CodeSignature, incoming.IssueCategory)
		if err != nil {
			return nil, err
		}

		if existing == nil {
			_, err := b.db.Exec(
				`INSERT INTO patterns
				(pattern_type, code_signature, language, issue_category, description, solution,
				 success_count, failure_count, confidence, last_seen, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				string(incoming.Type), incoming.CodeSignature, incoming.Language,
				incoming.IssueCategory, incoming.Description, incoming.Solution,
				incoming.SuccessCount, incoming.FailureCount, incoming.Confidence,
				incoming.LastSeen.UTC().Format(time.RFC3339),
				incoming.CreatedAt.UTC().Format(time.RFC3339),
			)
			if err != nil {
				return nil, models.ReasoningError("insert imported pattern", err)
			}
			report.Imported++
			continue
		}

		if incoming.TotalCount() > existing.TotalCount() || incoming.LastSeen.After(existing.LastSeen) {
			success := existing.SuccessCount + incoming.SuccessCount
			failure := existing.FailureCount + incoming.FailureCount
			confidence := 0.5
			if success+failure > 0 {
				confidence = float64(success) / float64(success+failure)
			}
			lastSeen := existing.LastSeen
			if incoming.LastSeen.After(lastSeen) {
				lastSeen = incoming.LastSeen
			}
			_, err := b.db.Exec(
				`UPDATE patterns SET success_count = ?, failure_count = ?, confidence = ?, last_seen = ?
				WHERE id = ?`,
				success, failure, confidence, lastSeen.UTC().Format(time.RFC3339), existing.ID,
			)
			if err != nil {
				return nil, models.ReasoningError("merge imported pattern", err)
			}
			report.Merged++
			continue
		}

		report.Skipped++
	}

	b.log.Info("imported snapshot %s: imported=%d merged=%d skipped=%d",
		path, report.Imported, report.Merged, report.Skipped)
	return report, nil
}

package compliance

import (
	"encoding/json"
	"fmt"
	"slices"

	"billexact/internal/billing"
)

// Batch is decoded compliance input. Positions maps each entry back to its
// index in the original input; Rejected holds elements that failed to decode.
type Batch struct {
	Entries   []billing.TimeEntry
	Positions []int
	Rejected  []SkippedEntry
}

// DecodeBatch reads a JSON array of time entries one element at a time, so
// a malformed element is rejected without losing the rest of the batch.
// Only a document that is not an array is an error.
func DecodeBatch(data []byte) (Batch, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return Batch{}, fmt.Errorf("decode entries: %w", err)
	}

	var batch Batch
	for i, elem := range raw {
		var entry billing.TimeEntry
		if err := json.Unmarshal(elem, &entry); err != nil {
			batch.Rejected = append(batch.Rejected, SkippedEntry{
				Index:   i,
				EntryID: rawEntryID(elem),
				Reason:  fmt.Sprintf("malformed entry: %v", err),
			})
			continue
		}
		batch.Entries = append(batch.Entries, entry)
		batch.Positions = append(batch.Positions, i)
	}
	return batch, nil
}

func rawEntryID(elem json.RawMessage) string {
	var head struct {
		ID any `json:"id"`
	}
	if err := json.Unmarshal(elem, &head); err != nil || head.ID == nil {
		return ""
	}
	if s, ok := head.ID.(string); ok {
		return s
	}
	return fmt.Sprint(head.ID)
}

// RunBatch runs the decoded entries and merges decode rejections into
// Report.Skipped. Skipped indices refer to the original input.
func (e *Engine) RunBatch(batch Batch) Report {
	report := e.Run(batch.Entries)
	for i := range report.Skipped {
		if idx := report.Skipped[i].Index; idx < len(batch.Positions) {
			report.Skipped[i].Index = batch.Positions[idx]
		}
	}
	if len(batch.Rejected) == 0 {
		return report
	}
	report.Skipped = append(slices.Clone(batch.Rejected), report.Skipped...)
	slices.SortStableFunc(report.Skipped, func(a, b SkippedEntry) int { return a.Index - b.Index })
	return report
}

package model

import "time"

// HistoryRecord is the immutable durable snapshot of a terminal job.
// Exactly one record exists per terminal DownloadJob, keyed by JobID.
type HistoryRecord struct {
	JobID          string
	URL            string
	Kind           JobKind
	State          JobState
	Title          string
	Thumbnail      string
	Channel        string
	Duration       string
	Tags           []string
	FormatSelector string
	CommandLine    string
	OutputDir      string
	OutputPath     string
	SubscriptionID string
	Error          string
	LogTail        []string
	CreatedAt      time.Time
	FinishedAt     time.Time
}

// HistoryRecordFromJob snapshots a terminal job into a durable record
func HistoryRecordFromJob(j *DownloadJob) *HistoryRecord {
	return &HistoryRecord{
		JobID:          j.ID,
		URL:            j.URL,
		Kind:           j.Kind,
		State:          j.State,
		Title:          j.Title,
		Tags:           append([]string(nil), j.Tags...),
		FormatSelector: j.FormatSelector,
		CommandLine:    j.CommandLine,
		OutputDir:      j.OutputDir,
		OutputPath:     j.OutputPath,
		SubscriptionID: j.SubscriptionID,
		Error:          j.LastError,
		LogTail:        append([]string(nil), j.LogTail...),
		CreatedAt:      j.CreatedAt,
		FinishedAt:     j.FinishedAt,
	}
}

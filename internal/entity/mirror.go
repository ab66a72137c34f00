package entity

import "time"

// Mirror describes one configured mirror. Immutable after startup.
type Mirror struct {
	Name     string // Unique identifier, also the serving subdirectory and admin path segment
	Source   string // URL of the remote archive
	Schedule string // Optional cron expression; empty means no automatic refresh
	Serve    string // Optional host:port for the content server; empty means not served
}

// SyncStatus is the outcome of the most recent sync attempt for a mirror.
type SyncStatus struct {
	Mirror     string    `json:"mirror"`
	SyncID     string    `json:"sync_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Bytes      int64     `json:"bytes"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
}

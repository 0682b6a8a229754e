package model

import "time"

type SyncStatus string

const (
	SyncIdle    SyncStatus = "idle"
	SyncSyncing SyncStatus = "syncing"
	SyncError   SyncStatus = "error"
)

type Space struct {
	ID                      string       `json:"id" bson:"_id" validate:"omitempty,mongodb"`
	Name                    string       `json:"name" bson:"name" validate:"required,min=2,max=100"`
	TimeZone                string       `json:"time_zone" bson:"time_zone" validate:"omitempty,timezone"`
	BufferMinutes           int          `json:"buffer_minutes" bson:"buffer_minutes" validate:"min=0,max=720"`
	CleaningDurationMinutes int          `json:"cleaning_duration_minutes" bson:"cleaning_duration_minutes" validate:"min=0,max=720"`
	Sync                    SyncSettings `json:"sync" bson:"sync"`
	CreatedAt               time.Time    `json:"created_at" bson:"created_at"`
}

// Padding is the time added on both sides of every booking in this space
// before overlap is evaluated.
func (s *Space) Padding() time.Duration {
	return time.Duration(s.BufferMinutes+s.CleaningDurationMinutes) * time.Minute
}

type SyncSettings struct {
	ImportURLs          []string  `json:"import_urls" bson:"import_urls" validate:"max=20,dive,required,feed_url"`
	AutoSyncEnabled     bool      `json:"auto_sync_enabled" bson:"auto_sync_enabled"`
	SyncIntervalMinutes int       `json:"sync_interval_minutes" bson:"sync_interval_minutes" validate:"min=0,max=10080"`
	State               SyncState `json:"state" bson:"state"`
}

// SyncState is written only by the import worker.
type SyncState struct {
	Status           SyncStatus     `json:"status" bson:"status"`
	LastSyncTime     *time.Time     `json:"last_sync_time,omitempty" bson:"last_sync_time,omitempty"`
	LastSyncAttempt  *time.Time     `json:"last_sync_attempt,omitempty" bson:"last_sync_attempt,omitempty"`
	LastSyncError    string         `json:"last_sync_error,omitempty" bson:"last_sync_error,omitempty"`
	IsSyncInProgress bool           `json:"is_sync_in_progress" bson:"is_sync_in_progress"`
	Sources          []SourceResult `json:"sources,omitempty" bson:"sources,omitempty"`
}

type SourceResult struct {
	URL            string     `json:"url" bson:"url"`
	LastSuccess    *time.Time `json:"last_success,omitempty" bson:"last_success,omitempty"`
	LastError      string     `json:"last_error,omitempty" bson:"last_error,omitempty"`
	LastEventCount int        `json:"last_event_count" bson:"last_event_count"`
	ETag           string     `json:"-" bson:"etag,omitempty"`
	LastModified   string     `json:"-" bson:"last_modified,omitempty"`
}

// SourceByURL returns the stored result for url, or nil.
func (s *SyncState) SourceByURL(url string) *SourceResult {
	for i := range s.Sources {
		if s.Sources[i].URL == url {
			return &s.Sources[i]
		}
	}
	return nil
}

type SyncSettingsUpdate struct {
	ImportURLs          []string `json:"import_urls" validate:"max=20,dive,required,feed_url"`
	AutoSyncEnabled     bool     `json:"auto_sync_enabled"`
	SyncIntervalMinutes int      `json:"sync_interval_minutes" validate:"min=0,max=10080"`
}

// SyncSettingsView is what owners see: the settings, their state and the
// export address other calendars can subscribe to.
type SyncSettingsView struct {
	SpaceID   string       `json:"space_id"`
	ExportURL string       `json:"export_url"`
	Settings  SyncSettings `json:"settings"`
}

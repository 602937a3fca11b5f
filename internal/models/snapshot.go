package models

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/starford/feedwise/internal/apperr"
)

// SnapshotVersion is the fixed schema tag of export files.
const SnapshotVersion = "1.0"

// SettingNotificationsEnabled is the settings key of the global reminder switch.
const SettingNotificationsEnabled = "notificationsEnabled"

// Snapshot is the export/import document.
type Snapshot struct {
	Profiles   []Profile `json:"profiles"`
	ExportDate time.Time `json:"exportDate"`
	Version    string    `json:"version"`
}

// DecodeSnapshot parses an import payload. The profiles field must be a
// JSON array; anything else is rejected before the store is touched.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	var envelope struct {
		Profiles json.RawMessage `json:"profiles"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return Snapshot{}, apperr.InvalidFormat("payload is not a JSON object", err)
	}
	raw := bytes.TrimSpace(envelope.Profiles)
	if len(raw) == 0 || raw[0] != '[' {
		return Snapshot{}, apperr.InvalidFormat("profiles must be an array", nil)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, apperr.InvalidFormat("decode profiles", err)
	}
	if snap.Profiles == nil {
		snap.Profiles = []Profile{}
	}
	return snap, nil
}

// ExportFilename is the suggested name of an export taken at t.
func ExportFilename(t time.Time) string {
	return "cat-food-reminder-" + t.Format("2006-01-02-150405") + ".json"
}

// FileMeta is a lightweight description of a JSON file in the inbox or
// backup directory.
type FileMeta struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

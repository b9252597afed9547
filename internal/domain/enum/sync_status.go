package enum

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// SyncStatus is the state of a sync queue entry and its offline ticket
// record: pending -> synced, pending -> failed -> pending -> ...
type SyncStatus string

const (
	SyncStatusPending SyncStatus = "pending"
	SyncStatusSynced  SyncStatus = "synced"
	SyncStatusFailed  SyncStatus = "failed"
)

func (s SyncStatus) String() string {
	return string(s)
}

// IsValid reports whether s is a known status
func (s SyncStatus) IsValid() bool {
	switch s {
	case SyncStatusPending, SyncStatusSynced, SyncStatusFailed:
		return true
	}
	return false
}

// ParseSyncStatus parses a status from a query parameter
func ParseSyncStatus(str string) (SyncStatus, error) {
	s := SyncStatus(str)
	if !s.IsValid() {
		return "", fmt.Errorf("unknown sync status %q", str)
	}
	return s, nil
}

func (s SyncStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

func (s *SyncStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*s = SyncStatus(str)
	return nil
}

func (s SyncStatus) Value() (driver.Value, error) {
	return string(s), nil
}

func (s *SyncStatus) Scan(value interface{}) error {
	if value == nil {
		*s = SyncStatusPending
		return nil
	}
	switch v := value.(type) {
	case string:
		*s = SyncStatus(v)
	case []byte:
		*s = SyncStatus(string(v))
	}
	return nil
}

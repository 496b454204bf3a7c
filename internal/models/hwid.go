package models

// HWIDLog records one hardware fingerprint seen for a user at login.
type HWIDLog struct {
	ID          int64
	UserID      int64
	MacHash     string
	UniqueHash  string
	DiskHash    string
	Occurrences int64
	Activated   bool
}

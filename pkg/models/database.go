package models

import "time"

// Move is one replay relocation recorded in the move history.
type Move struct {
	ID              uint      // Database ID (0 until recorded)
	RunID           string    // UUID shared by every move of one organize run
	Source          string    // Original replay path
	Destination     string    // Path the replay was moved to
	Opponent        string    // Sanitized opponent name (destination folder)
	RecordTimestamp int64     // Timestamp of the matched log row
	ReplayTimestamp int64     // Timestamp decoded from the replay name
	MovedAt         time.Time // When the rename happened
	Undone          bool      // Whether the move was reverted
}

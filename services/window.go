package services

import "time"

// EditWindow is how long after creation a sender may still modify a message.
const EditWindow = 15 * time.Minute

// CanEdit reports whether a message created at createdAt is still editable
// at now. The window is strict: exactly EditWindow old is already expired.
func CanEdit(createdAt, now time.Time) bool {
	return now.Sub(createdAt) < EditWindow
}

package model

// ChangeStatus is the outcome recorded for one capture attempt.
type ChangeStatus string

// Change statuses. The string values are written verbatim to the change log.
const (
	// StatusFirstEntry marks the first fingerprint seen for a URL in the run.
	StatusFirstEntry ChangeStatus = "First entry"

	// StatusHashChanged marks a URL recorded again with a different fingerprint.
	StatusHashChanged ChangeStatus = "Hash changed"

	// StatusHashUnchanged marks a URL recorded again with the same fingerprint.
	StatusHashUnchanged ChangeStatus = "Hash unchanged"

	// StatusError marks a failed capture or an unusable image.
	StatusError ChangeStatus = "Error during processing"
)

// ChangeLogHeader is the fixed column layout of the change log.
var ChangeLogHeader = []string{"URL", "Previous Hash", "Current Hash", "Status"}

// ChangeRecord is one row of the change log.
type ChangeRecord struct {
	URL      string       `json:"url"`
	Previous Fingerprint  `json:"previous_hash,omitempty"`
	Current  Fingerprint  `json:"current_hash,omitempty"`
	Status   ChangeStatus `json:"status"`
}

// Row returns the record as change-log columns.
func (r ChangeRecord) Row() []string {
	return []string{r.URL, string(r.Previous), string(r.Current), string(r.Status)}
}

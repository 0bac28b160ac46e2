package models

// DetailStatus represents the processing status of a detail URL in the visited store
type DetailStatus string

const (
	DetailStatusUnset    DetailStatus = ""          // Zero value = unset/unknown
	DetailStatusPending  DetailStatus = "pending"   // Dispatched to the pool, not finished
	DetailStatusSuccess  DetailStatus = "success"   // Extracted and indexed
	DetailStatusFailure  DetailStatus = "failure"   // Fetch or extraction failed
	DetailStatusNotFound DetailStatus = "not_found" // URL not in the store
	DetailStatusDBError  DetailStatus = "db_error"  // Store lookup failed
)

// String implements fmt.Stringer for logging
func (s DetailStatus) String() string {
	if s == "" {
		return "unset"
	}
	return string(s)
}

// IsValid returns true if the status is a known operational value
func (s DetailStatus) IsValid() bool {
	switch s {
	case DetailStatusPending, DetailStatusSuccess, DetailStatusFailure:
		return true
	}
	return false
}

// IsTerminal reports whether processing of the URL has finished, successfully or not
func (s DetailStatus) IsTerminal() bool {
	return s == DetailStatusSuccess || s == DetailStatusFailure
}

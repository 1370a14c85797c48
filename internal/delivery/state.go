package delivery

// State is the progress of one delivery.
type State int

const (
	NotStarted State = iota
	PermissionChecked
	PendingReviewCleared
	Reconciled
	Submitted
	PermissionDenied
	NotFound
	PartialFailure
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case PermissionChecked:
		return "permission_checked"
	case PendingReviewCleared:
		return "pending_review_cleared"
	case Reconciled:
		return "reconciled"
	case Submitted:
		return "submitted"
	case PermissionDenied:
		return "permission_denied"
	case NotFound:
		return "not_found"
	case PartialFailure:
		return "partial_failure"
	default:
		return "unknown"
	}
}

// MarshalText renders the state name in JSON reports.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Terminal reports whether s ends a delivery in failure.
func (s State) Terminal() bool {
	return s == PermissionDenied || s == NotFound || s == PartialFailure
}

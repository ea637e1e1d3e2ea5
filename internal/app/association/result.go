package association

// Detection result actions.
const (
	ActionTagDetected = "tag_detected"          // detection recorded, no session involved
	ActionSuccess     = "association_success"   // tag bound to the session's playlist
	ActionDuplicate   = "duplicate_association" // tag already bound elsewhere, no override
	ActionError       = "association_error"     // processing or sync failure
)

// DetectionResult reports what a processed tag detection did.
// Association-event consumers receive one of these for every
// detection, regardless of the outcome.
type DetectionResult struct {
	Action             string
	TagID              string
	SessionID          string
	PlaylistID         string
	ExistingPlaylistID string // set on duplicate: who holds the tag now
	NoActiveSessions   bool
	ErrorMessage       string
}

// Succeeded reports whether the detection produced a new association.
func (r DetectionResult) Succeeded() bool {
	return r.Action == ActionSuccess
}

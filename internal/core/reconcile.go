package core

// Reconciliation is the set of writes one detection run makes for an account.
// A store applies it atomically: every row or none.
type Reconciliation struct {
	AccountID string
	// Create holds patterns seen for the first time. Their ids are already assigned.
	Create []RecurringPattern
	// Update holds stored patterns with refreshed statistics. Reactivated
	// patterns appear here with IsActive set.
	Update []RecurringPattern
	// Deactivate holds ids of active patterns that were not proposed again.
	Deactivate []string
	Result     DetectionResult
}

// Empty reports whether applying r would change nothing.
func (r Reconciliation) Empty() bool {
	return len(r.Create) == 0 && len(r.Update) == 0 && len(r.Deactivate) == 0
}

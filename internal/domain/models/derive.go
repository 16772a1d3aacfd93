package models

// DeriveFolderStatus computes a folder's status from its purchases.
//
// Only an UNDER_REVIEW folder is re-derived: it becomes VALIDATED when every
// purchase is VALIDATED and REJECTED when every purchase is REJECTED. In every
// other case, including an empty folder, the current status is kept. The
// function is pure, so replaying it after a missed transition is safe.
func DeriveFolderStatus(current ValidationStatus, children []ValidationStatus) (ValidationStatus, bool) {
	if current != StatusUnderReview || len(children) == 0 {
		return current, false
	}

	allValidated, allRejected := true, true
	for _, s := range children {
		if s != StatusValidated {
			allValidated = false
		}
		if s != StatusRejected {
			allRejected = false
		}
	}

	switch {
	case allValidated:
		return StatusValidated, true
	case allRejected:
		return StatusRejected, true
	default:
		return current, false
	}
}

package models

import "testing"

func TestDeriveFolderStatus(t *testing.T) {
	tests := []struct {
		name        string
		current     ValidationStatus
		children    []ValidationStatus
		want        ValidationStatus
		wantChanged bool
	}{
		{"all validated", StatusUnderReview, []ValidationStatus{StatusValidated, StatusValidated}, StatusValidated, true},
		{"all rejected", StatusUnderReview, []ValidationStatus{StatusRejected, StatusRejected}, StatusRejected, true},
		{"single validated", StatusUnderReview, []ValidationStatus{StatusValidated}, StatusValidated, true},
		{"one pending", StatusUnderReview, []ValidationStatus{StatusValidated, StatusUnderReview}, StatusUnderReview, false},
		{"mixed outcome", StatusUnderReview, []ValidationStatus{StatusValidated, StatusRejected}, StatusUnderReview, false},
		{"no purchases", StatusUnderReview, nil, StatusUnderReview, false},
		{"draft folder untouched", StatusDraft, []ValidationStatus{StatusValidated}, StatusDraft, false},
		{"validated folder untouched", StatusValidated, []ValidationStatus{StatusRejected}, StatusValidated, false},
		{"rejected folder untouched", StatusRejected, []ValidationStatus{StatusValidated}, StatusRejected, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed := DeriveFolderStatus(tt.current, tt.children)
			if got != tt.want || changed != tt.wantChanged {
				t.Errorf("DeriveFolderStatus(%s, %v) = (%s, %v), want (%s, %v)",
					tt.current, tt.children, got, changed, tt.want, tt.wantChanged)
			}
		})
	}
}

func TestDeriveFolderStatusIsIdempotent(t *testing.T) {
	children := []ValidationStatus{StatusValidated, StatusValidated}
	first, _ := DeriveFolderStatus(StatusUnderReview, children)
	second, changed := DeriveFolderStatus(first, children)
	if second != first || changed {
		t.Errorf("second derivation = (%s, %v), want (%s, false)", second, changed, first)
	}
}

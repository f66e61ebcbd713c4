package state

import "testing"

func TestIsTransitionAllowed(t *testing.T) {
	testCases := []struct {
		name     string
		from     State
		to       State
		expected bool
	}{
		{name: "idle to upload title", from: StateIdle, to: StateUploadTitle, expected: true},
		{name: "idle to awaiting search", from: StateIdle, to: StateAwaitingSearch, expected: true},
		{name: "idle to edit field", from: StateIdle, to: StateEditField, expected: true},
		{name: "title to description", from: StateUploadTitle, to: StateUploadDescription, expected: true},
		{name: "description to price", from: StateUploadDescription, to: StateUploadPrice, expected: true},
		{name: "price to copies", from: StateUploadPrice, to: StateUploadCopies, expected: true},
		{name: "copies to tags", from: StateUploadCopies, to: StateUploadTags, expected: true},
		{name: "tags to file", from: StateUploadTags, to: StateUploadFile, expected: true},
		{name: "file to previews", from: StateUploadFile, to: StateUploadPreviews, expected: true},
		{name: "previews to confirm", from: StateUploadPreviews, to: StateUploadConfirm, expected: true},
		{name: "idle to upload confirm invalid", from: StateIdle, to: StateUploadConfirm, expected: false},
		{name: "skipping price invalid", from: StateUploadDescription, to: StateUploadCopies, expected: false},
		{name: "backwards invalid", from: StateUploadPrice, to: StateUploadTitle, expected: false},
		{name: "edit field to upload invalid", from: StateEditField, to: StateUploadTitle, expected: false},
		{name: "unknown state invalid", from: State("unknown"), to: StateUploadTitle, expected: false},
		{name: "any state to idle emergency", from: State("whatever"), to: StateIdle, expected: true},
		{name: "any state to error emergency", from: StateUploadFile, to: StateError, expected: true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if actual := IsTransitionAllowed(tc.from, tc.to); actual != tc.expected {
				t.Errorf("IsTransitionAllowed(%s -> %s) = %t, expected %t", tc.from, tc.to, actual, tc.expected)
			}
		})
	}
}

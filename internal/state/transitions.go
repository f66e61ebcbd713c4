package state

// validTransitions contains the permitted non-emergency transitions in the FSM.
var validTransitions = map[State][]State{
	StateIdle: {
		StateAwaitingSearch,
		StateAwaitingNickname,
		StateAwaitingWalletURL,
		StateUploadTitle,
		StateEditField,
		StateEditFile,
		StateEditPreviews,
	},
	StateUploadTitle:       {StateUploadDescription},
	StateUploadDescription: {StateUploadPrice},
	StateUploadPrice:       {StateUploadCopies},
	StateUploadCopies:      {StateUploadTags},
	StateUploadTags:        {StateUploadFile},
	StateUploadFile:        {StateUploadPreviews},
	StateUploadPreviews:    {StateUploadConfirm},
}

// IsTransitionAllowed reports whether moving from one state to another is valid.
// Returning to idle and failing into error are always allowed.
func IsTransitionAllowed(from, to State) bool {
	if to == StateError || to == StateIdle {
		return true
	}

	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}

	for _, state := range allowed {
		if state == to {
			return true
		}
	}

	return false
}

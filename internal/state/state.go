package state

import "time"

// State represents a conversation state: which kind of free-text input the bot expects next.
type State string

const (
	// StateIdle indicates that the bot is waiting for the next command.
	StateIdle State = "idle"
	// StateAwaitingSearch indicates that the next message is a title search query.
	StateAwaitingSearch State = "awaiting_search"
	// StateAwaitingNickname indicates that the next message is the new public nickname.
	StateAwaitingNickname State = "awaiting_nickname"
	// StateAwaitingWalletURL indicates that the next message is a wallet bridge URL.
	StateAwaitingWalletURL State = "awaiting_wallet_url"

	StateUploadTitle       State = "upload_title"
	StateUploadDescription State = "upload_description"
	StateUploadPrice       State = "upload_price"
	StateUploadCopies      State = "upload_copies"
	// StateUploadTags waits for the tag keyboard to be confirmed.
	StateUploadTags State = "upload_tags"
	// StateUploadFile waits for the main file as a document.
	StateUploadFile State = "upload_file"
	// StateUploadPreviews collects up to five preview images.
	StateUploadPreviews State = "upload_previews"
	StateUploadConfirm  State = "upload_confirm"

	// StateEditField waits for a new value of the field stored under ContextField.
	StateEditField State = "edit_field"
	// StateEditFile waits for a replacement main file.
	StateEditFile State = "edit_file"
	// StateEditPreviews collects replacement preview images.
	StateEditPreviews State = "edit_previews"

	// StateError indicates that the conversation failed and requires recovery.
	StateError State = "error"
)

// Context keys stored alongside a state.
const (
	ContextListingID = "listing_id"
	ContextField     = "field"
	ContextMessageID = "message_id"
)

// All lists every known state, in declaration order.
func All() []State {
	return []State{
		StateIdle,
		StateAwaitingSearch,
		StateAwaitingNickname,
		StateAwaitingWalletURL,
		StateUploadTitle,
		StateUploadDescription,
		StateUploadPrice,
		StateUploadCopies,
		StateUploadTags,
		StateUploadFile,
		StateUploadPreviews,
		StateUploadConfirm,
		StateEditField,
		StateEditFile,
		StateEditPreviews,
		StateError,
	}
}

// UserState captures the current conversation state for a Telegram user.
type UserState struct {
	UserID       int64             `json:"user_id"`
	CurrentState State             `json:"current_state"`
	Context      map[string]string `json:"context,omitempty"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// Value returns a context value or "" when absent.
func (s *UserState) Value(key string) string {
	if s == nil || s.Context == nil {
		return ""
	}
	return s.Context[key]
}

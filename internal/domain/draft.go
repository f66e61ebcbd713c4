package domain

import "time"

// DraftMode tells whether a draft creates a listing or edits one.
type DraftMode string

const (
	DraftCreate DraftMode = "create"
	DraftEdit   DraftMode = "edit"
)

// DraftFile is a file the user sent to the bot. Only the Telegram file id is
// kept; the bytes are fetched when the draft is submitted.
type DraftFile struct {
	FileID      string `json:"file_id"`
	Name        string `json:"name"`
	ContentType string `json:"content_type,omitempty"`
	Size        int64  `json:"size,omitempty"`
}

// Draft holds the fields collected by the upload and edit conversations.
type Draft struct {
	Mode        DraftMode   `json:"mode"`
	PostID      string      `json:"post_id,omitempty"`
	Title       string      `json:"title,omitempty"`
	Description string      `json:"description,omitempty"`
	Price       string      `json:"price,omitempty"`
	Copies      int         `json:"copies,omitempty"`
	Tags        []Tag       `json:"tags,omitempty"`
	File        *DraftFile  `json:"file,omitempty"`
	Previews    []DraftFile `json:"previews,omitempty"`
	EditField   string      `json:"edit_field,omitempty"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

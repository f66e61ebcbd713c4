package listings

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// ID identifies a post. The service emits numeric ids; older endpoints emit strings.
type ID string

// UnmarshalJSON accepts both `42` and `"42"`.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("post id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// MarshalJSON emits numeric ids as numbers.
func (id ID) MarshalJSON() ([]byte, error) {
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id ID) String() string { return string(id) }

// Status is the visibility of a listing.
type Status string

const (
	StatusActive      Status = "ACTIVE"
	StatusDisabled    Status = "DISABLED"
	StatusUserDeleted Status = "USER_DELETED"
)

// Post is a listing as returned by the listing service. Buyers is only
// populated on authenticated reads.
type Post struct {
	ID               ID              `json:"id"`
	Title            string          `json:"title"`
	Description      string          `json:"description"`
	PriceUSD         decimal.Decimal `json:"priceUSD"`
	Tags             []string        `json:"tags"`
	Copies           int             `json:"copies"`
	SellerID         string          `json:"sellerId"`
	Buyers           []string        `json:"buyers,omitempty"`
	Status           Status          `json:"status,omitempty"`
	PreviewImages    []string        `json:"previewImages"`
	BlobName         string          `json:"azBlobName,omitempty"`
	FileName         string          `json:"fileName,omitempty"`
	FileVersion      int             `json:"fileVersion,omitempty"`
	ContentType      string          `json:"contentType,omitempty"`
	UploadTime       string          `json:"uploadTime,omitempty"`
	LastTimeModified string          `json:"lastTimeModified,omitempty"`
}

// HasBuyer reports whether userID is in the buyer list.
func (p *Post) HasBuyer(userID string) bool {
	if p == nil || userID == "" {
		return false
	}
	for _, b := range p.Buyers {
		if b == userID {
			return true
		}
	}
	return false
}

// Category is the first tag, or OTHER.
func (p *Post) Category() string {
	if len(p.Tags) == 0 {
		return "OTHER"
	}
	return p.Tags[0]
}

// RatingSummary aggregates buyer ratings.
type RatingSummary struct {
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

// PublicPost is the unauthenticated product view.
type PublicPost struct {
	Post          Post           `json:"post"`
	RatingSummary *RatingSummary `json:"ratingSummary"`
}

// BlobMetadata describes the main file of a listing.
type BlobMetadata struct {
	Name          string `json:"name"`
	ContentType   string `json:"contentType"`
	SizeBytes     int64  `json:"sizeBytes"`
	SizeFormatted string `json:"sizeFormatted,omitempty"`
	CreatedAt     string `json:"createdAt,omitempty"`
	LastModified  string `json:"lastModified,omitempty"`
}

// Size returns the server-formatted size, falling back to humanized bytes.
func (m *BlobMetadata) Size() string {
	if m == nil {
		return ""
	}
	if m.SizeFormatted != "" {
		return m.SizeFormatted
	}
	if m.SizeBytes <= 0 {
		return "0 B"
	}
	return humanize.Bytes(uint64(m.SizeBytes))
}

// Fields is the editable metadata of a listing.
type Fields struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Tags        []string        `json:"tags"`
	PriceUSD    decimal.Decimal `json:"priceUSD"`
	Copies      int             `json:"copies"`
}

// File is one uploaded part of a multipart request.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

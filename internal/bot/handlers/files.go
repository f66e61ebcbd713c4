package handlers

import (
	"context"
	"fmt"
	"io"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/oasis-bot/internal/domain"
	"github.com/Proton-105/oasis-bot/internal/listings"
)

// MaxFileSize is the largest file the Bot API lets a bot download.
const MaxFileSize = 20 << 20

// Files fetches the bytes of a file a user sent.
type Files interface {
	Fetch(ctx context.Context, f domain.DraftFile) (listings.File, error)
}

type fileSource interface {
	File(file *telebot.File) (io.ReadCloser, error)
}

// TelegramFiles downloads files through the Bot API.
type TelegramFiles struct {
	src fileSource
}

// NewTelegramFiles wraps a bot for file downloads.
func NewTelegramFiles(src fileSource) *TelegramFiles {
	return &TelegramFiles{src: src}
}

// Fetch reads f completely. Files above MaxFileSize are refused.
func (t *TelegramFiles) Fetch(ctx context.Context, f domain.DraftFile) (listings.File, error) {
	if f.Size > MaxFileSize {
		return listings.File{}, fmt.Errorf("file %s is %d bytes, limit is %d", f.Name, f.Size, MaxFileSize)
	}
	if err := ctx.Err(); err != nil {
		return listings.File{}, err
	}

	rc, err := t.src.File(&telebot.File{FileID: f.FileID})
	if err != nil {
		return listings.File{}, fmt.Errorf("download %s: %w", f.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, MaxFileSize+1))
	if err != nil {
		return listings.File{}, fmt.Errorf("read %s: %w", f.Name, err)
	}
	if len(data) > MaxFileSize {
		return listings.File{}, fmt.Errorf("file %s exceeds %d bytes", f.Name, MaxFileSize)
	}

	return listings.File{Name: f.Name, ContentType: f.ContentType, Data: data}, nil
}

func documentFile(doc *telebot.Document) domain.DraftFile {
	name := doc.FileName
	if name == "" {
		name = doc.UniqueID
	}
	return domain.DraftFile{FileID: doc.FileID, Name: name, ContentType: doc.MIME, Size: doc.FileSize}
}

func photoFile(photo *telebot.Photo) domain.DraftFile {
	return domain.DraftFile{
		FileID:      photo.FileID,
		Name:        photo.UniqueID + ".jpg",
		ContentType: "image/jpeg",
		Size:        photo.FileSize,
	}
}

package model

import (
	"encoding/json"
	"time"

	"golang.org/x/text/cases"
)

// JSONFile is a named JSON document owned by one user.
//
// FileName is unique per owner, compared case-insensitively. Content holds
// the document text exactly as it was submitted; it is validated as JSON on
// write and never reformatted. Views only ever grows.
type JSONFile struct {
	ID        string    `json:"id"`
	UserID    string    `json:"-"`
	FileName  string    `json:"fileName"`
	Content   string    `json:"-"`
	Views     int64     `json:"views"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// FoldName returns the key two file names are compared by when checking
// for a case-variant duplicate: "Config", "CONFIG" and "config" share one,
// as do "Ä.json" and "ä.json". Stores index this value rather than relying
// on their own collation.
func FoldName(name string) string {
	// A Caser is stateful, so one is made per call.
	return cases.Fold().String(name)
}

// FileSummary is the list-view projection: everything but the content.
type FileSummary struct {
	ID        string    `json:"id"`
	FileName  string    `json:"fileName"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Views     int64     `json:"views"`
}

// FileDetail is the authenticated single-file view. Content is embedded as
// raw JSON so the client receives the parsed document, not a string.
type FileDetail struct {
	ID        string          `json:"id"`
	FileName  string          `json:"fileName"`
	Content   json.RawMessage `json:"content"`
	Views     int64           `json:"views"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// SavedFile is returned by an upsert.
type SavedFile struct {
	ID        string    `json:"id"`
	FileName  string    `json:"fileName"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PublicFile is one entry of a key-based listing.
type PublicFile struct {
	FileName  string    `json:"fileName"`
	URL       string    `json:"url"`
	Views     int64     `json:"views"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PublicListing is the response of the key-based listing endpoint.
type PublicListing struct {
	APIKey    string       `json:"apiKey"`
	FileCount int          `json:"fileCount"`
	Files     []PublicFile `json:"files"`
}

func (f *JSONFile) Summary() FileSummary {
	return FileSummary{
		ID:        f.ID,
		FileName:  f.FileName,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
		Views:     f.Views,
	}
}

func (f *JSONFile) Detail() FileDetail {
	return FileDetail{
		ID:        f.ID,
		FileName:  f.FileName,
		Content:   json.RawMessage(f.Content),
		Views:     f.Views,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
}

func (f *JSONFile) Saved() SavedFile {
	return SavedFile{
		ID:        f.ID,
		FileName:  f.FileName,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
}

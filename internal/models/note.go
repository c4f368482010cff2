// Package models defines the domain types shared across ghostwriter packages.
package models

import "time"

// NoteMetadata is a lightweight representation returned by vault list operations.
type NoteMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NoteRef is what cross-note links need to know about their target.
type NoteRef struct {
	Path  string `json:"path"`
	Slug  string `json:"slug"`
	Title string `json:"title"`
}

// AssetKind selects the upload sub-resource and the content path segment.
type AssetKind string

const (
	AssetImage AssetKind = "images"
	AssetMedia AssetKind = "media"
	AssetFile  AssetKind = "files"
)

// Asset is a vault file referenced from a note and published under /content.
type Asset struct {
	// Source is the vault-relative path of the file to upload.
	Source string
	// Name is the published filename, already prefixed and normalised.
	Name string
	Kind AssetKind
	// URL is where the asset will be served once uploaded.
	URL string
}

// Publication records one successful publish of a note.
type Publication struct {
	Path     string `json:"path"`
	Slug     string `json:"slug"`
	RemoteID string `json:"remote_id"`
	Kind     string `json:"kind"`
	Status   string `json:"status"`
	URL      string `json:"url,omitempty"`
	Created  bool   `json:"created"`
	// Checksum is the digest of the note source that was published.
	Checksum    string    `json:"checksum,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}

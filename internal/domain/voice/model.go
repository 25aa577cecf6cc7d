// Package voice defines stored voice asset records.
package voice

import "time"

// Asset lifecycle status values. Deleted assets stay in storage but are
// excluded from listings.
const (
	StatusActive  int32 = 0
	StatusDeleted int32 = -1
)

// MetadataItem is one free-form key/value attached to an asset.
type MetadataItem struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Asset is one uploaded voice file. FolderID and FileID are numeric
// strings assigned by the frontend.
type Asset struct {
	Index     uint64         `json:"index"`
	Principal string         `json:"principal"`
	FolderID  string         `json:"folder_id"`
	FileID    string         `json:"file_id"`
	FileName  string         `json:"file_name"`
	Content   []byte         `json:"content,omitempty"`
	Metadata  []MetadataItem `json:"metadata,omitempty"`
	Status    int32          `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Deleted reports whether the asset has been soft deleted.
func (a Asset) Deleted() bool { return a.Status == StatusDeleted }

// ListFilter narrows a listing. Zero values mean "no constraint";
// Prev is the exclusive lower bound on the asset index.
type ListFilter struct {
	Principal string
	FolderID  string
	Prev      uint64
	Take      int
}

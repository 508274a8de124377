// Package types defines the public domain types for the lineage tracker.
package types

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// CollectionIDSeparator joins a collection name and version into the
// collection identifier carried by legacy granule documents.
const CollectionIDSeparator = "___"

// GranuleStatus represents the lifecycle state of a granule.
type GranuleStatus string

// GranuleStatus values enumerate the granule lifecycle states.
const (
	GranuleRunning   GranuleStatus = "running"
	GranuleCompleted GranuleStatus = "completed"
	GranuleFailed    GranuleStatus = "failed"
	GranuleQueued    GranuleStatus = "queued"
)

// ExecutionStatus represents the outcome state of a workflow execution.
type ExecutionStatus string

// ExecutionStatus values enumerate the execution outcome states.
const (
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionFailed    ExecutionStatus = "failed"
	ExecutionUnknown   ExecutionStatus = "unknown"
)

// CollectionRecord is a named, versioned grouping that granules belong to.
// Identified internally by a surrogate key distinct from the (name, version)
// business key.
type CollectionRecord struct {
	CumulusID int64     `json:"cumulusId"`
	Name      string    `json:"name"`
	Version   string    `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ID returns the joined collection identifier used by the legacy store.
func (c CollectionRecord) ID() string {
	return c.Name + CollectionIDSeparator + c.Version
}

// ParseCollectionID splits a joined collection identifier into name and
// version.
func ParseCollectionID(id string) (name, version string, err error) {
	parts := strings.SplitN(id, CollectionIDSeparator, 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid collection id %q", id)
	}
	return parts[0], parts[1], nil
}

// GranuleRecord is a discrete data product instance tracked by identity
// within a collection. GranuleID is unique only within its collection.
type GranuleRecord struct {
	CumulusID           int64           `json:"cumulusId"`
	GranuleID           string          `json:"granuleId"`
	CollectionCumulusID int64           `json:"collectionCumulusId"`
	Status              GranuleStatus   `json:"status"`
	Timestamp           time.Time       `json:"timestamp"`
	CreatedAt           time.Time       `json:"createdAt"`
	UpdatedAt           time.Time       `json:"updatedAt"`
	Published           bool            `json:"published"`
	CMRLink             *string         `json:"cmrLink,omitempty"`
	Error               json.RawMessage `json:"error,omitempty"`
}

// ExecutionRecord is one run of a processing workflow. The ARN is globally
// unique and immutable once recorded.
type ExecutionRecord struct {
	CumulusID    int64           `json:"cumulusId"`
	ARN          string          `json:"arn"`
	WorkflowName string          `json:"workflowName"`
	Status       ExecutionStatus `json:"status"`
	URL          string          `json:"url,omitempty"`
	Timestamp    time.Time       `json:"timestamp"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// FileRecord is a physical object belonging to exactly one granule. The
// (bucket, key) pair is unique system-wide.
type FileRecord struct {
	CumulusID        int64  `json:"cumulusId"`
	GranuleCumulusID int64  `json:"granuleCumulusId"`
	Bucket           string `json:"bucket"`
	Key              string `json:"key"`
	FileName         string `json:"fileName"`
	Size             int64  `json:"size"`
}

// Location returns the file's physical location triple.
func (f FileRecord) Location() FileLocation {
	return FileLocation{Bucket: f.Bucket, Key: f.Key, FileName: f.FileName, Size: f.Size}
}

// FileLocation is a (bucket, key, file_name) triple naming where a file
// physically lives. The relocation engine's authoritative final list is a
// slice of these.
type FileLocation struct {
	Bucket   string `json:"bucket"`
	Key      string `json:"key"`
	FileName string `json:"fileName"`
	Size     int64  `json:"size,omitempty"`
}

// URI returns the s3 object URI for the location.
func (l FileLocation) URI() string {
	return "s3://" + l.Bucket + "/" + l.Key
}

// Same reports whether two locations name the same physical object.
func (l FileLocation) Same(o FileLocation) bool {
	return l.Bucket == o.Bucket && l.Key == o.Key
}

// GranuleDoc is a granule document as stored in the legacy document store.
// It predates the relational schema and denormalizes the collection id and
// file list into the document.
type GranuleDoc struct {
	GranuleID    string          `json:"granuleId"`
	CollectionID string          `json:"collectionId"`
	Status       GranuleStatus   `json:"status"`
	Published    bool            `json:"published"`
	CMRLink      string          `json:"cmrLink,omitempty"`
	Files        []FileLocation  `json:"files"`
	Error        json.RawMessage `json:"error,omitempty"`
	Timestamp    time.Time       `json:"timestamp"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// GranuleDocPatch is a partial update applied to a legacy granule document.
// Nil fields are left unchanged; Files replaces the document's file list
// wholesale when non-nil.
type GranuleDocPatch struct {
	Status    *GranuleStatus `json:"status,omitempty"`
	Published *bool          `json:"published,omitempty"`
	CMRLink   *string        `json:"cmrLink,omitempty"`
	Files     []FileLocation `json:"files,omitempty"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// FileMoveError records a single file whose relocation failed. The file
// remains at its original location.
type FileMoveError struct {
	File   FileLocation `json:"file"`
	Reason string       `json:"reason"`
}

// RelocationResult is the outcome of a relocation request. Files is the
// authoritative final location of every file belonging to the granule,
// whether or not it moved; callers must never infer file state from the
// per-file errors alone.
type RelocationResult struct {
	RelocationID string          `json:"relocationId"`
	GranuleID    string          `json:"granuleId"`
	Granule      GranuleDoc      `json:"granule"`
	Files        []FileLocation  `json:"files"`
	Moved        int             `json:"moved"`
	Errors       []FileMoveError `json:"errors,omitempty"`
}

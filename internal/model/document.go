package model

import (
	"encoding/json"
	"time"
)

// Document is a schemaless JSON object stored in a named collection
// (projects, skills, certificates, messages, settings). Unpublished documents
// are visible to authenticated admins only.
type Document struct {
	ID         string          `json:"id"`
	Collection string          `json:"collection"`
	Data       json.RawMessage `json:"data"`
	Published  bool            `json:"published"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// ListOptions controls pagination and visibility for document listings.
type ListOptions struct {
	IncludeUnpublished bool
	Limit              int
	Offset             int
}

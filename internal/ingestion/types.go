// Package ingestion is the write path for Terms and Translations: request
// validation, the transactional write, and the change event that drives
// index maintenance.
package ingestion

import "github.com/Adithya-Monish-Kumar-K/glossary-index/internal/lexicon"

// EntityRequest is the JSON body for creating a Term or Translation.
type EntityRequest struct {
	Value    string   `json:"value"`
	Lang     string   `json:"lang"`
	Variants []string `json:"variants"`
}

// UpdateRequest replaces the mutable fields of an entity. The language is
// fixed at creation.
type UpdateRequest struct {
	Value    string   `json:"value"`
	Variants []string `json:"variants"`
}

// EntityResponse is returned after a successful write.
type EntityResponse struct {
	Entity lexicon.Entity `json:"entity"`
	// Indexing is "pending" when a change event was published and "stale"
	// when publishing failed and the entry waits for the next seed.
	Indexing string `json:"indexing"`
}

// DeleteResponse lists every entity removed by a delete, including the
// translations of a deleted term.
type DeleteResponse struct {
	Deleted  []lexicon.Ref `json:"deleted"`
	Indexing string        `json:"indexing"`
}

const (
	IndexingPending = "pending"
	IndexingStale   = "stale"
)

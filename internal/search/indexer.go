/*
Package search maintains a full-text index over history entries.

The index is an in-memory Bleve index kept in sync with the history store
through its subscription feed. Indexing failures degrade to "search
unavailable" and never interfere with history writes.
*/
package search

import (
	"fmt"
	"log"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/toolvault/toolvault/internal/storage"
)

// Result is one search hit.
type Result struct {
	// EntryID identifies the matching history entry.
	EntryID string `json:"entryId"`

	// ToolName and ToolRoute identify the tool.
	ToolName  string `json:"toolName"`
	ToolRoute string `json:"toolRoute"`

	// Input is the text rendering of the entry's input.
	Input string `json:"input"`

	// Status is the entry's most recent outcome.
	Status string `json:"status"`

	// Score is the relevance score.
	Score float64 `json:"score"`
}

// Indexer manages the history search index.
type Indexer struct {
	bleveIndex bleve.Index
	mu         sync.RWMutex
}

// NewIndexer creates an in-memory history index.
func NewIndexer() (*Indexer, error) {
	index, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create bleve index: %w", err)
	}
	return &Indexer{bleveIndex: index}, nil
}

// buildIndexMapping creates the Bleve index mapping for history entries.
func buildIndexMapping() mapping.IndexMapping {
	entryMapping := bleve.NewDocumentMapping()

	nameFieldMapping := bleve.NewTextFieldMapping()
	entryMapping.AddFieldMappingsAt("toolName", nameFieldMapping)

	routeFieldMapping := bleve.NewTextFieldMapping()
	entryMapping.AddFieldMappingsAt("toolRoute", routeFieldMapping)

	inputFieldMapping := bleve.NewTextFieldMapping()
	entryMapping.AddFieldMappingsAt("input", inputFieldMapping)

	statusFieldMapping := bleve.NewTextFieldMapping()
	entryMapping.AddFieldMappingsAt("status", statusFieldMapping)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.AddDocumentMapping("_default", entryMapping)

	return indexMapping
}

// Rebuild replaces the index contents with the given entries. Called on
// every history revision; the entry list is small (bounded retention), so a
// full rebuild batch stays cheap.
func (i *Indexer) Rebuild(entries []*storage.Entry) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	// Drop the current documents.
	all := bleve.NewMatchAllQuery()
	existing, err := i.bleveIndex.Search(bleve.NewSearchRequestOptions(all, 10000, 0, false))
	if err != nil {
		return fmt.Errorf("failed to enumerate index: %w", err)
	}

	batch := i.bleveIndex.NewBatch()
	for _, hit := range existing.Hits {
		batch.Delete(hit.ID)
	}

	for _, e := range entries {
		doc := map[string]interface{}{
			"toolName":  e.ToolName,
			"toolRoute": e.ToolRoute,
			"input":     e.Input.Text(),
			"status":    string(e.Status),
		}
		if err := batch.Index(e.ID, doc); err != nil {
			log.Printf("Warning: failed to index history entry %s: %v", e.ID, err)
		}
	}

	if err := i.bleveIndex.Batch(batch); err != nil {
		return fmt.Errorf("failed to batch index entries: %w", err)
	}

	return nil
}

// Search runs a keyword query over the indexed entries.
func (i *Indexer) Search(queryText string, limit int) ([]Result, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if limit <= 0 {
		limit = 10
	}

	searchQuery := bleve.NewMatchQuery(queryText)
	searchRequest := bleve.NewSearchRequestOptions(searchQuery, limit, 0, false)
	searchRequest.Fields = []string{"toolName", "toolRoute", "input", "status"}

	results, err := i.bleveIndex.Search(searchRequest)
	if err != nil {
		return nil, fmt.Errorf("bleve search failed: %w", err)
	}

	out := make([]Result, 0, len(results.Hits))
	for _, hit := range results.Hits {
		name, _ := hit.Fields["toolName"].(string)
		route, _ := hit.Fields["toolRoute"].(string)
		input, _ := hit.Fields["input"].(string)
		status, _ := hit.Fields["status"].(string)

		out = append(out, Result{
			EntryID:   hit.ID,
			ToolName:  name,
			ToolRoute: route,
			Input:     input,
			Status:    status,
			Score:     hit.Score,
		})
	}

	return out, nil
}

// Count returns the number of indexed entries.
func (i *Indexer) Count() (uint64, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	docCount, err := i.bleveIndex.DocCount()
	if err != nil {
		return 0, fmt.Errorf("failed to get doc count: %w", err)
	}
	return docCount, nil
}

// Close closes the index and releases resources.
func (i *Indexer) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.bleveIndex != nil {
		return i.bleveIndex.Close()
	}
	return nil
}

// Follow keeps the index in sync with a history revision feed until the
// channel closes. Run it in its own goroutine.
func (i *Indexer) Follow(revisions <-chan []*storage.Entry) {
	for entries := range revisions {
		if err := i.Rebuild(entries); err != nil {
			log.Printf("Warning: history search index rebuild failed: %v", err)
		}
	}
}

package search

import (
	"os"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/vinayprograms/taskkit/errors"
	"github.com/vinayprograms/taskkit/events"
	"github.com/vinayprograms/taskkit/logging"
	"github.com/vinayprograms/taskkit/task"
)

// DefaultLimit caps query results when the caller does not.
const DefaultLimit = 50

// Document is the indexed projection of a task. Content is analyzed
// for full-text match; tags and state are exact-match keywords.
type Document struct {
	ID      string   `json:"id"`
	Content string   `json:"content"`
	Tags    []string `json:"tags"`
	State   string   `json:"state"`
}

// Config configures the search index.
type Config struct {
	// Path is the on-disk index directory. Empty keeps the index in
	// memory only.
	Path string

	// Logger for index maintenance diagnostics.
	Logger *logging.Logger
}

// Index is a full-text index over task content and tags. It is kept
// current by feeding it the event stream (HandleEvent) and can be
// rebuilt wholesale from a record-set snapshot.
type Index struct {
	mu    sync.RWMutex
	index bleve.Index
	log   *logging.Logger
}

// New opens or creates the index. With an empty path the index lives
// in memory and starts empty; callers should Rebuild from the current
// record set.
func New(cfg Config) (*Index, error) {
	log := cfg.Logger
	if log == nil {
		log = logging.New()
	}

	var idx bleve.Index
	var err error
	if cfg.Path == "" {
		idx, err = bleve.NewMemOnly(buildIndexMapping())
	} else if _, statErr := os.Stat(cfg.Path); os.IsNotExist(statErr) {
		idx, err = bleve.New(cfg.Path, buildIndexMapping())
	} else {
		idx, err = bleve.Open(cfg.Path)
	}
	if err != nil {
		return nil, errors.Storage("opening search index", err)
	}

	return &Index{
		index: idx,
		log:   log.WithComponent("search"),
	}, nil
}

func buildIndexMapping() mapping.IndexMapping {
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = standard.Name

	keywordFieldMapping := bleve.NewKeywordFieldMapping()

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("content", textFieldMapping)
	docMapping.AddFieldMappingsAt("tags", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("state", keywordFieldMapping)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = standard.Name
	return indexMapping
}

func docFromTask(t *task.Task) Document {
	return Document{
		ID:      t.ID,
		Content: t.Content,
		Tags:    t.Tags,
		State:   t.State.String(),
	}
}

// Upsert indexes or reindexes one task.
func (x *Index) Upsert(t *task.Task) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if err := x.index.Index(t.ID, docFromTask(t)); err != nil {
		return errors.Storage("indexing task", err, errors.WithTaskID(t.ID))
	}
	return nil
}

// Delete removes one task from the index.
func (x *Index) Delete(id string) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if err := x.index.Delete(id); err != nil {
		return errors.Storage("deleting indexed task", err, errors.WithTaskID(id))
	}
	return nil
}

// Rebuild replaces the index contents with the given record set in one
// batch. Used at startup and after repair passes, which may rewrite
// tasks without individual events.
func (x *Index) Rebuild(records []*task.Task) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	existing, err := x.allIDs()
	if err != nil {
		return err
	}

	batch := x.index.NewBatch()
	keep := make(map[string]bool, len(records))
	for _, t := range records {
		keep[t.ID] = true
		if err := batch.Index(t.ID, docFromTask(t)); err != nil {
			return errors.Storage("rebuilding search index", err, errors.WithTaskID(t.ID))
		}
	}
	for _, id := range existing {
		if !keep[id] {
			batch.Delete(id)
		}
	}

	if err := x.index.Batch(batch); err != nil {
		return errors.Storage("rebuilding search index", err)
	}
	x.log.Debug("index rebuilt", map[string]interface{}{"documents": len(records)})
	return nil
}

// Query returns the IDs of tasks whose content or tags match the text,
// best match first.
func (x *Index) Query(text string, limit int) ([]string, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if limit <= 0 {
		limit = DefaultLimit
	}

	contentQuery := bleve.NewMatchQuery(text)
	contentQuery.SetField("content")
	tagQuery := bleve.NewMatchQuery(text)
	tagQuery.SetField("tags")
	searchQuery := bleve.NewDisjunctionQuery([]query.Query{contentQuery, tagQuery}...)

	searchReq := bleve.NewSearchRequest(searchQuery)
	searchReq.Size = limit

	result, err := x.index.Search(searchReq)
	if err != nil {
		return nil, errors.Storage("searching index", err)
	}

	ids := make([]string, 0, len(result.Hits))
	for _, hit := range result.Hits {
		ids = append(ids, hit.ID)
	}
	return ids, nil
}

// DocCount returns how many tasks are indexed.
func (x *Index) DocCount() (uint64, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.index.DocCount()
}

// HandleEvent keeps the index current from the event stream. Archive
// batches reindex every archived task; reorders carry no indexed
// fields and are ignored. Repair events trigger nothing here because
// the tracker rebuilds after a repair pass.
func (x *Index) HandleEvent(e events.Event) {
	switch e.Kind {
	case events.KindTaskAdded, events.KindTaskUpdated, events.KindTaskStarted,
		events.KindTaskCompleted, events.KindTaskReopened:
		if e.Task == nil {
			return
		}
		if err := x.Upsert(e.Task); err != nil {
			x.log.Warn("event-driven index update failed", map[string]interface{}{
				"kind":  string(e.Kind),
				"task":  e.Task.ID,
				"error": err.Error(),
			})
		}
	case events.KindTasksArchived:
		for _, t := range e.Tasks {
			if err := x.Upsert(t); err != nil {
				x.log.Warn("event-driven index update failed", map[string]interface{}{
					"kind":  string(e.Kind),
					"task":  t.ID,
					"error": err.Error(),
				})
			}
		}
	}
}

// Close releases the index.
func (x *Index) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if err := x.index.Close(); err != nil {
		return errors.Storage("closing search index", err)
	}
	return nil
}

// allIDs lists every indexed document ID. Caller holds the lock.
func (x *Index) allIDs() ([]string, error) {
	count, err := x.index.DocCount()
	if err != nil {
		return nil, errors.Storage("listing indexed tasks", err)
	}
	if count == 0 {
		return nil, nil
	}

	searchReq := bleve.NewSearchRequest(bleve.NewMatchAllQuery())
	searchReq.Size = int(count)

	result, err := x.index.Search(searchReq)
	if err != nil {
		return nil, errors.Storage("listing indexed tasks", err)
	}
	ids := make([]string, 0, len(result.Hits))
	for _, hit := range result.Hits {
		ids = append(ids, hit.ID)
	}
	return ids, nil
}

// Package bleveidx provides the keyword leg shared by memory drivers, built
// on a bleve full-text index over fact content.
package bleveidx

import (
	"context"
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
	"go.uber.org/zap"

	"github.com/inkwellco/spool/pkg/memory"
)

// Index is a bleve-backed keyword index over facts. It stores only the
// fields retrieval filters on; fact content lives in the owning driver.
type Index struct {
	index  bleve.Index
	logger *zap.Logger
}

// factDoc is the indexed projection of a fact.
type factDoc struct {
	OwnerID    string  `json:"owner_id"`
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
	Content    string  `json:"content"`
}

// New opens or creates a keyword index at path. An empty path builds an
// in-memory index.
func New(path string, logger *zap.Logger) (*Index, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		idx bleve.Index
		err error
	)
	if path == "" {
		idx, err = bleve.NewMemOnly(buildIndexMapping())
	} else {
		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, buildIndexMapping())
		}
	}
	if err != nil {
		return nil, fmt.Errorf("opening keyword index: %w", err)
	}

	return &Index{index: idx, logger: logger}, nil
}

func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = "en"
	indexMapping.DefaultField = "content"

	docMapping := bleve.NewDocumentMapping()

	contentField := bleve.NewTextFieldMapping()
	contentField.Store = false
	contentField.Index = true
	docMapping.AddFieldMappingsAt("content", contentField)

	// Exact-match filter fields use the keyword analyzer so owner and
	// category values are never tokenized.
	ownerField := bleve.NewTextFieldMapping()
	ownerField.Store = false
	ownerField.Index = true
	ownerField.Analyzer = "keyword"
	docMapping.AddFieldMappingsAt("owner_id", ownerField)

	categoryField := bleve.NewTextFieldMapping()
	categoryField.Store = false
	categoryField.Index = true
	categoryField.Analyzer = "keyword"
	docMapping.AddFieldMappingsAt("category", categoryField)

	confidenceField := bleve.NewNumericFieldMapping()
	confidenceField.Store = false
	confidenceField.Index = true
	docMapping.AddFieldMappingsAt("confidence", confidenceField)

	indexMapping.DefaultMapping = docMapping
	return indexMapping
}

// Put indexes a fact, replacing any previous entry with the same ID.
func (i *Index) Put(fact memory.Fact) error {
	doc := factDoc{
		OwnerID:    fact.OwnerID,
		Category:   fact.Category,
		Confidence: fact.Confidence,
		Content:    fact.Content,
	}
	if err := i.index.Index(fact.ID, doc); err != nil {
		return fmt.Errorf("indexing fact %s: %w", fact.ID, err)
	}
	return nil
}

// Delete removes a fact from the index. Deleting an unknown ID is a no-op.
func (i *Index) Delete(id string) error {
	return i.index.Delete(id)
}

// Search runs an AND query for terms over fact content, scoped by the
// filter, and returns up to topK hits by descending bleve relevance score.
func (i *Index) Search(ctx context.Context, terms []string, filter memory.Filter, topK int) ([]memory.KeywordHit, error) {
	if len(terms) == 0 {
		return nil, nil
	}
	if topK <= 0 {
		topK = 10
	}

	conjuncts := make([]blevequery.Query, 0, len(terms)+3)
	for _, term := range terms {
		match := bleve.NewMatchQuery(term)
		match.SetField("content")
		conjuncts = append(conjuncts, match)
	}

	owner := bleve.NewTermQuery(filter.OwnerID)
	owner.SetField("owner_id")
	conjuncts = append(conjuncts, owner)

	if filter.Category != "" {
		category := bleve.NewTermQuery(filter.Category)
		category.SetField("category")
		conjuncts = append(conjuncts, category)
	}

	if filter.MinConfidence > 0 {
		min := filter.MinConfidence
		inclusive := true
		confidence := bleve.NewNumericRangeInclusiveQuery(&min, nil, &inclusive, nil)
		confidence.SetField("confidence")
		conjuncts = append(conjuncts, confidence)
	}

	req := bleve.NewSearchRequestOptions(bleve.NewConjunctionQuery(conjuncts...), topK, 0, false)

	res, err := i.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}

	hits := make([]memory.KeywordHit, 0, len(res.Hits))
	for _, hit := range res.Hits {
		hits = append(hits, memory.KeywordHit{ID: hit.ID, Score: hit.Score})
	}

	i.logger.Debug("keyword search completed",
		zap.Int("terms", len(terms)),
		zap.Int("hits", len(hits)),
	)

	return hits, nil
}

// Close releases the underlying index.
func (i *Index) Close() error {
	return i.index.Close()
}

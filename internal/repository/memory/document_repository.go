package memory

import (
	"ai-chatbot-be/pkg/store"

	"github.com/patrickmn/go-cache"
)

// DocumentRepository is the catalog of ingested documents keyed by content
// hash. Documents are shared by every session that uploads the same content.
type DocumentRepository struct {
	cache *cache.Cache
}

func NewDocumentRepository() *DocumentRepository {
	return &DocumentRepository{
		cache: cache.New(cache.NoExpiration, 0),
	}
}

func (r *DocumentRepository) FindByHash(contentHash string) (*store.Document, bool) {
	if x, found := r.cache.Get(contentHash); found {
		return x.(*store.Document), true
	}
	return nil, false
}

// Save registers doc. An existing entry for the same hash wins.
func (r *DocumentRepository) Save(doc *store.Document) *store.Document {
	if err := r.cache.Add(doc.ContentHash, doc, cache.NoExpiration); err != nil {
		if existing, ok := r.FindByHash(doc.ContentHash); ok {
			return existing
		}
	}
	return doc
}

func (r *DocumentRepository) Count() int {
	return r.cache.ItemCount()
}

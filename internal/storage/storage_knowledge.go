// /internal/storage/storage_knowledge.go
package storage

import "candybear/internal/knowledge"

const knowledgeKey = "knowledge_base"

// LoadKnowledgeItems returns the persisted knowledge base, empty when none
// was ever saved.
func (s *Storage) LoadKnowledgeItems() ([]knowledge.Item, error) {
	var items []knowledge.Item
	if _, err := s.load(knowledgeKey, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// SaveKnowledgeItems overwrites the persisted knowledge base. Implements
// knowledge.Saver.
func (s *Storage) SaveKnowledgeItems(items []knowledge.Item) error {
	s.store(knowledgeKey, items)
	return nil
}

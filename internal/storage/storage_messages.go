// /internal/storage/storage_messages.go
package storage

import "time"

const messageHistoryLimit int = 200

type StoredMessage struct {
	UserID   string    `json:"user_id"`
	Nickname string    `json:"nickname"`
	Text     string    `json:"text"`
	FromBot  bool      `json:"from_bot"`
	Datetime time.Time `json:"datetime"`
}

type GroupRecord struct {
	Messages []StoredMessage `json:"messages"`
}

func groupKey(groupID string) string {
	return "group_" + groupID
}

func (s *Storage) getOrCreateGroupRecord(groupID string) (*GroupRecord, error) {
	var record GroupRecord
	exists, err := s.load(groupKey(groupID), &record)
	if err != nil {
		return nil, err
	}
	if !exists {
		record = GroupRecord{Messages: []StoredMessage{}}
		s.store(groupKey(groupID), &record)
	}
	if len(record.Messages) > messageHistoryLimit {
		record.Messages = record.Messages[len(record.Messages)-messageHistoryLimit:]
	}
	return &record, nil
}

// SaveMessage appends one chat message to the group's bounded history.
func (s *Storage) SaveMessage(groupID string, msg StoredMessage) error {
	record, err := s.getOrCreateGroupRecord(groupID)
	if err != nil {
		return err
	}
	record.Messages = append(record.Messages, msg)
	if len(record.Messages) > messageHistoryLimit {
		record.Messages = record.Messages[len(record.Messages)-messageHistoryLimit:]
	}
	s.store(groupKey(groupID), record)
	return nil
}

// FetchMessages returns the group's stored history, oldest first.
func (s *Storage) FetchMessages(groupID string) ([]StoredMessage, error) {
	record, err := s.getOrCreateGroupRecord(groupID)
	if err != nil {
		return nil, err
	}
	return record.Messages, nil
}

// FetchMessagesByUser returns the group messages a single user sent.
func (s *Storage) FetchMessagesByUser(groupID, userID string) ([]StoredMessage, error) {
	all, err := s.FetchMessages(groupID)
	if err != nil {
		return nil, err
	}
	var out []StoredMessage
	for _, m := range all {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	return out, nil
}

// /internal/storage/storage_profile.go
package storage

import "time"

type UserProfile struct {
	UserID     string    `json:"user_id"`
	Nickname   string    `json:"nickname"`
	Affinity   int       `json:"affinity"`
	Portrait   string    `json:"portrait"`
	PortraitAt time.Time `json:"portrait_at"`
}

func userKey(userID string) string {
	return "user_" + userID
}

func (s *Storage) getOrCreateProfile(userID string) (*UserProfile, error) {
	var profile UserProfile
	exists, err := s.load(userKey(userID), &profile)
	if err != nil {
		return nil, err
	}
	if !exists {
		profile = UserProfile{UserID: userID}
		s.store(userKey(userID), &profile)
	}
	return &profile, nil
}

func (s *Storage) FetchProfile(userID string) (UserProfile, error) {
	p, err := s.getOrCreateProfile(userID)
	if err != nil {
		return UserProfile{}, err
	}
	return *p, nil
}

// SavePortrait stores a freshly generated portrait for the user.
func (s *Storage) SavePortrait(userID, nickname, portrait string, at time.Time) error {
	p, err := s.getOrCreateProfile(userID)
	if err != nil {
		return err
	}
	if nickname != "" {
		p.Nickname = nickname
	}
	p.Portrait = portrait
	p.PortraitAt = at
	s.store(userKey(userID), p)
	return nil
}

// BumpAffinity shifts the user's affinity by delta.
func (s *Storage) BumpAffinity(userID string, delta int) error {
	p, err := s.getOrCreateProfile(userID)
	if err != nil {
		return err
	}
	p.Affinity += delta
	s.store(userKey(userID), p)
	return nil
}

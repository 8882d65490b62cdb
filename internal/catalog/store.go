// Package catalog fetches and holds the per-channel community emote catalogs.
//
// Catalogs are an enhancement: a channel whose catalog could not be fetched
// simply has no community emotes, and every fetch failure is logged and
// swallowed by the Fetcher. Entries are only ever inserted or overwritten.
package catalog

import (
	"strings"
	"sync"
)

// Record is one community emote as served by the catalog service.
type Record struct {
	Code string `json:"code"`
	ID   string `json:"id"`
}

// Store maps channel -> emote code -> asset id.
type Store struct {
	mu       sync.RWMutex
	channels map[string]map[string]string
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{channels: make(map[string]map[string]string)}
}

// Merge inserts records into channel's catalog, overwriting entries that
// share a code, and returns the catalog size afterwards.
func (s *Store) Merge(channel string, records []Record) int {
	channel = NormalizeChannel(channel)

	s.mu.Lock()
	defer s.mu.Unlock()

	emotes := s.channels[channel]
	if emotes == nil {
		emotes = make(map[string]string, len(records))
		s.channels[channel] = emotes
	}
	for _, r := range records {
		if r.Code == "" {
			continue
		}
		emotes[r.Code] = r.ID
	}
	return len(emotes)
}

// Lookup returns the asset id registered for token in channel.
func (s *Store) Lookup(channel, token string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.channels[NormalizeChannel(channel)][token]
	return id, ok
}

// Len returns the number of emotes known for channel.
func (s *Store) Len(channel string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.channels[NormalizeChannel(channel)])
}

// NormalizeChannel strips the IRC '#' prefix and lowercases the name.
func NormalizeChannel(channel string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(channel), "#"))
}

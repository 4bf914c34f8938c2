// Package stats persists per-user trade counters. The store is a flat
// JSON file: loaded once at startup, rewritten on every recorded trade and
// on clean shutdown. Losing a write is acceptable; the counters are
// bookkeeping, not correctness state.
package stats

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/disgoorg/snowflake/v2"

	"github.com/wchill/MrProgDiscordBot/mrprog/trade"
)

// ItemCount is one traded item and how many times it was traded.
type ItemCount struct {
	Item  trade.Item `json:"item"`
	Count int        `json:"count"`
}

// UserStats holds one user's counters, keyed by item key.
type UserStats struct {
	UserID snowflake.ID          `json:"user_id"`
	Trades map[string]*ItemCount `json:"trades"`
}

func (u *UserStats) TotalTrades() int {
	total := 0
	for _, c := range u.Trades {
		total += c.Count
	}
	return total
}

// TopItems returns the user's items ordered by descending trade count.
func (u *UserStats) TopItems() []ItemCount {
	out := make([]ItemCount, 0, len(u.Trades))
	for _, c := range u.Trades {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

// Store is the persisted counter store. Safe for concurrent use.
type Store struct {
	mu    sync.Mutex
	path  string
	users map[snowflake.ID]*UserStats
}

type fileFormat struct {
	Users map[snowflake.ID]*UserStats `json:"users"`
}

// Load reads the store from path, or starts empty if the file does not
// exist yet.
func Load(path string) (*Store, error) {
	s := &Store{
		path:  path,
		users: make(map[snowflake.ID]*UserStats),
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.Debug("No trade stats file yet, starting empty",
				slog.String("type", "stats"),
				slog.String("path", path))
			return s, nil
		}
		return nil, fmt.Errorf("failed to read trade stats: %w", err)
	}
	var f fileFormat
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("failed to parse trade stats: %w", err)
	}
	if f.Users != nil {
		s.users = f.Users
	}
	slog.Info("Loaded trade stats",
		slog.String("type", "stats"),
		slog.String("path", path),
		slog.Int("users", len(s.users)))
	return s, nil
}

// RecordTrade increments the counter for one completed trade and persists
// the store.
func (s *Store) RecordTrade(userID snowflake.ID, item trade.Item) error {
	s.mu.Lock()
	user, ok := s.users[userID]
	if !ok {
		user = &UserStats{UserID: userID, Trades: make(map[string]*ItemCount)}
		s.users[userID] = user
	}
	key := item.Key()
	count, ok := user.Trades[key]
	if !ok {
		count = &ItemCount{Item: item}
		user.Trades[key] = count
	}
	count.Count++
	s.mu.Unlock()

	return s.Save()
}

// Save writes the store to disk atomically.
func (s *Store) Save() error {
	s.mu.Lock()
	raw, err := json.MarshalIndent(fileFormat{Users: s.users}, "", "  ")
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to encode trade stats: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create stats directory: %w", err)
	}
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write trade stats: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace trade stats: %w", err)
	}
	return nil
}

// User returns a copy of one user's stats.
func (s *Store) User(userID snowflake.ID) (UserStats, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return UserStats{}, false
	}
	out := UserStats{UserID: user.UserID, Trades: make(map[string]*ItemCount, len(user.Trades))}
	for k, c := range user.Trades {
		cc := *c
		out.Trades[k] = &cc
	}
	return out, true
}

// TotalTrades counts every recorded trade.
func (s *Store) TotalTrades() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, user := range s.users {
		total += user.TotalTrades()
	}
	return total
}

// TotalUsers counts users with at least one recorded trade.
func (s *Store) TotalUsers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

// UserCount pairs a user with their total trade count.
type UserCount struct {
	UserID snowflake.ID
	Count  int
}

// TopUsers returns users ordered by descending total trade count.
func (s *Store) TopUsers() []UserCount {
	s.mu.Lock()
	out := make([]UserCount, 0, len(s.users))
	for id, user := range s.users {
		out = append(out, UserCount{UserID: id, Count: user.TotalTrades()})
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

// TopItems returns items ordered by descending trade count across all
// users.
func (s *Store) TopItems() []ItemCount {
	s.mu.Lock()
	byKey := make(map[string]*ItemCount)
	for _, user := range s.users {
		for key, c := range user.Trades {
			agg, ok := byKey[key]
			if !ok {
				agg = &ItemCount{Item: c.Item}
				byKey[key] = agg
			}
			agg.Count += c.Count
		}
	}
	s.mu.Unlock()

	out := make([]ItemCount, 0, len(byKey))
	for _, c := range byKey {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

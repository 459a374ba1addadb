// Package state holds the engine's only mutable shared record: the
// ordered global event set and per-persona last-action metadata. The
// cycle controller is the single writer; persistence is an explicit
// Save at defined points, never implicit.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// UserRecord tracks what a persona last did.
type UserRecord struct {
	LastScene string `json:"last_scene"`
	LastRun   int64  `json:"last_run"`
}

// State is the persisted cycle record. GlobalEvents is an ordered,
// duplicate-free collection: an event present here has fired but not
// yet been consumed by its target.
type State struct {
	GlobalEvents []string              `json:"global_events"`
	Users        map[string]UserRecord `json:"users"`
	LastRun      int64                 `json:"last_run"`
}

// Store owns the durable copy of a State.
type Store struct {
	path string
	log  *zap.Logger
}

// NewStore creates a store persisting to the given path.
func NewStore(path string, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{path: path, log: log.Named("state")}
}

// Load reads the persisted state, returning a fresh empty state when
// the file is missing or unreadable. Load never fails the cycle.
func (s *Store) Load() *State {
	st := &State{Users: make(map[string]UserRecord)}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Error("state unreadable, starting empty", zap.String("path", s.path), zap.Error(err))
		}
		return st
	}
	if err := json.Unmarshal(data, st); err != nil {
		s.log.Error("state corrupt, starting empty", zap.String("path", s.path), zap.Error(err))
		return &State{Users: make(map[string]UserRecord)}
	}
	if st.Users == nil {
		st.Users = make(map[string]UserRecord)
	}
	return st
}

// Save persists the state. Failure is a reliability gap, not a fatal
// error: the in-memory state stays authoritative for the run.
func (s *Store) Save(st *State) error {
	data, err := json.MarshalIndent(st, "", "    ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	return nil
}

// FireEvent appends the event token unless it is already pending.
// Idempotent insert: the pending set never holds duplicates.
func (st *State) FireEvent(event string) bool {
	for _, e := range st.GlobalEvents {
		if e == event {
			return false
		}
	}
	st.GlobalEvents = append(st.GlobalEvents, event)
	return true
}

// HasEvent reports whether the event is pending.
func (st *State) HasEvent(event string) bool {
	for _, e := range st.GlobalEvents {
		if e == event {
			return true
		}
	}
	return false
}

// ConsumeEvent removes the first occurrence of the event, preserving
// the order of the rest. Returns false if the event was not pending.
func (st *State) ConsumeEvent(event string) bool {
	for i, e := range st.GlobalEvents {
		if e == event {
			st.GlobalEvents = append(st.GlobalEvents[:i], st.GlobalEvents[i+1:]...)
			return true
		}
	}
	return false
}

// RecordRun updates the persona's last-action metadata.
func (st *State) RecordRun(persona, sceneName string, ts int64) {
	st.Users[persona] = UserRecord{LastScene: sceneName, LastRun: ts}
}

// LastScene returns the persona's previous scene name, or "".
func (st *State) LastScene(persona string) string {
	return st.Users[persona].LastScene
}

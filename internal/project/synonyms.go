package project

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// SynonymFile is the on-disk shape of an optional seed file of synonym
// groups and extra stop-words, read by SynonymStore.
type SynonymFile struct {
	StopWords []string         `yaml:"stopWords"`
	Synonyms  [][]string       `yaml:"synonyms"`
}

// SynonymStore holds the current, hot-reloadable synonym seed. No other
// package constructs one: search expands queries with each project's own
// Synonyms only, and the indexer and search engine pass no StopWordSet.
type SynonymStore struct {
	mu       sync.RWMutex
	groups   []SynonymGroup
	stopWord map[string]struct{}

	path    string
	logger  *zap.Logger
	watcher *fsnotify.Watcher
	stopCh  chan struct{}
}

// NewSynonymStore loads path (if non-empty) and, when watch is true, keeps
// watching it for changes via fsnotify -- mirroring the hot-reload pattern
// this codebase uses for development-time config.
func NewSynonymStore(path string, watch bool, logger *zap.Logger) (*SynonymStore, error) {
	s := &SynonymStore{
		stopWord: map[string]struct{}{},
		path:     path,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
	if path != "" {
		if err := s.reload(); err != nil {
			return nil, err
		}
	}
	if path != "" && watch {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			return nil, fmt.Errorf("create synonym file watcher: %w", err)
		}
		if err := w.Add(filepath.Dir(path)); err != nil {
			w.Close()
			return nil, fmt.Errorf("watch synonym file dir: %w", err)
		}
		s.watcher = w
		go s.watchLoop()
	}
	return s, nil
}

func (s *SynonymStore) watchLoop() {
	for {
		select {
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(s.path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := s.reload(); err != nil && s.logger != nil {
				s.logger.Warn("synonym config reload failed", zap.Error(err))
			} else if s.logger != nil {
				s.logger.Info("synonym config reloaded", zap.String("path", s.path))
			}
		case _, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
		case <-s.stopCh:
			return
		}
	}
}

func (s *SynonymStore) reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read synonym config: %w", err)
	}
	var f SynonymFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse synonym config: %w", err)
	}
	groups := make([]SynonymGroup, 0, len(f.Synonyms))
	for _, g := range f.Synonyms {
		groups = append(groups, SynonymGroup(g))
	}
	stop := make(map[string]struct{}, len(f.StopWords))
	for _, w := range f.StopWords {
		stop[w] = struct{}{}
	}

	s.mu.Lock()
	s.groups = groups
	s.stopWord = stop
	s.mu.Unlock()
	return nil
}

// Groups returns the currently loaded synonym groups.
func (s *SynonymStore) Groups() []SynonymGroup {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]SynonymGroup, len(s.groups))
	copy(out, s.groups)
	return out
}

// IsStopWord reports whether word is in the loaded custom stop-word set.
// Callers also consult the baseline stop-word set in queryproc.
func (s *SynonymStore) IsStopWord(word string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.stopWord[word]
	return ok
}

// Close stops the file watcher, if any.
func (s *SynonymStore) Close() error {
	close(s.stopCh)
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}

// ExpandTokens applies spec §4.5 step 2: order-preserving, deduplicated
// expansion of tokens by every surface form in any group containing
// (case-folded) one of the tokens.
func ExpandTokens(tokens []string, groups []SynonymGroup) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	add := func(t string) {
		if _, ok := seen[t]; ok {
			return
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	for _, t := range tokens {
		add(t)
	}
	for _, t := range tokens {
		for _, g := range groups {
			if containsFold(g, t) {
				for _, form := range g {
					add(form)
				}
			}
		}
	}
	return out
}

func containsFold(group SynonymGroup, t string) bool {
	for _, form := range group {
		if equalFold(form, t) {
			return true
		}
	}
	return false
}

func equalFold(a, b string) bool {
	return toLower(a) == toLower(b)
}

func toLower(s string) string {
	rs := []rune(s)
	for i, r := range rs {
		if r >= 'A' && r <= 'Z' {
			rs[i] = r + ('a' - 'A')
		} else if r >= 'А' && r <= 'Я' {
			rs[i] = r + ('а' - 'А')
		} else if r == 'Ё' {
			rs[i] = 'ё'
		}
	}
	return string(rs)
}

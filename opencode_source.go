// opencode session source: sqlite-backed listing, graph reads and watching.

package main

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
)

type opencodeSource struct {
	dbPath string
}

func newOpencodeSource(dbPath string) *opencodeSource {
	return &opencodeSource{dbPath: dbPath}
}

func (s *opencodeSource) kind() sourceKind { return sourceOpencode }

// listSessions treats a missing database as no sessions.
func (s *opencodeSource) listSessions() ([]sessionInfo, error) {
	sessions, err := querySessions(s.dbPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return sessions, err
}

func (s *opencodeSource) readGraph(sessionID string) (graph, error) {
	tree, err := loadSessionTree(s.dbPath, sessionID)
	if err != nil {
		return graph{}, fmt.Errorf("read session: %w", err)
	}
	return buildOpencodeGraph(tree), nil
}

// watch fires on any write to the database or its WAL. every session shares
// the one file, so unrelated sessions also trigger a (cheap) rebuild.
func (s *opencodeSource) watch(sessionID string, onUpdate func()) (func(), error) {
	dir := filepath.Dir(s.dbPath)
	base := filepath.Base(s.dbPath)
	return watchFiles(watchSpec{
		dirs: []string{dir},
		match: func(path string) bool {
			name := filepath.Base(path)
			return name == base || name == base+"-wal"
		},
	}, onUpdate)
}

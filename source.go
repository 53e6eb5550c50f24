// session sources and the multi-source reconciler.
//
// a source is one dialect's capability set: list, read a graph, watch.
// multiSource composes several and namespaces ids as "<kind>:<native id>"
// so a session list can mix dialects and still route every call back to
// the source that owns it.

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
)

type source interface {
	kind() sourceKind
	listSessions() ([]sessionInfo, error)
	readGraph(sessionID string) (graph, error)
	// watch calls onUpdate after changes settle. the returned func
	// releases the subscription and is safe to call more than once.
	watch(sessionID string, onUpdate func()) (func(), error)
}

// liveSource is a source backed by a live agent runtime.
type liveSource interface {
	source
	sendMessage(ctx context.Context, sessionID, text string) error
	abortSession(ctx context.Context, sessionID string) error
}

var (
	errUnknownSource = errors.New("unknown session source")
	errNotLive       = errors.New("no live runtime connection for this session")
)

func qualifyID(kind sourceKind, nativeID string) string {
	return string(kind) + ":" + nativeID
}

// splitID decodes a qualified id. ok is false when there is no prefix.
func splitID(id string) (sourceKind, string, bool) {
	kind, native, ok := strings.Cut(id, ":")
	if !ok || kind == "" {
		return "", "", false
	}
	return sourceKind(kind), native, true
}

type multiSource struct {
	sources []source
}

func newMultiSource(sources ...source) *multiSource {
	return &multiSource{sources: sources}
}

func (m *multiSource) kind() sourceKind { return "all" }

// owner resolves a qualified id to its source and native id.
func (m *multiSource) owner(id string) (source, string, error) {
	kind, native, ok := splitID(id)
	if !ok {
		return nil, "", fmt.Errorf("%w: %q", errUnknownSource, id)
	}
	for _, s := range m.sources {
		if s.kind() == kind {
			return s, native, nil
		}
	}
	return nil, "", fmt.Errorf("%w: %q", errUnknownSource, kind)
}

// listSessions merges every source's sessions, newest first (ties by id).
// a failing source is logged and skipped; if every source fails the first
// error is returned.
func (m *multiSource) listSessions() ([]sessionInfo, error) {
	var (
		all      []sessionInfo
		firstErr error
		failed   int
	)
	for _, l := range fetchAll(m.sources) {
		if l.err != nil {
			log.Printf("%s: list sessions: %v", l.kind, l.err)
			failed++
			if firstErr == nil {
				firstErr = l.err
			}
			continue
		}
		for _, si := range l.sessions {
			si.id = qualifyID(l.kind, si.id)
			si.source = l.kind
			all = append(all, si)
		}
	}
	if failed > 0 && failed == len(m.sources) {
		return nil, firstErr
	}

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].lastActivity != all[j].lastActivity {
			return all[i].lastActivity > all[j].lastActivity
		}
		return all[i].id < all[j].id
	})
	return all, nil
}

func (m *multiSource) readGraph(id string) (graph, error) {
	s, native, err := m.owner(id)
	if err != nil {
		return graph{}, err
	}
	return s.readGraph(native)
}

func (m *multiSource) watch(id string, onUpdate func()) (func(), error) {
	s, native, err := m.owner(id)
	if err != nil {
		return nil, err
	}
	return s.watch(native, onUpdate)
}

func (m *multiSource) live(id string) (liveSource, string, error) {
	s, native, err := m.owner(id)
	if err != nil {
		return nil, "", err
	}
	ls, ok := s.(liveSource)
	if !ok {
		return nil, "", errNotLive
	}
	return ls, native, nil
}

func (m *multiSource) sendMessage(ctx context.Context, id, text string) error {
	ls, native, err := m.live(id)
	if err != nil {
		return err
	}
	return ls.sendMessage(ctx, native, text)
}

func (m *multiSource) abortSession(ctx context.Context, id string) error {
	ls, native, err := m.live(id)
	if err != nil {
		return err
	}
	return ls.abortSession(ctx, native)
}

// isLive reports whether the session's owner has a runtime connection.
func (m *multiSource) isLive(id string) bool {
	_, _, err := m.live(id)
	return err == nil
}

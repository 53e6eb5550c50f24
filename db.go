// sqlite queries against opencode's database.
//
// all queries are read-only (?mode=ro). safe to run concurrently with
// active opencode instances writing in WAL mode.

package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"

	_ "modernc.org/sqlite"
)

// openDB opens a read-only connection to an opencode sqlite database.
func openDB(path string) (*sql.DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	return sql.Open("sqlite", "file:"+path+"?mode=ro")
}

// querySessions lists top-level sessions (child sessions are sub-agents and
// never listed on their own), most recently updated first.
func querySessions(path string) ([]sessionInfo, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.Query(`
		SELECT
			s.id, s.title, s.directory, s.time_updated,
			(SELECT count(*) FROM message m WHERE m.session_id = s.id)
		FROM session s
		WHERE s.parent_id IS NULL OR s.parent_id = ''
		ORDER BY s.time_updated DESC, s.id
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []sessionInfo
	for rows.Next() {
		var (
			id                string
			title, directory  sql.NullString
			updated, msgCount sql.NullInt64
		)
		if rows.Scan(&id, &title, &directory, &updated, &msgCount) != nil {
			continue
		}
		titleStr := title.String
		if titleStr == "" {
			titleStr = "(untitled)"
		}
		sessions = append(sessions, sessionInfo{
			id:           id,
			source:       sourceOpencode,
			title:        titleStr,
			directory:    directory.String,
			lastActivity: updated.Int64,
			eventCount:   int(msgCount.Int64),
		})
	}
	return sessions, rows.Err()
}

// loadSessionTree reads a session and all of its descendants, root first,
// then breadth-first with siblings in id order.
// a root that does not exist yields an empty tree.
func loadSessionTree(path, rootID string) ([]ocSession, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	root, err := loadSessionRow(db, rootID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", rootID, err)
	}

	tree := []ocSession{root}
	seen := map[string]bool{rootID: true}
	for i := 0; i < len(tree); i++ {
		children, err := childSessionIDs(db, tree[i].id)
		if err != nil {
			return nil, err
		}
		for _, id := range children {
			if seen[id] {
				continue
			}
			seen[id] = true
			child, err := loadSessionRow(db, id)
			if err != nil {
				continue
			}
			tree = append(tree, child)
		}
	}

	for i := range tree {
		if tree[i].messages, err = loadMessages(db, tree[i].id); err != nil {
			return nil, err
		}
		if tree[i].parts, err = loadParts(db, tree[i].id); err != nil {
			return nil, err
		}
	}
	return tree, nil
}

func loadSessionRow(db *sql.DB, id string) (ocSession, error) {
	var parentID, title sql.NullString
	err := db.QueryRow(`SELECT parent_id, title FROM session WHERE id = ?`, id).
		Scan(&parentID, &title)
	if err != nil {
		return ocSession{}, err
	}
	return ocSession{id: id, parentID: parentID.String, title: title.String}, nil
}

func childSessionIDs(db *sql.DB, parentID string) ([]string, error) {
	rows, err := db.Query(`SELECT id FROM session WHERE parent_id = ? ORDER BY id`, parentID)
	if err != nil {
		return nil, fmt.Errorf("query child sessions: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if rows.Scan(&id) == nil {
			ids = append(ids, id)
		}
	}
	return ids, rows.Err()
}

// loadMessages returns a session's messages in storage order.
// rows whose data is not valid JSON are skipped.
func loadMessages(db *sql.DB, sessionID string) ([]ocMessage, error) {
	rows, err := db.Query(`
		SELECT id, time_created, data
		FROM message
		WHERE session_id = ?
		ORDER BY rowid
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []ocMessage
	for rows.Next() {
		var (
			id      string
			created sql.NullInt64
			data    string
		)
		if rows.Scan(&id, &created, &data) != nil {
			continue
		}
		m := ocMessage{id: id, sessionID: sessionID, timeCreated: created.Int64}
		if json.Unmarshal([]byte(data), &m.data) != nil {
			continue
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// loadParts returns a session's parts in storage order, which is not
// necessarily id order.
func loadParts(db *sql.DB, sessionID string) ([]ocPart, error) {
	rows, err := db.Query(`
		SELECT id, message_id, time_created, data
		FROM part
		WHERE session_id = ?
		ORDER BY rowid
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query parts: %w", err)
	}
	defer rows.Close()

	var parts []ocPart
	for rows.Next() {
		var (
			id, messageID string
			created       sql.NullInt64
			data          string
		)
		if rows.Scan(&id, &messageID, &created, &data) != nil {
			continue
		}
		p := ocPart{id: id, messageID: messageID, sessionID: sessionID, timeCreated: created.Int64}
		if json.Unmarshal([]byte(data), &p.data) != nil {
			continue
		}
		parts = append(parts, p)
	}
	return parts, rows.Err()
}

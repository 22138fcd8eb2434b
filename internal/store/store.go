package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// Store persists upload and monitor-session history as JSON files.
type Store struct {
	root string
	mu   sync.Mutex
}

// New creates a Store rooted at the given directory (typically .eblocks/).
func New(root string) *Store {
	return &Store{root: root}
}

func (s *Store) historyDir() string {
	return filepath.Join(s.root, "history")
}

// AddUpload appends an upload record.
func (s *Store) AddUpload(r UploadRecord) error {
	return s.appendRecord("uploads.json", r)
}

// Uploads returns all upload records, oldest first.
func (s *Store) Uploads() ([]UploadRecord, error) {
	var records []UploadRecord
	err := s.loadRecords("uploads.json", &records)
	return records, err
}

// AddMonitorSession appends a monitor session record.
func (s *Store) AddMonitorSession(r MonitorSession) error {
	return s.appendRecord("monitor_sessions.json", r)
}

// MonitorSessions returns all monitor session records, oldest first.
func (s *Store) MonitorSessions() ([]MonitorSession, error) {
	var records []MonitorSession
	err := s.loadRecords("monitor_sessions.json", &records)
	return records, err
}

func (s *Store) appendRecord(filename string, record any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := s.historyDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	path := filepath.Join(dir, filename)

	// Read existing records
	var records []json.RawMessage
	if data, err := os.ReadFile(path); err == nil {
		json.Unmarshal(data, &records)
	}

	// Marshal and append new record
	raw, err := json.Marshal(record)
	if err != nil {
		return err
	}
	records = append(records, raw)

	// Write back
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (s *Store) loadRecords(filename string, dest any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.historyDir(), filename)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return json.Unmarshal(data, dest)
}

package store

import (
	"testing"
	"time"
)

func TestAddAndRetrieveUploads(t *testing.T) {
	tmp := t.TempDir()
	s := New(tmp)

	record := UploadRecord{
		Family:      "avr-mega",
		Port:        "COM5",
		Timestamp:   time.Now(),
		Success:     true,
		Duration:    "14.2s",
		SketchBytes: 422,
	}

	if err := s.AddUpload(record); err != nil {
		t.Fatalf("AddUpload failed: %v", err)
	}

	uploads, err := s.Uploads()
	if err != nil {
		t.Fatalf("Uploads failed: %v", err)
	}
	if len(uploads) != 1 {
		t.Fatalf("expected 1 upload, got %d", len(uploads))
	}
	if uploads[0].Port != "COM5" {
		t.Errorf("expected port=COM5, got=%s", uploads[0].Port)
	}
	if uploads[0].Family != "avr-mega" {
		t.Errorf("expected family=avr-mega, got=%s", uploads[0].Family)
	}
}

func TestAddMultipleRecords(t *testing.T) {
	tmp := t.TempDir()
	s := New(tmp)

	s.AddUpload(UploadRecord{Family: "avr-mega", Port: "COM5", Timestamp: time.Now(), Success: true, Duration: "5s"})
	s.AddUpload(UploadRecord{Family: "esp32", Port: "COM7", Timestamp: time.Now(), Success: false, Duration: "3s", Message: "compile failed"})
	s.AddMonitorSession(MonitorSession{Port: "COM5", BaudRate: 115200, StartedAt: time.Now(), Duration: "1m5s", Lines: 230})

	uploads, _ := s.Uploads()
	if len(uploads) != 2 {
		t.Errorf("expected 2 uploads, got %d", len(uploads))
	}
	// Oldest first.
	if len(uploads) == 2 && uploads[1].Message != "compile failed" {
		t.Errorf("expected failure message on second record, got=%q", uploads[1].Message)
	}

	sessions, _ := s.MonitorSessions()
	if len(sessions) != 1 {
		t.Errorf("expected 1 monitor session, got %d", len(sessions))
	}
}

func TestEmptyStore(t *testing.T) {
	tmp := t.TempDir()
	s := New(tmp)

	uploads, err := s.Uploads()
	if err != nil {
		t.Fatalf("Uploads on empty store failed: %v", err)
	}
	if len(uploads) != 0 {
		t.Errorf("expected 0 uploads, got %d", len(uploads))
	}
}

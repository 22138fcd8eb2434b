package store

import "time"

// UploadRecord captures one compile-and-flash run.
type UploadRecord struct {
	Family      string    `json:"family"`
	Port        string    `json:"port"`
	Timestamp   time.Time `json:"timestamp"`
	Success     bool      `json:"success"`
	Duration    string    `json:"duration"`
	SketchBytes int       `json:"sketch_bytes,omitempty"`
	Message     string    `json:"message,omitempty"`
}

// MonitorSession records that a monitor session happened: which port, at
// what rate, for how long. The received lines themselves are never
// persisted; they die with the session.
type MonitorSession struct {
	Port      string    `json:"port"`
	BaudRate  int       `json:"baud_rate"`
	StartedAt time.Time `json:"started_at"`
	Duration  string    `json:"duration"`
	Lines     int       `json:"lines,omitempty"`
}

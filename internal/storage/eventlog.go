package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/kborowski/pivot/internal/events"
)

// EventLogger persists bus events to a JSONL file per day.
type EventLogger struct {
	dir         string
	unsubscribe func()
}

// NewEventLogger subscribes to the bus and writes events under dir.
// Per-tick events are skipped — they are noise at sub-second cadences and
// redundant with mode.changed.
func NewEventLogger(dir string, bus *events.Bus) *EventLogger {
	el := &EventLogger{dir: dir}
	el.unsubscribe = bus.Subscribe(el.handleEvent)
	return el
}

// Close unsubscribes the logger from the event bus.
func (el *EventLogger) Close() {
	if el.unsubscribe != nil {
		el.unsubscribe()
	}
}

func (el *EventLogger) handleEvent(e events.Event) {
	if e.Type == events.EventModeTick {
		return
	}
	_ = el.writeEvent(e)
}

func (el *EventLogger) writeEvent(e events.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	path := filepath.Join(el.dir, e.Timestamp.UTC().Format("2006-01-02")+".jsonl")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write(data)
	return err
}

// ReadDay loads the events logged on a given day, oldest first.
func (el *EventLogger) ReadDay(day time.Time) ([]events.Event, error) {
	path := filepath.Join(el.dir, day.UTC().Format("2006-01-02")+".jsonl")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var out []events.Event
	for _, line := range splitLines(data) {
		var e events.Event
		if err := json.Unmarshal(line, &e); err != nil {
			continue // skip corrupted lines
		}
		out = append(out, e)
	}
	return out, nil
}

func splitLines(data []byte) [][]byte {
	var lines [][]byte
	start := 0
	for i, b := range data {
		if b == '\n' {
			if i > start {
				lines = append(lines, data[start:i])
			}
			start = i + 1
		}
	}
	if start < len(data) {
		lines = append(lines, data[start:])
	}
	return lines
}

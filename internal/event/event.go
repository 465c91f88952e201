// Package event implements burl's append-only JSONL event log (spec.md
// §4.8): one file per UTC day, one JSON object per line.
package event

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/burl-dev/burl/internal/burlerr"
	"github.com/burl-dev/burl/internal/fileutil"
)

// Action names recognized by the event log, per spec.md §4.8.
const (
	ActionClaim    = "claim"
	ActionSubmit   = "submit"
	ActionValidate = "validate"
	ActionApprove  = "approve"
	ActionReject   = "reject"
	ActionClean    = "clean"
)

// Event is one line of the event log.
type Event struct {
	TS      time.Time              `json:"ts"`
	Action  string                 `json:"action"`
	TaskID  string                 `json:"task_id,omitempty"`
	Actor   string                 `json:"actor"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func dayFile(eventsDir string, t time.Time) string {
	return filepath.Join(eventsDir, t.UTC().Format("2006-01-02")+".jsonl")
}

// Append writes one event to today's (UTC) log file, appending and
// fsyncing so a crash immediately after a successful call cannot lose the
// record.
func Append(eventsDir string, ev Event) error {
	if ev.TS.IsZero() {
		ev.TS = time.Now().UTC()
	}
	if err := fileutil.EnsureDir(eventsDir); err != nil {
		return burlerr.IO("creating events directory", err)
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return burlerr.IO("encoding event", err)
	}
	data = append(data, '\n')

	f, err := os.OpenFile(dayFile(eventsDir, ev.TS), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return burlerr.IO("opening event log", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return burlerr.IO("writing event", err)
	}
	return f.Sync()
}

// Stream reads all events from the log file for the given UTC date
// (YYYY-MM-DD), in insertion order. A missing file yields an empty slice.
func Stream(eventsDir, date string) ([]Event, error) {
	path := filepath.Join(eventsDir, date+".jsonl")
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, burlerr.IO("opening event log", err)
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var ev Event
		if err := json.Unmarshal(line, &ev); err != nil {
			return nil, fmt.Errorf("parsing event line in %s: %w", path, err)
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, burlerr.IO("reading event log", err)
	}
	return events, nil
}

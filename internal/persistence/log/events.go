package log

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"terrainview.dev/internal/protocol"
)

// Entry is one journaled update.
type Entry struct {
	TS     time.Time       `json:"ts"`
	Type   string          `json:"type"`
	Update json.RawMessage `json:"update"`
}

// EventLogger writes one JSONL entry per published update (compressed).
type EventLogger struct{ w *JSONLZstdWriter }

func NewEventLogger(dataDir string) *EventLogger {
	return &EventLogger{w: NewJSONLZstdWriter(filepath.Join(dataDir, "events"), "events")}
}

func (l *EventLogger) WriteUpdate(u protocol.Update) error {
	raw, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return l.w.Write(Entry{TS: time.Now().UTC(), Type: u.Kind(), Update: raw})
}

func (l *EventLogger) Close() error { return l.w.Close() }

// ReadFile streams the entries of one journal file through fn,
// stopping at the first error fn returns.
func ReadFile(path string, fn func(Entry) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	for sc.Scan() {
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return err
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return sc.Err()
}

// ListEventFiles returns the journal files under dir's events
// directory, oldest first (the hourly filename layout sorts
// chronologically).
func ListEventFiles(dataDir string) ([]string, error) {
	dir := filepath.Join(dataDir, "events")
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range ents {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jsonl.zst") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

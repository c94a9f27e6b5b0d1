package knowledge

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"
)

// historyFileLayout is the per-day history file name, one file per UTC day.
const historyFileLayout = "2006-01-02"

// historyPath returns the JSONL file for the UTC day of ts.
func (s *Store) historyPath(ts time.Time) string {
	return filepath.Join(s.HistoryDir(), ts.UTC().Format(historyFileLayout)+".jsonl")
}

// AppendEvent appends one event line to the current UTC day's history log.
//
// Appends are deliberately unlocked: a single O_APPEND write per event relies
// on OS append atomicity for short writes, and concurrent writers interleave
// at line granularity. Failure to append is logged and swallowed; history is
// non-critical and must never mask a caller's primary operation.
func (s *Store) AppendEvent(ev HistoryEvent) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	line, err := json.Marshal(ev)
	if err != nil {
		s.logger.Warn("failed to encode history event", zap.Error(err))
		return
	}

	if err := os.MkdirAll(s.HistoryDir(), 0o700); err != nil {
		s.logger.Warn("failed to create history directory", zap.Error(err))
		return
	}

	path := s.historyPath(ev.Timestamp)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		s.logger.Warn("failed to open history log", zap.String("path", path), zap.Error(err))
		return
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		s.logger.Warn("failed to append history event", zap.String("path", path), zap.Error(err))
	}
}

// ReadEvents returns all events logged on the UTC day of ts. A missing file
// yields an empty slice; unparsable lines are skipped, since concurrent
// appenders can in principle produce a torn line.
func (s *Store) ReadEvents(ts time.Time) ([]HistoryEvent, error) {
	f, err := os.Open(s.historyPath(ts))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open history log: %w", err)
	}
	defer f.Close()

	var events []HistoryEvent
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var ev HistoryEvent
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			s.logger.Warn("skipping unparsable history line", zap.Error(err))
			continue
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return events, fmt.Errorf("read history log: %w", err)
	}
	return events, nil
}

// ReadEventsRange returns events for each UTC day in [from, to], inclusive,
// in chronological order.
func (s *Store) ReadEventsRange(from, to time.Time) ([]HistoryEvent, error) {
	var all []HistoryEvent
	day := from.UTC().Truncate(24 * time.Hour)
	end := to.UTC().Truncate(24 * time.Hour)
	for !day.After(end) {
		events, err := s.ReadEvents(day)
		if err != nil {
			return all, err
		}
		all = append(all, events...)
		day = day.Add(24 * time.Hour)
	}
	return all, nil
}

// ListHistoryFiles returns the history log file names, sorted ascending by
// day.
func (s *Store) ListHistoryFiles() ([]string, error) {
	entries, err := os.ReadDir(s.HistoryDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read history directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".jsonl" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

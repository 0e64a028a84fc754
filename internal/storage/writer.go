package storage

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/salcido/reddibot/internal/domain"
)

// Journal appends tick events to an NDJSON file. Start is the only writer,
// so events from concurrent ticks never interleave mid-line.
type Journal struct {
	Path   string
	Logger *slog.Logger
}

// Start drains input until it is closed. Call it in its own goroutine
// after wg.Add(1).
func (j *Journal) Start(wg *sync.WaitGroup, input <-chan domain.Event) {
	defer wg.Done()

	log := j.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("op", "storage.Journal"), slog.String("path", j.Path))

	f, err := openAppend(j.Path)
	if err != nil {
		log.Error("journal_open_failed", slog.Any("error", err))
		// keep draining so senders never block on a dead journal
		for range input {
		}
		return
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for ev := range input {
		if err := enc.Encode(ev); err != nil {
			log.Warn("journal_write_failed", slog.String("kind", string(ev.Kind)), slog.Any("error", err))
		}
	}
}

func openAppend(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create journal dir: %w", err)
		}
	}
	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
}

// ReadEvents loads every decodable line of the journal. A missing file is
// an empty journal; corrupt lines are skipped.
func ReadEvents(path string) ([]domain.Event, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	var events []domain.Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var ev domain.Event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err == nil {
			events = append(events, ev)
		}
	}
	if err := scanner.Err(); err != nil {
		return events, fmt.Errorf("scan journal: %w", err)
	}
	return events, nil
}

// Package storage archives published snapshots as JSON lines in one file per
// UTC day. Finished days are gzip compressed.
package storage

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/saviobatista/flightwatch/internal/types"
)

const dayLayout = "2006-01-02"

// Archive appends snapshots to the current day's file
type Archive struct {
	outputDir string
	file      *os.File
	day       string
	now       func() time.Time
	mu        sync.Mutex
	stopChan  chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// New creates a new Archive writing into outputDir
func New(outputDir string) *Archive {
	return &Archive{
		outputDir: outputDir,
		now:       time.Now,
		stopChan:  make(chan struct{}),
	}
}

// FileName returns the archive file for a UTC day
func FileName(day time.Time) string {
	return fmt.Sprintf("snapshots_%s.jsonl", day.UTC().Format(dayLayout))
}

// Start creates the output directory, opens today's file and starts the
// midnight rotation
func (a *Archive) Start() error {
	if err := os.MkdirAll(a.outputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create archive directory: %w", err)
	}

	a.mu.Lock()
	err := a.openFile(a.now())
	a.mu.Unlock()
	if err != nil {
		return err
	}

	a.wg.Add(1)
	go a.rotationTimer()
	return nil
}

// Stop closes the current file and stops the rotation timer
func (a *Archive) Stop() error {
	a.stopOnce.Do(func() { close(a.stopChan) })
	a.wg.Wait()

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.file == nil {
		return nil
	}
	err := a.file.Close()
	a.file = nil
	return err
}

// PublishSnapshot appends snap as one JSON line
func (a *Archive) PublishSnapshot(ctx context.Context, snap *types.Snapshot) error {
	if snap == nil {
		return fmt.Errorf("snapshot is nil")
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return a.write(append(data, '\n'))
}

func (a *Archive) write(line []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	if a.file != nil && a.day != now.UTC().Format(dayLayout) {
		if err := a.rotate(now); err != nil {
			return err
		}
	}
	if a.file == nil {
		if err := a.openFile(now); err != nil {
			return err
		}
	}

	_, err := a.file.Write(line)
	return err
}

// rotationTimer handles daily rotation at midnight UTC
func (a *Archive) rotationTimer() {
	defer a.wg.Done()

	for {
		now := a.now().UTC()
		nextMidnight := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, time.UTC)

		timer := time.NewTimer(nextMidnight.Sub(now))
		select {
		case <-timer.C:
			a.mu.Lock()
			if err := a.rotate(a.now()); err != nil {
				log.Printf("Error during archive rotation: %v", err)
			}
			a.mu.Unlock()
		case <-a.stopChan:
			timer.Stop()
			return
		}
	}
}

// rotate closes the open file, compresses it and opens the file for now.
// Callers hold a.mu.
func (a *Archive) rotate(now time.Time) error {
	if a.file != nil {
		if a.day == now.UTC().Format(dayLayout) {
			return nil
		}
		name := a.file.Name()
		if err := a.file.Close(); err != nil {
			log.Printf("Warning: failed to close %s: %v", name, err)
		}
		a.file = nil
		if err := compressFile(name); err != nil {
			log.Printf("Warning: failed to compress %s: %v", name, err)
		}
	}
	return a.openFile(now)
}

// openFile opens the file for now's UTC day. Callers hold a.mu.
func (a *Archive) openFile(now time.Time) error {
	name := filepath.Join(a.outputDir, FileName(now))
	file, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}
	a.file = file
	a.day = now.UTC().Format(dayLayout)
	return nil
}

// compressFile writes path.gz and removes path
func compressFile(path string) error {
	source, err := os.Open(path)
	if err != nil {
		return err
	}
	defer source.Close()

	target, err := os.Create(path + ".gz")
	if err != nil {
		return err
	}
	defer target.Close()

	gzipWriter := gzip.NewWriter(target)
	if _, err := io.Copy(gzipWriter, source); err != nil {
		return err
	}
	if err := gzipWriter.Close(); err != nil {
		return err
	}
	if err := target.Close(); err != nil {
		return err
	}

	return os.Remove(path)
}

// ReadFile returns the snapshots stored in an archive file, plain or gzip
func ReadFile(path string) ([]*types.Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if filepath.Ext(path) == ".gz" {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip reader: %w", err)
		}
		defer gz.Close()
		r = gz
	}

	var snaps []*types.Snapshot
	dec := json.NewDecoder(r)
	for {
		var snap types.Snapshot
		if err := dec.Decode(&snap); err == io.EOF {
			break
		} else if err != nil {
			return snaps, fmt.Errorf("failed to decode snapshot: %w", err)
		}
		snaps = append(snaps, &snap)
	}
	return snaps, nil
}

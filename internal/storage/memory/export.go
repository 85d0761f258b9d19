// internal/storage/memory/export.go
package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	v1 "github.com/mazeflight/simulator/internal/storage/memory/export/v1"
	"github.com/mazeflight/simulator/pkg/core"
)

// exportJSON writes the flight data to a (optionally gzipped) JSON replay
// file. Caller must hold b.mu.
func (b *Backend) exportJSON() error {
	export := v1.Build(&v1.FlightData{
		Flight:    b.flight,
		Arena:     b.arena,
		States:    b.states,
		Crashes:   b.crashes,
		Sightings: b.sightings,
	})

	// Build filename
	flightName := strings.ReplaceAll(b.flight.FlightName, " ", "_")
	flightName = strings.ReplaceAll(flightName, ":", "_")
	timestamp := b.flight.StartTime.Format("20060102_150405")

	var filename string
	if b.cfg.CompressOutput {
		filename = fmt.Sprintf("%s_%s.json.gz", flightName, timestamp)
	} else {
		filename = fmt.Sprintf("%s_%s.json", flightName, timestamp)
	}

	outputPath := filepath.Join(b.cfg.OutputDir, filename)

	// Ensure output directory exists
	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	// Write file
	if b.cfg.CompressOutput {
		if err := b.writeGzipJSON(outputPath, export); err != nil {
			return err
		}
	} else {
		if err := b.writeJSON(outputPath, export); err != nil {
			return err
		}
	}

	b.lastExportPath = outputPath
	return nil
}

// GetExportedFilePath returns the path of the most recent replay export.
func (b *Backend) GetExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

// GetExportMetadata describes the most recent export for upload.
func (b *Backend) GetExportMetadata() core.UploadMetadata {
	b.mu.RLock()
	defer b.mu.RUnlock()

	meta := core.UploadMetadata{}
	if b.flight == nil {
		return meta
	}

	meta.FlightName = b.flight.FlightName
	meta.Tag = b.flight.Tag
	if b.arena != nil {
		meta.ArenaName = b.arena.Name
	}

	// Duration is the last capture tick scaled by the capture interval.
	var maxTick uint
	for _, s := range b.states {
		if s.CaptureTick > maxTick {
			maxTick = s.CaptureTick
		}
	}
	meta.FlightDuration = float64(maxTick) * float64(b.flight.CaptureInterval)

	return meta
}

func (b *Backend) writeJSON(path string, data v1.Export) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	return encoder.Encode(data)
}

func (b *Backend) writeGzipJSON(path string, data v1.Export) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gzWriter := gzip.NewWriter(f)
	defer gzWriter.Close()

	encoder := json.NewEncoder(gzWriter)
	return encoder.Encode(data)
}

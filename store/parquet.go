// Package store persists labelled self-play positions as parquet files and
// summarises them with DuckDB.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"

	"github.com/brensch/zeroclone/executor/convert"
)

const SchemaVersion = "training_row_v1"

// TrainingRow is one position from a finished game.
//
// State is the backend encoding packed as little-endian float32, with shape
// Shape. Label is the final outcome from the perspective of Turn, the player
// to move at this position. Move is the move played from here, -1 for the
// final position.
type TrainingRow struct {
	GameID string  `parquet:"game_id,dict"`
	Game   string  `parquet:"game,dict"`
	Ply    int32   `parquet:"ply"`
	Turn   int32   `parquet:"turn"`
	Shape  []int32 `parquet:"shape"`
	State  []byte  `parquet:"state"`
	Move   int32   `parquet:"move"`
	Label  float32 `parquet:"label"`
	Source string  `parquet:"source,dict"`
	Cycle  int32   `parquet:"cycle"`
}

// Floats decodes State, reusing dst when it is large enough.
func (r TrainingRow) Floats(dst []float32) ([]float32, error) {
	return convert.BytesToFloats(dst, r.State)
}

func writeOptions() []parquet.WriterOption {
	return []parquet.WriterOption{
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedBetterCompression}),
		parquet.SkipPageBounds("state"),
		parquet.KeyValueMetadata("schema", SchemaVersion),
	}
}

// WriteBatchParquetAtomic writes rows into outDir/tmp and then renames the
// file into outDir, so readers never see a partial file.
func WriteBatchParquetAtomic(outDir string, rows []TrainingRow) (string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	tmpDir := filepath.Join(outDir, "tmp")
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return "", fmt.Errorf("create tmp dir: %w", err)
	}

	name := fmt.Sprintf("batch_%d.parquet", time.Now().UnixNano())
	finalPath := filepath.Join(outDir, name)
	tmpPath := filepath.Join(tmpDir, name+".tmp")
	_ = os.Remove(tmpPath)

	if err := parquet.WriteFile(tmpPath, rows, writeOptions()...); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("write parquet: %w", err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("rename parquet: %w", err)
	}

	return finalPath, nil
}

// ReadRows loads every row of one parquet file.
func ReadRows(path string) ([]TrainingRow, error) {
	rows, err := parquet.ReadFile[TrainingRow](path)
	if err != nil {
		return nil, fmt.Errorf("read parquet %s: %w", path, err)
	}
	return rows, nil
}

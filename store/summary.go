package store

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2"
)

// Summary describes the games stored under a dataset directory.
type Summary struct {
	Rows        int64
	Games       int64
	Player0Wins int64
	Player1Wins int64
	Draws       int64
	AvgPlies    float64
}

func escapeSQLString(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// hasParquet reports whether any finished parquet file sits below root.
func hasParquet(root string) (bool, error) {
	found := false
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && d.Name() == "tmp" {
			return filepath.SkipDir
		}
		if !d.IsDir() && filepath.Ext(path) == ".parquet" {
			found = true
			return filepath.SkipAll
		}
		return nil
	})
	return found, err
}

// Summarize scans every parquet file below root, skipping tmp/.
func Summarize(ctx context.Context, root string) (Summary, error) {
	ok, err := hasParquet(root)
	if err != nil {
		return Summary{}, fmt.Errorf("scan %s: %w", root, err)
	}
	if !ok {
		return Summary{}, nil
	}

	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return Summary{}, fmt.Errorf("open duckdb: %w", err)
	}
	defer db.Close()

	glob := escapeSQLString(filepath.Join(root, "**", "*.parquet"))
	_, err = db.ExecContext(ctx, `CREATE OR REPLACE VIEW positions AS
		SELECT * FROM read_parquet(['`+glob+`'], filename=true, union_by_name=true)
		WHERE filename NOT LIKE '%/tmp/%'`)
	if err != nil {
		return Summary{}, fmt.Errorf("create view: %w", err)
	}

	var s Summary
	// Ply 0 is always player 0 to move, so its label is the game outcome.
	err = db.QueryRowContext(ctx, `
		WITH games AS (
			SELECT game_id,
				max(ply) AS plies,
				max(CASE WHEN ply = 0 THEN label END) AS outcome
			FROM positions
			GROUP BY game_id
		)
		SELECT
			(SELECT count(*) FROM positions),
			count(*),
			count(*) FILTER (WHERE outcome > 0),
			count(*) FILTER (WHERE outcome < 0),
			count(*) FILTER (WHERE outcome = 0),
			coalesce(avg(plies), 0)
		FROM games`).Scan(&s.Rows, &s.Games, &s.Player0Wins, &s.Player1Wins, &s.Draws, &s.AvgPlies)
	if err != nil {
		return Summary{}, fmt.Errorf("summarize: %w", err)
	}
	return s, nil
}

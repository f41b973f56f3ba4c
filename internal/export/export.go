// Package export writes pipeline outputs as Parquet, CSV or SQLite plus a
// JSON metadata sidecar describing the run.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"path/filepath"
	"sort"

	"github.com/google/uuid"

	"github.com/corridor-data/v2xtrace/internal/fsutil"
	"github.com/corridor-data/v2xtrace/internal/records"
	"github.com/corridor-data/v2xtrace/internal/security"
)

// Output formats accepted by NewExporter.
const (
	FormatParquet = "parquet"
	FormatCSV     = "csv"
	FormatSQLite  = "sqlite"
)

// Basenames of the three output tables. The format determines the extension,
// except SQLite where all tables share one database file.
const (
	trajectoriesName = "trajectories"
	messagesName     = "v2x_messages"
	fusedName        = "fused_data"

	sqliteFileName = "v2xtrace.db"
)

// Tables is everything a run exports.
type Tables struct {
	Trajectories []records.TrajectorySample
	Messages     []records.V2XMessage
	Fused        []records.FusedRecord
}

// Exporter writes a run's tables to the output directory in one format.
type Exporter struct {
	fsys   fsutil.FileSystem
	outDir string
	format string
}

// NewExporter validates the format, creates the output directory and
// returns an exporter for it.
func NewExporter(fsys fsutil.FileSystem, outDir, format string) (*Exporter, error) {
	switch format {
	case FormatParquet, FormatCSV, FormatSQLite:
	default:
		return nil, fmt.Errorf("unknown output format %q (want parquet, csv or sqlite)", format)
	}
	if err := fsys.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory %s: %w", outDir, err)
	}
	return &Exporter{fsys: fsys, outDir: outDir, format: format}, nil
}

// Export writes all three tables. Parquet files are written through the
// OS directly; CSV goes through the exporter's filesystem; SQLite lands
// in a single database file that also records the run's metadata row.
func (e *Exporter) Export(ctx context.Context, tables Tables, md records.RunMetadata) error {
	switch e.format {
	case FormatParquet:
		return e.exportParquet(tables)
	case FormatCSV:
		return e.exportCSV(tables)
	case FormatSQLite:
		return e.exportSQLite(ctx, tables, md)
	}
	return fmt.Errorf("unknown output format %q", e.format)
}

// WriteMetadata writes the run metadata sidecar as indented JSON. The
// pipeline calls this on failure paths too, so the sidecar always reflects
// how far a run got.
func (e *Exporter) WriteMetadata(path string, md records.RunMetadata) error {
	data, err := json.MarshalIndent(md, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding run metadata: %w", err)
	}
	data = append(data, '\n')
	if dir := filepath.Dir(path); dir != "." {
		if err := e.fsys.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating metadata directory %s: %w", dir, err)
		}
	}
	if err := e.fsys.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing run metadata %s: %w", path, err)
	}
	log.Printf("wrote run metadata to %s", path)
	return nil
}

// NewRunID returns a fresh identifier for one pipeline run.
func NewRunID() string {
	return uuid.NewString()
}

func (e *Exporter) tablePath(base, ext string) string {
	return filepath.Join(e.outDir, base+ext)
}

// messageTypeColumns returns the sorted set of message types seen across
// all fused records, plus one sanitized msg_count_<type> column token per
// type. Types come verbatim from recorded data, so the tokens go through
// security.SanitizeIdentifier and get a numeric suffix when two types
// collapse to the same token.
func messageTypeColumns(fused []records.FusedRecord) (types, tokens []string) {
	seen := map[string]bool{}
	for i := range fused {
		for typ := range fused[i].MsgCounts {
			seen[typ] = true
		}
	}
	types = make([]string, 0, len(seen))
	for typ := range seen {
		types = append(types, typ)
	}
	sort.Strings(types)

	tokens = make([]string, len(types))
	used := make(map[string]int, len(types))
	for i, typ := range types {
		tok := security.SanitizeIdentifier(typ)
		used[tok]++
		if n := used[tok]; n > 1 {
			tok = fmt.Sprintf("%s_%d", tok, n)
		}
		tokens[i] = tok
	}
	return types, tokens
}

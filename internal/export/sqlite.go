package export

import (
	"context"
	"fmt"
	"log"
	"path/filepath"

	"github.com/corridor-data/v2xtrace/internal/records"
	"github.com/corridor-data/v2xtrace/internal/tracedb"
)

func (e *Exporter) exportSQLite(ctx context.Context, tables Tables, md records.RunMetadata) error {
	path := filepath.Join(e.outDir, sqliteFileName)
	db, err := tracedb.Open(path)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.InsertRun(ctx, md); err != nil {
		return err
	}
	if err := db.InsertTrajectories(ctx, md.RunID, tables.Trajectories); err != nil {
		return err
	}
	if err := db.InsertMessages(ctx, md.RunID, tables.Messages); err != nil {
		return err
	}
	if err := db.InsertFused(ctx, md.RunID, tables.Fused); err != nil {
		return err
	}
	if err := db.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	log.Printf("wrote run %s (%d samples, %d messages, %d fused) to %s",
		md.RunID, len(tables.Trajectories), len(tables.Messages), len(tables.Fused), path)
	return nil
}

// Command adrimport is the batch import entry point: it drives an
// AIXM/ADR XML feed (and optionally a GeoJSON country-border feed)
// through the core's ingestion dispatcher and recompute engine, then
// promotes the temp partition to main.
//
// Flag parsing and log-path selection live here deliberately, kept out
// of the core's scope and split between flag.* bootstrapping and the
// packages it wires together.
package main

import (
	"flag"
	"fmt"
	"os"

	"adrcore/aerr"
	"adrcore/alog"
	"adrcore/border"
	"adrcore/config"
	"adrcore/ingest"
	"adrcore/recompute"
	"adrcore/store"
)

func main() {
	var (
		dbPath      = flag.String("db", "", "store database path (empty = in-memory)")
		aixmPath    = flag.String("aixm", "", "AIXM/ADR XML feed to ingest")
		bordersPath = flag.String("borders", "", "GeoJSON country-border feed to ingest")
		logDir      = flag.String("logdir", "", "log file directory")
		logLevel    = flag.String("loglevel", "info", "logging level: debug, info, warn, error")
		wal         = flag.Bool("wal", true, "enable WAL journal mode during bulk import")
	)
	flag.Parse()

	lg := alog.NewServer(*logLevel, *logDir)
	if err := run(*dbPath, *aixmPath, *bordersPath, *wal, lg); err != nil {
		lg.Errorf("adrimport: %v", err)
		os.Exit(1)
	}
}

func run(dbPath, aixmPath, bordersPath string, wal bool, lg *alog.Logger) error {
	st, err := store.Open(dbPath, lg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	if wal {
		if err := st.SetWAL(true); err != nil {
			return fmt.Errorf("set wal: %w", err)
		}
		defer st.SetWAL(false)
	}

	var el aerr.ErrorLogger

	if bordersPath != "" {
		f, err := os.Open(bordersPath)
		if err != nil {
			return fmt.Errorf("open borders feed: %w", err)
		}
		err = border.Load(f, st, &el)
		f.Close()
		if err != nil {
			return fmt.Errorf("load borders: %w", err)
		}
		lg.Infof("adrimport: loaded borders from %s", bordersPath)
	}

	if aixmPath != "" {
		f, err := os.Open(aixmPath)
		if err != nil {
			return fmt.Errorf("open aixm feed: %w", err)
		}
		d, err := ingest.NewDispatcher(st, lg, &el)
		if err != nil {
			f.Close()
			return fmt.Errorf("build dispatcher: %w", err)
		}
		err = d.Run(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("ingest aixm: %w", err)
		}
		lg.Infof("adrimport: ingested AIXM feed %s", aixmPath)
	}

	if el.HaveWarnings() {
		el.PrintWarnings(lg)
	}

	impCfg := config.DefaultImportConfig()
	engine := recompute.NewEngine(st, nil, &el)

	result, err := engine.Run(0)
	if err != nil {
		return fmt.Errorf("recompute: %w", err)
	}
	lg.Infof("adrimport: recompute modified=%d unmodified=%d", result.ModifiedCount, result.UnmodifiedCount)

	if impCfg.RequireZeroErrors && el.HaveWarnings() {
		lg.Warnf("adrimport: %d warnings accumulated; promotion proceeds (warnings are not structural errors)", el.Count())
	}

	uuids, err := st.AllTempUUIDs()
	if err != nil {
		return fmt.Errorf("enumerate temp partition: %w", err)
	}
	for _, u := range uuids {
		if err := st.PromoteTemp(u); err != nil {
			return fmt.Errorf("promote %s: %w", u, err)
		}
	}
	lg.Infof("adrimport: promoted %d objects from temp to main", len(uuids))
	return nil
}

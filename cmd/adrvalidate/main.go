// Command adrvalidate resolves an ICAO field-15 route against a store
// and reports whether it satisfies every active flight restriction.
// Flag parsing lives here, not in the core.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"adrcore/alog"
	"adrcore/flightplan"
	"adrcore/restriction"
	"adrcore/store"
)

func main() {
	var (
		dbPath      = flag.String("db", "", "store database path (empty = in-memory)")
		snapshot    = flag.Bool("snapshot", false, "unsupported: adrvalidate exits with an error when set")
		departure   = flag.String("dep", "", "departure ICAO code")
		destination = flag.String("dest", "", "destination ICAO code")
		route       = flag.String("route", "", "ICAO field 15 route string")
		logLevel    = flag.String("loglevel", "warn", "logging level: debug, info, warn, error")
	)
	flag.Parse()

	lg := alog.NewCLI(*logLevel, "")

	if err := run(*dbPath, *snapshot, *departure, *destination, *route, lg); err != nil {
		lg.Errorf("adrvalidate: %v", err)
		os.Exit(1)
	}
}

func run(dbPath string, useSnapshot bool, departure, destination, route string, lg *alog.Logger) error {
	if useSnapshot {
		return fmt.Errorf("validating directly against a packed snapshot is not yet wired into adrvalidate; open it via store.OpenSnapshot and adapt an Evaluator source")
	}

	st, err := store.Open(dbPath, lg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	resolver := flightplan.NewResolver(st)
	plan, err := resolver.Resolve(flightplan.Request{
		Departure:   strings.ToUpper(departure),
		Destination: strings.ToUpper(destination),
		Route:       route,
		EOBT:        time.Now(),
	})
	if err != nil {
		return fmt.Errorf("resolve plan: %w", err)
	}

	ev := restriction.NewEvaluator(st, lg)
	result, err := ev.Evaluate(plan, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}

	errs, warns, infos := result.Counts()
	fmt.Printf("plan %s -> %s via %q: ok=%v (errors=%d warnings=%d infos=%d)\n",
		departure, destination, route, result.OK, errs, warns, infos)
	for _, r := range result.Results {
		fmt.Printf("  FAIL rule=%s kind=%v reason=%s\n", r.RuleIdent, r.Kind, r.Reason)
	}
	for _, m := range result.Messages {
		if m.Level == restriction.LevelInfo {
			continue
		}
		fmt.Printf("  [%s] rule=%s: %s\n", m.Level, m.RuleIdent, m.Text)
	}

	if !result.OK {
		os.Exit(1)
	}
	return nil
}

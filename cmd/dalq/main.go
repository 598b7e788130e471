// dalq executes a logical query plan, given as JSON, against the internal
// store and prints the resulting page as JSON. Useful for poking at a live
// database without going through a calling service.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/thunder-source/live-tables-backend/internal/config"
	"github.com/thunder-source/live-tables-backend/internal/engine"
	"github.com/thunder-source/live-tables-backend/internal/logger"
	"github.com/thunder-source/live-tables-backend/internal/lqp"
	"github.com/thunder-source/live-tables-backend/internal/store"
)

func main() {
	tableID := flag.String("table", "", "Logical table id to query")
	planPath := flag.String("plan", "-", "Path to a JSON plan file, or - for stdin")
	flag.Parse()

	if *tableID == "" {
		fmt.Fprintln(os.Stderr, "dalq: -table is required")
		os.Exit(2)
	}

	cfg, err := config.Load("DAL")
	if err != nil {
		fmt.Fprintf(os.Stderr, "dalq: load config: %v\n", err)
		os.Exit(1)
	}
	logger.Init(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	plan, err := readPlan(*planPath, *tableID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dalq: read plan: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.NewDB(ctx, cfg.DB)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dalq: connect: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	eng := engine.New(db.Pool, store.NewMetadata(db), cfg.Query)
	result, err := eng.ExecuteQuery(ctx, *tableID, plan)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dalq: execute: %v\n", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		fmt.Fprintf(os.Stderr, "dalq: encode result: %v\n", err)
		os.Exit(1)
	}
}

// readPlan decodes the plan and pins its source to the requested internal
// table, so a stored plan cannot redirect the query elsewhere.
func readPlan(path, tableID string) (lqp.Plan, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return lqp.Plan{}, err
		}
		defer f.Close()
		r = f
	}

	var plan lqp.Plan
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&plan); err != nil {
		return lqp.Plan{}, err
	}
	plan.Source = lqp.Source{Kind: lqp.SourceInternal, TableID: tableID}
	return plan, nil
}

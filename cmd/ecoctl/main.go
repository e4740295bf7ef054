package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/erazemk/ecoconnect/internal/db"
	"github.com/erazemk/ecoconnect/internal/impact"
	"github.com/erazemk/ecoconnect/internal/model"
	"github.com/erazemk/ecoconnect/internal/store"
)

const usage = "Usage: ecoctl <init|estimate|stats>"

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "init":
		err = cmdInit(os.Args[2:])
	case "estimate":
		err = cmdEstimate(os.Args[2:])
	case "stats":
		err = cmdStats(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n%s\n", os.Args[1], usage)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func cmdInit(args []string) error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	dbPath := fs.String("db", "ecoconnect.sqlite3", "path to SQLite database file")
	fs.Parse(args)

	if _, err := os.Stat(*dbPath); err == nil {
		return fmt.Errorf("database file %s already exists", *dbPath)
	}

	database, err := db.Open(*dbPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer database.Close()

	if err := db.Migrate(database); err != nil {
		os.Remove(*dbPath)
		return fmt.Errorf("running migrations: %w", err)
	}
	if _, err := store.GetJWTSecret(context.Background(), database); err != nil {
		os.Remove(*dbPath)
		return fmt.Errorf("generating jwt secret: %w", err)
	}

	fmt.Printf("Database created: %s\n", *dbPath)
	fmt.Println("Schema initialized.")
	fmt.Println("Token signing secret generated.")
	return nil
}

func cmdEstimate(args []string) error {
	fs := flag.NewFlagSet("estimate", flag.ExitOnError)
	category := fs.String("category", model.CategoryOther, "item category")
	condition := fs.String("condition", model.ConditionGood, "item condition")
	title := fs.String("title", "", "item title, matched against keywords")
	asJSON := fs.Bool("json", false, "print the breakdown as JSON")
	fs.Parse(args)

	if !model.ValidCategory(*category) {
		return fmt.Errorf("invalid category %q", *category)
	}
	if !model.ValidCondition(*condition) {
		return fmt.Errorf("invalid condition %q", *condition)
	}

	rec := impact.Breakdown(*category, *condition, *title)
	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	}

	keyword := rec.Keyword
	if keyword == "" {
		keyword = "(category default)"
	}
	fmt.Printf("Base emission:    %.1f kg (%s)\n", rec.Base, keyword)
	fmt.Printf("Condition factor: %.2f\n", rec.Factor)
	fmt.Printf("Transport:        %.1f kg\n", rec.Transport)
	fmt.Printf("CO2 saved:        %.1f kg\n", rec.Net)
	return nil
}

func cmdStats(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	dbPath := fs.String("db", "ecoconnect.sqlite3", "path to SQLite database file")
	fs.Parse(args)

	if _, err := os.Stat(*dbPath); err != nil {
		return fmt.Errorf("database file %s: %w", *dbPath, err)
	}

	database, err := db.Open(*dbPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer database.Close()

	ctx := context.Background()
	items, err := store.ListAllItems(ctx, database)
	if err != nil {
		return err
	}
	users, err := store.CountUsers(ctx, database)
	if err != nil {
		return err
	}

	stats := impact.ComputeStats(items)
	eq := impact.EquivalentsFor(stats.TotalCO2)

	fmt.Printf("Users:            %d\n", users)
	fmt.Printf("Items donated:    %d of %d (%d%%)\n", stats.ItemCount, len(items), stats.ReuseRate)
	fmt.Printf("CO2 saved:        %d kg (%d kg per item)\n", stats.TotalCO2, stats.AveragePerItem)
	if stats.TopCategory != nil {
		fmt.Printf("Top category:     %s (%d kg)\n", stats.TopCategory.Name, stats.TopCategory.CO2)
	}

	names := make([]string, 0, len(stats.CO2ByCategory))
	for name := range stats.CO2ByCategory {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %-16s %.1f kg\n", name, stats.CO2ByCategory[name])
	}

	fmt.Printf("Equivalent to %d trees for a year, %d km by car, %d flights.\n", eq.Trees, eq.CarKm, eq.Flights)
	return nil
}

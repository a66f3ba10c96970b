package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/wkarimi/kodisha/adapters/sqlite"
	"github.com/wkarimi/kodisha/config"
	"github.com/wkarimi/kodisha/domain/plan"
)

var plansCmd = &cobra.Command{
	Use:   "plans",
	Short: "Manage the plan catalog",
	Long: `Inspect and seed the listing package catalog.

Examples:
  kodisha plans list
  kodisha plans seed`,
}

var plansListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active plans",
	RunE:  runPlansList,
}

var plansSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed plans from the config file into the database",
	RunE:  runPlansSeed,
}

func init() {
	rootCmd.AddCommand(plansCmd)
	plansCmd.AddCommand(plansListCmd)
	plansCmd.AddCommand(plansSeedCmd)
}

func openPlanStore() (*sqlite.PlanStore, *sqlite.DB, *config.Config, error) {
	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return nil, nil, nil, err
	}
	if cfg.Database.Driver != "sqlite" {
		return nil, nil, nil, fmt.Errorf("plans commands need database.driver=sqlite, got %q", cfg.Database.Driver)
	}

	db, err := sqlite.Open(cfg.Database.DSN)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, nil, nil, err
	}
	return sqlite.NewPlanStore(db), db, cfg, nil
}

func runPlansList(cmd *cobra.Command, args []string) error {
	store, db, _, err := openPlanStore()
	if err != nil {
		return err
	}
	defer db.Close()

	plans, err := store.ListActive(context.Background())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tPRICE\tDAYS\tLISTINGS\tFEATURED")
	for _, p := range plans {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\n",
			p.ID, p.Name, p.Price, p.DurationDays, p.TotalListings, p.TotalFeatured)
	}
	return w.Flush()
}

func runPlansSeed(cmd *cobra.Command, args []string) error {
	store, db, cfg, err := openPlanStore()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	created := 0
	for _, pc := range cfg.Plans {
		if _, err := store.Get(ctx, pc.ID); err == nil {
			continue
		}
		now := time.Now().UTC()
		p := plan.Plan{
			ID:            pc.ID,
			Name:          pc.Name,
			Price:         pc.Price,
			DurationDays:  pc.DurationDays,
			TotalListings: pc.TotalListings,
			TotalFeatured: pc.TotalFeatured,
			IsActive:      true,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := p.Validate(); err != nil {
			return fmt.Errorf("plan %s: %w", pc.ID, err)
		}
		if err := store.Create(ctx, p); err != nil {
			return fmt.Errorf("create plan %s: %w", pc.ID, err)
		}
		created++
	}

	fmt.Printf("Seeded %d plan(s)\n", created)
	return nil
}

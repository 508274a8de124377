package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mesoscale/lineage/internal/config"
	"github.com/mesoscale/lineage/internal/legacy"
	"github.com/mesoscale/lineage/internal/notify"
	"github.com/mesoscale/lineage/internal/objectstore"
	"github.com/mesoscale/lineage/internal/relocate"
	"github.com/mesoscale/lineage/internal/store/postgres"
	"github.com/mesoscale/lineage/pkg/types"
)

var version = "dev"

func main() {
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:     "lineage",
		Short:   "Granule and execution lineage tracker",
		Long:    "lineage tracks scientific data granules and the workflow executions\nthat produced them, and relocates granule files while keeping the\nrelational and legacy stores consistent.",
		Version: version,
	}

	root.AddCommand(
		newMigrateCmd(),
		newRelocateCmd(),
		newStatusCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openStore(ctx context.Context, dir string) (*postgres.Store, *types.ProjectConfig, error) {
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, nil, err
	}
	dsn, err := config.ResolveDSN(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	store, err := postgres.New(ctx, dsn, slog.Default())
	if err != nil {
		return nil, nil, err
	}
	return store, cfg, nil
}

func newMigrateCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the relational schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, _, err := openStore(ctx, dir)
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.Migrate(ctx); err != nil {
				return err
			}
			fmt.Println("schema up to date")
			return nil
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "project directory containing "+config.FileName)
	return cmd
}

func newRelocateCmd() *cobra.Command {
	var dir, rulesFile string
	cmd := &cobra.Command{
		Use:   "relocate <granule-id>",
		Short: "Move a granule's files per destination rules",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			data, err := os.ReadFile(rulesFile)
			if err != nil {
				return fmt.Errorf("reading rules: %w", err)
			}
			var rules []relocate.DestinationRule
			if err := yaml.Unmarshal(data, &rules); err != nil {
				return fmt.Errorf("parsing rules: %w", err)
			}

			store, cfg, err := openStore(ctx, dir)
			if err != nil {
				return err
			}
			defer store.Close()

			legacyStore, err := legacy.New(ctx, cfg.Legacy, slog.Default())
			if err != nil {
				return err
			}
			objects, err := objectstore.New(ctx, cfg.ObjectStore)
			if err != nil {
				return err
			}
			publisher, err := notify.New(ctx, cfg.Notify)
			if err != nil {
				return err
			}

			engine := relocate.New(objects, legacyStore, &relocateDB{store: store}, notifierOrNil(publisher), slog.Default())
			result, err := engine.Relocate(ctx, args[0], rules)
			if result != nil {
				out, _ := json.MarshalIndent(result, "", "  ")
				fmt.Println(string(out))
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "project directory containing "+config.FileName)
	cmd.Flags().StringVarP(&rulesFile, "rules", "r", "", "yaml file with destination rules")
	_ = cmd.MarkFlagRequired("rules")
	return cmd
}

func newStatusCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "status <granule-id> <collection-id>",
		Short: "Show a granule's lineage summary",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, _, err := openStore(ctx, dir)
			if err != nil {
				return err
			}
			defer store.Close()

			name, ver, err := types.ParseCollectionID(args[1])
			if err != nil {
				return err
			}
			cumulusID, found, err := postgres.GranuleCumulusID(ctx, store.Pool(), args[0], name, ver)
			if err != nil {
				return err
			}
			if !found {
				fmt.Println("granule not migrated to relational store")
				return nil
			}

			workflows, err := postgres.WorkflowNameIntersection(ctx, store.Pool(), []int64{cumulusID})
			if err != nil {
				return err
			}
			files, err := postgres.FilesForGranule(ctx, store.Pool(), cumulusID)
			if err != nil {
				return err
			}

			fmt.Printf("granule %s (cumulus_id %d)\n", args[0], cumulusID)
			fmt.Printf("workflows (most recent first): %v\n", workflows)
			for _, f := range files {
				fmt.Printf("  %s (%d bytes)\n", f.Location().URI(), f.Size)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "project directory containing "+config.FileName)
	return cmd
}

// relocateDB adapts the postgres store to the relocation engine's interface.
type relocateDB struct {
	store *postgres.Store
}

func (d *relocateDB) GranuleCumulusID(ctx context.Context, granuleID, name, version string) (int64, bool, error) {
	return postgres.GranuleCumulusID(ctx, d.store.Pool(), granuleID, name, version)
}

func (d *relocateDB) ReplaceGranuleFiles(ctx context.Context, granuleCumulusID int64, files []types.FileLocation) error {
	return d.store.ReplaceGranuleFiles(ctx, granuleCumulusID, files)
}

func notifierOrNil(p *notify.Publisher) relocate.Notifier {
	if p == nil {
		return nil
	}
	return p
}

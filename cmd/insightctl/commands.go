package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"insightpilot/backend/internal/demo"
	"insightpilot/backend/internal/ingest"
	"insightpilot/backend/internal/store"

	"github.com/spf13/cobra"
)

func newMigrateCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, s, err := openStore(root)
			if err != nil {
				return err
			}
			defer s.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "schema up to date (%s)\n", cfg.Database.Driver)
			return nil
		},
	}
}

func newImportCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Import a customer CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, s, err := openStore(root)
			if err != nil {
				return err
			}
			defer s.Close()

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			res, err := ingest.NewImporter(s, time.Now).Import(cmd.Context(), f.Name(), f)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
}

type demoOptions struct {
	size int
	seed int64
}

func (o *demoOptions) bind(cmd *cobra.Command) {
	cmd.Flags().IntVar(&o.size, "size", 0, "Number of customers (default: demo.size)")
	cmd.Flags().Int64Var(&o.seed, "seed", 0, "Random seed (default: demo.seed, 0 means time based)")
}

func (o *demoOptions) resolve(size int, seed int64) (int, int64) {
	if o.size > 0 {
		size = o.size
	}
	if o.seed != 0 {
		seed = o.seed
	}
	return size, seed
}

func newDemoCmd(root *rootOptions) *cobra.Command {
	var opts demoOptions
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Replace all customers with generated demo data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, s, err := openStore(root)
			if err != nil {
				return err
			}
			defer s.Close()

			size, seed := opts.resolve(cfg.Demo.Size, cfg.Demo.Seed)
			n, err := demo.NewLoader(s, time.Now, size, seed).Reload(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "loaded %d demo customers\n", n)
			return nil
		},
	}
	opts.bind(cmd)
	return cmd
}

func newGenerateCSVCmd(root *rootOptions) *cobra.Command {
	var opts demoOptions
	var out string
	cmd := &cobra.Command{
		Use:   "generate-csv",
		Short: "Write generated demo customers as an importable CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}
			size, seed := opts.resolve(cfg.Demo.Size, cfg.Demo.Seed)
			now := time.Now()
			if seed == 0 {
				seed = now.UnixNano()
			}
			rows := demo.Generate(size, now, seed)

			w := cmd.OutOrStdout()
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			if err := demo.WriteCSV(w, rows); err != nil {
				return err
			}
			if out != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d rows to %s\n", len(rows), out)
			}
			return nil
		},
	}
	opts.bind(cmd)
	cmd.Flags().StringVar(&out, "out", "", "Output file (default: stdout)")
	return cmd
}

func newCountsCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "counts",
		Short: "Show the customer total and the latest updated rows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, s, err := openStore(root)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx := cmd.Context()
			total, err := s.CountCustomers(ctx, store.CustomerFilter{})
			if err != nil {
				return err
			}
			latest, err := s.LatestCustomers(ctx, 5)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "customers: %d\n", total)
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CODE\tLAST VISIT\tSPENT\tVISITS\tMEMBERSHIP")
			for _, c := range latest {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n",
					c.CustomerCode, c.LastVisit().Format("2006-01-02"), c.TotalSpent, c.VisitCount, c.MembershipType)
			}
			return tw.Flush()
		},
	}
}

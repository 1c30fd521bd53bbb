// Public domain.

// Command vacuumscan screens sequences of deep-space imaging frames
// for faint residual signals not attributable to cataloged sources.
package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/soniakeys/exit"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/skysift/vacuumscan/catalog"
	"github.com/skysift/vacuumscan/config"
	"github.com/skysift/vacuumscan/internal/pipeline"
)

const versionString = "vacuumscan version 0.1 Go source."
const copyrightString = "Public domain."

func main() {
	defer exit.Handler()
	if err := rootCmd().Execute(); err != nil {
		exit.Log(err)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "vacuumscan",
		Short:         "screen imaging frames for uncataloged residual signals",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(runCmd(), mkcatCmd(), versionCmd())
	return root
}

func runCmd() *cobra.Command {
	var (
		cfgPath string
		catPath string
		verbose bool
	)
	cmd := &cobra.Command{
		Use:   "run <manifest>",
		Short: "run the anomaly-detection pipeline over a frame manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger(verbose)
			if err != nil {
				return err
			}
			defer log.Sync()

			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			cat := &catalog.Catalog{}
			if catPath != "" {
				if cat, err = catalog.ReadFile(catPath); err != nil {
					return err
				}
			}
			regions, err := readManifest(args[0])
			if err != nil {
				return err
			}

			p, err := pipeline.New(cfg, cat, log)
			if err != nil {
				return err
			}
			report, err := p.Run(cmd.Context(), regions)
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), report)
			return nil
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "YAML configuration file")
	cmd.Flags().StringVarP(&catPath, "catalog", "m", "", "gob catalog file (see mkcat)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	return cmd
}

func mkcatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mkcat <entries.json> <catalog.gob>",
		Short: "build a gob catalog file from JSON source entries",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := readCatalogJSON(args[0])
			if err != nil {
				return err
			}
			if err := cat.WriteFile(args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d entries written to %s\n",
				len(cat.Entries), args[1])
			return nil
		},
	}
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "display version and copyright",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), versionString)
			fmt.Fprintln(cmd.OutOrStdout(), copyrightString)
		},
	}
}

func newLogger(verbose bool) (*zap.Logger, error) {
	c := zap.NewProductionConfig()
	c.OutputPaths = []string{"stderr"}
	if verbose {
		c.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		c.Encoding = "console"
	}
	return c.Build()
}

func printReport(w io.Writer, r *pipeline.Report) {
	fmt.Fprintln(w, versionString)
	fmt.Fprintf(w, "run %s", r.Stamp.RunID)
	if r.Stamp.Attribution != "" {
		fmt.Fprintf(w, "  attribution %s-%d",
			r.Stamp.Attribution, r.Stamp.Generated.Year())
	}
	fmt.Fprintln(w)

	if len(r.Candidates) == 0 {
		fmt.Fprintln(w, "no candidates")
	} else {
		tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tClass\tRA\tDec\tConf\tPairs\tSpan\tPromising")
		for _, c := range r.Candidates {
			promising := ""
			if c.Promising {
				promising = "yes"
			}
			fmt.Fprintf(tw, "%s\t%s\t%9.5f\t%+9.5f\t%6.2f\t%d\t%s\t%s\n",
				c.ID, c.Class, c.Pos.RADeg(), c.Pos.DecDeg(),
				c.Confidence, c.EpochPairs, c.Span(), promising)
		}
		tw.Flush()
	}

	for _, s := range r.Skipped {
		fmt.Fprintf(w, "skipped %s: %s: %s\n", s.Region, s.Kind, s.Reason)
	}
}

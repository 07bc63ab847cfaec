package cli

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/devicedetect/pkg/cache"
	"github.com/dmitrymomot/devicedetect/pkg/dataset"
	"github.com/dmitrymomot/devicedetect/pkg/detection"
)

func newInfoCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Describe the dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withProvider(cmd, func(_ context.Context, p *detection.Provider) error {
				ds := p.DataSet()
				info := ds.Info()

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 1, ' ', 0)
				fmt.Fprintf(tw, "name:\t%s\n", info.Name)
				fmt.Fprintf(tw, "source:\t%s\n", ds.Name())
				fmt.Fprintf(tw, "version:\t%s\n", info.Version)
				fmt.Fprintf(tw, "published:\t%s\n", info.Published.Format(time.DateOnly))
				fmt.Fprintf(tw, "next update:\t%s\n", info.NextUpdate.Format(time.DateOnly))
				fmt.Fprintf(tw, "mode:\t%s\n", info.Mode)
				fmt.Fprintf(tw, "http headers:\t%s\n", strings.Join(ds.HTTPHeaders(), ", "))
				fmt.Fprintf(tw, "properties:\t%d\n", info.Properties)
				fmt.Fprintf(tw, "values:\t%d\n", info.Values)
				fmt.Fprintf(tw, "profiles:\t%d\n", info.Profiles)
				fmt.Fprintf(tw, "signatures:\t%d\n", info.Signatures)
				fmt.Fprintf(tw, "nodes:\t%d\n", info.Nodes)
				fmt.Fprintln(tw, "components:")
				for _, c := range ds.Components() {
					fmt.Fprintf(tw, "  %s:\t%d profiles, %d properties\n", c.Name, c.ProfileCount(), len(c.PropertyIndices()))
				}
				if err := tw.Flush(); err != nil {
					return err
				}
				return printCacheStats(cmd, ds)
			})
		},
	}
}

func printCacheStats(cmd *cobra.Command, ds *dataset.Dataset) error {
	stats := ds.CacheStats()
	if len(stats) == 0 {
		return nil
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "cache\tsize\thits\tmisses\tevictions\thit ratio")
	for _, name := range slices.Sorted(maps.Keys(stats)) {
		s := stats[name]
		fmt.Fprintf(tw, "%s\t%d/%d\t%d\t%d\t%d\t%s\n",
			name, s.Size, s.Capacity, s.Hits, s.Misses, s.Evictions, ratio(s))
	}
	return tw.Flush()
}

func ratio(s cache.Snapshot) string {
	if s.Hits+s.Misses == 0 {
		return "-"
	}
	return fmt.Sprintf("%.1f%%", s.HitRatio()*100)
}

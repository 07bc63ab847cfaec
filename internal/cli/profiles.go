package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/devicedetect/pkg/dataset"
	"github.com/dmitrymomot/devicedetect/pkg/detection"
)

func newProfilesCommand(a *app) *cobra.Command {
	var (
		component string
		values    bool
	)
	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "List profiles by component",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withProvider(cmd, func(_ context.Context, p *detection.Provider) error {
				ds := p.DataSet()
				out := cmd.OutOrStdout()
				for _, c := range ds.Components() {
					if component != "" && !strings.EqualFold(component, c.Name) {
						continue
					}
					profiles, err := ds.ComponentProfiles(c)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "%s (%d)\n", c.Name, len(profiles))
					for _, prof := range profiles {
						if err := printProfile(out, ds, prof, values); err != nil {
							return err
						}
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&component, "component", "c", "", "Only list profiles of this component")
	cmd.Flags().BoolVar(&values, "values", false, "Print property values of each profile")
	return cmd
}

func printProfile(out io.Writer, ds *dataset.Dataset, prof *dataset.Profile, values bool) error {
	fmt.Fprintf(out, "  %d\t%d signatures\n", prof.ID, len(prof.SignatureIndices))
	if !values {
		return nil
	}
	pvs, err := ds.ProfileValues(prof)
	if err != nil {
		return err
	}
	for _, pv := range pvs {
		fmt.Fprintf(out, "    %s: %s\n", pv.Property, strings.Join(pv.Values, ", "))
	}
	return nil
}

package cli

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/devicedetect/pkg/detection"
)

type outputFlags struct {
	properties []string
	json       bool
}

func (o *outputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVarP(&o.properties, "property", "p", nil, "Properties to print (default: all with values)")
	cmd.Flags().BoolVar(&o.json, "json", false, "Print one JSON object per match")
}

func newMatchCommand(a *app) *cobra.Command {
	var out outputFlags
	cmd := &cobra.Command{
		Use:   "match [user-agent...]",
		Short: "Match User-Agents",
		Long:  "Match each User-Agent argument, or each line of stdin when no argument is given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			uas, err := inputs(args, cmd.InOrStdin())
			if err != nil {
				return err
			}
			return a.withProvider(cmd, func(ctx context.Context, p *detection.Provider) error {
				for _, ua := range uas {
					m, err := p.Match(ctx, ua)
					if err != nil {
						return err
					}
					if err := out.print(cmd.OutOrStdout(), m); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	out.register(cmd)
	return cmd
}

func newHeadersCommand(a *app) *cobra.Command {
	var out outputFlags
	cmd := &cobra.Command{
		Use:   "headers name:value...",
		Short: "Match a set of HTTP headers",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			headers, err := parseHeaders(args)
			if err != nil {
				return err
			}
			return a.withProvider(cmd, func(ctx context.Context, p *detection.Provider) error {
				m, err := p.MatchHeaderMap(ctx, headers)
				if err != nil {
					return err
				}
				return out.print(cmd.OutOrStdout(), m)
			})
		},
	}
	out.register(cmd)
	return cmd
}

func parseHeaders(args []string) (map[string]string, error) {
	headers := make(map[string]string, len(args))
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("header %q is not in name:value form", arg)
		}
		headers[name] = strings.TrimSpace(value)
	}
	return headers, nil
}

func newDeviceCommand(a *app) *cobra.Command {
	var (
		out    outputFlags
		hexArg bool
	)
	cmd := &cobra.Command{
		Use:   "device device-id...",
		Short: "Resolve device-ids",
		Long: `Resolve device-ids such as "10-21" to their profiles. With --hex the
arguments are hex-encoded big-endian byte arrays, e.g. 0000000a00000015.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withProvider(cmd, func(_ context.Context, p *detection.Provider) error {
				for _, arg := range args {
					var (
						m   *detection.Match
						err error
					)
					if hexArg {
						b, decErr := hex.DecodeString(arg)
						if decErr != nil {
							return fmt.Errorf("%w: %v", detection.ErrInvalidDeviceID, decErr)
						}
						m, err = p.MatchDeviceIDBytes(b)
					} else {
						m, err = p.MatchDeviceIDString(arg)
					}
					if err != nil {
						return err
					}
					if err := out.print(cmd.OutOrStdout(), m); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&hexArg, "hex", false, "Arguments are hex-encoded byte arrays")
	out.register(cmd)
	return cmd
}

type matchReport struct {
	UserAgent    string              `json:"user_agent,omitempty"`
	DeviceID     string              `json:"device_id"`
	DeviceIDHex  string              `json:"device_id_hex"`
	Method       string              `json:"method"`
	Difference   int                 `json:"difference"`
	NodesMatched int                 `json:"nodes_matched"`
	ElapsedNS    int64               `json:"elapsed_ns"`
	Properties   map[string][]string `json:"properties"`
	order        []string
}

func (o *outputFlags) report(m *detection.Match) (matchReport, error) {
	r := matchReport{
		UserAgent:    m.UserAgent(),
		DeviceID:     m.DeviceID(),
		DeviceIDHex:  hex.EncodeToString(m.DeviceIDAsByteArray()),
		Method:       m.Method().String(),
		Difference:   m.Difference(),
		NodesMatched: m.NodesMatched(),
		ElapsedNS:    m.Elapsed().Nanoseconds(),
		Properties:   make(map[string][]string),
	}

	names := o.properties
	if len(names) == 0 {
		for _, p := range m.DataSet().Properties() {
			names = append(names, p.Name)
		}
	}
	for _, name := range names {
		vs, err := m.Values(name)
		if err != nil {
			return r, err
		}
		if len(vs) == 0 && len(o.properties) == 0 {
			continue
		}
		r.Properties[name] = vs.Strings()
		r.order = append(r.order, name)
	}
	return r, nil
}

func (o *outputFlags) print(w io.Writer, m *detection.Match) error {
	r, err := o.report(m)
	if err != nil {
		return err
	}
	if o.json {
		return json.NewEncoder(w).Encode(r)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 1, ' ', 0)
	if r.UserAgent != "" {
		fmt.Fprintf(tw, "user-agent:\t%s\n", r.UserAgent)
	}
	fmt.Fprintf(tw, "device-id:\t%s\n", r.DeviceID)
	fmt.Fprintf(tw, "method:\t%s (difference %d, %d nodes)\n", r.Method, r.Difference, r.NodesMatched)
	for _, name := range r.order {
		fmt.Fprintf(tw, "  %s:\t%s\n", name, strings.Join(r.Properties[name], ", "))
	}
	fmt.Fprintln(tw)
	return tw.Flush()
}

package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/devicedetect/pkg/config"
	"github.com/dmitrymomot/devicedetect/pkg/detection"
	"github.com/dmitrymomot/devicedetect/pkg/logger"
)

// workerKey carries the benchmark worker index in contexts passed to the
// provider, so debug logs can tell workers apart.
type workerKey struct{}

type app struct {
	envFiles []string
	dataFile string
	mode     string
}

// NewRootCommand returns the devicedetect command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "devicedetect",
		Short: "Resolve User-Agents and HTTP headers to device profiles",
		Long: `devicedetect matches User-Agents, HTTP headers and device-ids against a
device detection data file and prints the resolved profiles.

The dataset and caches are configured with DEVICEDETECT_* environment
variables (or a .env file). --data and --mode override the environment.

Examples:
  devicedetect match --data devices.dat "Mozilla/5.0 (Linux; Android 10; Pixel 4) ..."
  devicedetect headers --data devices.dat "User-Agent: ..." "Device-Stock-UA: ..."
  devicedetect device --data devices.dat 15364-21460-53251-0
  devicedetect benchmark --data devices.dat --mode stream --file uas.txt --workers 8`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringSliceVar(&a.envFiles, "env-file", nil, "Env files to load (default: ./.env when present)")
	root.PersistentFlags().StringVarP(&a.dataFile, "data", "d", "", "Dataset file, overrides DEVICEDETECT_DATA_FILE")
	root.PersistentFlags().StringVarP(&a.mode, "mode", "m", "", "Dataset mode: memory or stream, overrides DEVICEDETECT_MODE")

	root.AddCommand(
		newMatchCommand(a),
		newHeadersCommand(a),
		newDeviceCommand(a),
		newInfoCommand(a),
		newProfilesCommand(a),
		newBenchmarkCommand(a),
	)
	return root
}

// Execute runs the command tree and exits non-zero on failure.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (a *app) config() (detection.Config, error) {
	opts := []config.Option{config.WithPrefix(detection.EnvPrefix)}
	if len(a.envFiles) > 0 {
		opts = append(opts, config.WithEnvFiles(a.envFiles...))
	}

	var cfg detection.Config
	if err := config.Load(&cfg, opts...); err != nil {
		return cfg, err
	}
	if a.dataFile != "" {
		cfg.DataFile = a.dataFile
		cfg.S3 = detection.S3Config{}
	}
	if a.mode != "" {
		cfg.Mode = a.mode
	}
	return cfg, cfg.Validate()
}

// withProvider opens a provider for the duration of fn. adjust runs on the
// loaded config before the provider is built.
func (a *app) withProvider(cmd *cobra.Command, fn func(ctx context.Context, p *detection.Provider) error, adjust ...func(*detection.Config)) (err error) {
	cfg, err := a.config()
	if err != nil {
		return err
	}
	for _, f := range adjust {
		f(&cfg)
	}

	log := cfg.Logger(logger.WithContextValue("worker", workerKey{}))
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	p, err := detection.New(ctx, cfg, detection.WithLogger(log))
	if err != nil {
		return err
	}
	defer func() {
		if cerr := p.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(ctx, p)
}

// inputs returns args, or the non-empty lines of r when args is empty.
func inputs(args []string, r io.Reader) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	return readLines(r)
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, sc.Err()
}

// Package cmd implements the burst2safe command line interface.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/asfadmin/burst2safe/pkg/convert"
	"github.com/asfadmin/burst2safe/pkg/download"
	"github.com/asfadmin/burst2safe/pkg/logging"
)

var (
	// Version information set by main.
	Version = "dev"
	// Commit is the git commit hash.
	Commit = "unknown"
	// Date is the build date.
	Date = "unknown"

	verbose bool
	quiet   bool

	orbit            int
	bbox             []float64
	pols             []string
	swaths           []string
	mode             string
	minBursts        int
	useRelativeOrbit bool
	startDate        string
	endDate          string
	keepFiles        bool
	workDir          string
)

const dateLayout = "2006-01-02"

// rootCmd converts burst SLCs to a SAFE product when invoked directly.
var rootCmd = &cobra.Command{
	Use:   "burst2safe [granules...]",
	Short: "Convert ASF burst SLCs to the ESA SAFE format",
	Long: `Convert a set of ASF Sentinel-1 burst SLCs to the ESA SAFE format.

You can either provide a list of burst granule names, or define a burst group
by providing the orbit number and a bounding box, optionally restricted by
polarization and swath.`,
	Args: cobra.ArbitraryArgs,
	RunE: runConvert,
}

// Execute runs the root command with signal-aware cancellation.
func Execute(version, commit, date string) {
	Version = version
	Commit = commit
	Date = date

	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "only log warnings and errors")

	rootCmd.Flags().IntVar(&orbit, "orbit", 0, "orbit number of the burst group")
	rootCmd.Flags().Float64SliceVar(&bbox, "bbox", nil, "bounding box of the burst group (W S E N in lon/lat)")
	rootCmd.Flags().StringSliceVar(&pols, "pols", nil, "polarizations to include (e.g. VV,VH)")
	rootCmd.Flags().StringSliceVar(&swaths, "swaths", nil, "swaths to include (e.g. IW1,IW2)")
	rootCmd.Flags().StringVar(&mode, "mode", "IW", "acquisition mode (IW or EW)")
	rootCmd.Flags().IntVar(&minBursts, "min-bursts", 1, "minimum number of bursts per swath")
	rootCmd.Flags().BoolVar(&useRelativeOrbit, "relative-orbit", false, "treat --orbit as a relative orbit number")
	rootCmd.Flags().StringVar(&startDate, "start-date", "", "start date for relative orbit search (YYYY-MM-DD)")
	rootCmd.Flags().StringVar(&endDate, "end-date", "", "end date for relative orbit search (YYYY-MM-DD)")
	rootCmd.Flags().BoolVar(&keepFiles, "keep-files", false, "keep the downloaded input files")
	rootCmd.Flags().StringVar(&workDir, "work-dir", "", "directory to create the SAFE in (default: current directory)")

	if err := viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose")); err != nil {
		panic(fmt.Sprintf("failed to bind verbose flag: %v", err))
	}
	if err := viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet")); err != nil {
		panic(fmt.Sprintf("failed to bind quiet flag: %v", err))
	}
}

// initConfig loads .env files and environment variables.
func initConfig() {
	loadEnvFiles()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	if err := viper.BindEnv(download.TokenEnvVar); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to bind %s: %v\n", download.TokenEnvVar, err)
	}

	configureLogging()
}

// loadEnvFiles loads .env files in order of precedence; .env.local overrides
// .env.
func loadEnvFiles() {
	for _, envFile := range []string{".env", ".env.local"} {
		if err := godotenv.Load(envFile); err == nil && verbose {
			fmt.Fprintf(os.Stderr, "loaded %s\n", envFile)
		}
	}
}

// configureLogging sets the default logger level from flags and environment.
func configureLogging() {
	level := zerolog.InfoLevel
	if verbose || viper.GetBool("verbose") {
		level = zerolog.DebugLevel
	}
	if quiet || viper.GetBool("quiet") {
		level = zerolog.WarnLevel
	}
	if envLevel := os.Getenv("LOG_LEVEL"); envLevel != "" {
		if parsed, err := zerolog.ParseLevel(envLevel); err == nil {
			level = parsed
		}
	}
	logging.SetDefault(logging.New(os.Stderr).Level(level))
}

// runConvert executes the conversion pipeline.
func runConvert(cmd *cobra.Command, args []string) error {
	opts := convert.Options{
		Granules:         args,
		Orbit:            orbit,
		BBox:             bbox,
		Polarizations:    upperAll(pols),
		Swaths:           upperAll(swaths),
		Mode:             strings.ToUpper(mode),
		MinBursts:        minBursts,
		UseRelativeOrbit: useRelativeOrbit,
		KeepFiles:        keepFiles,
		WorkDir:          workDir,
	}

	var err error
	if opts.StartDate, err = parseDate(startDate); err != nil {
		return err
	}
	if opts.EndDate, err = parseDate(endDate); err != nil {
		return err
	}

	safePath, err := convert.Run(cmd.Context(), opts)
	if err != nil {
		logging.Err(err).Msg("conversion failed")
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), safePath)
	return nil
}

func parseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	parsed, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", value)
	}
	return parsed, nil
}

func upperAll(values []string) []string {
	out := make([]string, len(values))
	for i, value := range values {
		out[i] = strings.ToUpper(value)
	}
	return out
}

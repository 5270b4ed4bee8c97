package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/onrik/logrus/filename"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tychodb/tycho/build"
	"github.com/tychodb/tycho/catalog"
	"github.com/tychodb/tycho/db"
	"github.com/tychodb/tycho/domain"
)

var (
	ConfigFile string
	DBFile     = build.DefaultStateDBFile
	OutDir     = build.DefaultOutDir
	Quiet      bool
	Verbose    bool

	StarsCSVFile   string
	PlanetsCSVFile string
	SourceVersion  string

	FuzzyMatching     bool
	ProximityGrouping bool
	Workers           int
)

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().BoolVarP(&Quiet, "quiet", "q", false, "Activate quiet log output")
	rootCmd.PersistentFlags().BoolVarP(&Verbose, "verbose", "v", false, "Activate verbose log output")
	rootCmd.PersistentFlags().StringVarP(&ConfigFile, "config", "c", "", "Config file (default .tycho.yaml)")
	rootCmd.PersistentFlags().StringVarP(&DBFile, "state-db", "b", DBFile, "Path to BoltDB state-store file")
	rootCmd.PersistentFlags().StringVarP(&OutDir, "out", "o", OutDir, "Directory holding build outputs and the current pointer")

	buildCmd.Flags().StringVarP(&StarsCSVFile, "stars", "s", "", "Path to the raw stars CSV")
	buildCmd.Flags().StringVarP(&PlanetsCSVFile, "planets", "p", "", "Path to the raw planets CSV")
	buildCmd.Flags().StringVarP(&SourceVersion, "source-version", "V", "", "Source catalog version tag for the build id")
	buildCmd.Flags().BoolVarP(&FuzzyMatching, "fuzzy", "f", false, "Activate the fuzzy host-matching tier")
	buildCmd.Flags().BoolVarP(&ProximityGrouping, "proximity", "P", true, "Activate proximity-based system grouping")
	buildCmd.Flags().IntVarP(&Workers, "workers", "w", 0, "Worker pool size for per-row stages (<=0 means GOMAXPROCS)")

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(reportsCmd)
	rootCmd.AddCommand(currentCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

var rootCmd = &cobra.Command{
	Use:   "tycho",
	Short: "Astronomical catalog ingestion and build pipeline",
	Long:  "Tycho ingests raw star and exoplanet catalogs and produces versioned, immutable, queryable dataset builds",
	PreRun: func(_ *cobra.Command, _ []string) {
		initLogging()
	},
	Run: func(cmd *cobra.Command, args []string) {
		log.Info("See -h/--help for usage information")
	},
}

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Run one complete build",
	Long:  "Ingest the raw catalogs, cluster, match, validate, and atomically promote a new dataset build",
	PreRun: func(_ *cobra.Command, _ []string) {
		initLogging()
	},
	Run: func(cmd *cobra.Command, args []string) {
		if StarsCSVFile == "" {
			log.Fatal("main: --stars is required")
		}
		if SourceVersion == "" {
			log.Fatal("main: --source-version is required")
		}

		starRows, err := readStarRows(StarsCSVFile)
		if err != nil {
			log.Fatalf("main: %s", err)
		}
		var planetRows []*catalog.RawPlanetRow
		if PlanetsCSVFile != "" {
			if planetRows, err = readPlanetRows(PlanetsCSVFile); err != nil {
				log.Fatalf("main: %s", err)
			}
		}

		o := build.NewOrchestrator(buildConfig())
		result, err := o.Run(starRows, planetRows, time.Now())
		if err != nil {
			log.Fatalf("main: %s", err)
		}
		log.WithField("build-id", result.BuildID.String()).WithField("dir", result.Dir).Info("Build finished")
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Per-build summary statistics",
	Long:  "Render counts, match rate, and distribution quantiles for every recorded build",
	PreRun: func(_ *cobra.Command, _ []string) {
		initLogging()
	},
	Run: func(cmd *cobra.Command, args []string) {
		if err := db.WithClient(db.NewBoltBackend(db.NewBoltConfig(DBFile)), func(dbClient db.Client) error {
			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Build", "Promoted", "Systems", "Stars", "Planets", "Match rate"})
			n := 0
			if err := dbClient.EachSummary(func(summary *domain.BuildSummary) {
				table.Append([]string{
					summary.BuildID,
					summary.PromotedAt.Format(time.RFC3339),
					fmt.Sprintf("%v", summary.SystemCount),
					fmt.Sprintf("%v", summary.StarCount),
					fmt.Sprintf("%v", summary.PlanetCount),
					fmt.Sprintf("%.3f", summary.MatchRate),
				})
				n++
			}); err != nil {
				return err
			}
			if n == 0 {
				log.Info("No builds recorded yet")
				return nil
			}
			table.Render()
			return nil
		}); err != nil {
			log.Fatalf("main: %s", err)
		}
	},
}

var reportsCmd = &cobra.Command{
	Use:   "reports [build-dir]",
	Short: "Print a build's QC, match, and provenance reports",
	Long:  "Print the JSON reports of the named build directory, defaulting to the currently promoted build",
	PreRun: func(_ *cobra.Command, _ []string) {
		initLogging()
	},
	Run: func(cmd *cobra.Command, args []string) {
		dir := ""
		if len(args) > 0 {
			dir = args[0]
		} else {
			var err error
			if dir, err = build.CurrentBuildDir(OutDir); err != nil {
				log.Fatalf("main: %s", err)
			}
		}
		for _, name := range []string{build.QCJSON, build.MatchJSON, build.ProvJSON} {
			bs, err := os.ReadFile(filepath.Join(dir, name))
			if err != nil {
				log.Fatalf("main: %s", err)
			}
			var indented json.RawMessage = bs
			pretty, err := json.MarshalIndent(indented, "", "    ")
			if err != nil {
				log.Fatalf("main: %s", err)
			}
			fmt.Printf("%v:\n%v\n", name, string(pretty))
		}
	},
}

var currentCmd = &cobra.Command{
	Use:   "current",
	Short: "Print the currently promoted build directory",
	Long:  "Resolve and print the build directory the current pointer targets",
	PreRun: func(_ *cobra.Command, _ []string) {
		initLogging()
	},
	Run: func(cmd *cobra.Command, args []string) {
		dir, err := build.CurrentBuildDir(OutDir)
		if err != nil {
			log.Fatalf("main: %s", err)
		}
		fmt.Println(dir)
	},
}

func readStarRows(path string) ([]*catalog.RawStarRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening stars CSV: %s", err)
	}
	defer f.Close()
	rows, err := catalog.ReadStarRows(f)
	if err != nil {
		return nil, fmt.Errorf("reading stars CSV: %s", err)
	}
	return rows, nil
}

func readPlanetRows(path string) ([]*catalog.RawPlanetRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening planets CSV: %s", err)
	}
	defer f.Close()
	rows, err := catalog.ReadPlanetRows(f)
	if err != nil {
		return nil, fmt.Errorf("reading planets CSV: %s", err)
	}
	return rows, nil
}

// buildConfig merges defaults, config-file values, and flags, in that
// order of increasing precedence.
func buildConfig() *build.Config {
	cfg := build.NewConfig(SourceVersion)
	cfg.OutDir = OutDir
	cfg.StateDBFile = DBFile
	cfg.FuzzyMatching = FuzzyMatching
	cfg.ProximityGrouping = ProximityGrouping
	if Workers > 0 {
		cfg.Workers = Workers
	}

	if viper.IsSet("domain_half_width_ly") {
		cfg.DomainHalfWidthLy = viper.GetFloat64("domain_half_width_ly")
	}
	if viper.IsSet("proximity_threshold_ly") {
		cfg.ProximityThresholdLy = viper.GetFloat64("proximity_threshold_ly")
	}
	if viper.IsSet("fuzzy_threshold") {
		cfg.FuzzyThreshold = viper.GetFloat64("fuzzy_threshold")
	}
	if viper.IsSet("distance_epsilon_ly") {
		cfg.DistanceEpsilonLy = viper.GetFloat64("distance_epsilon_ly")
	}
	return cfg
}

func initConfig() {
	if ConfigFile != "" {
		viper.SetConfigFile(ConfigFile)
	} else {
		viper.SetConfigName(".tycho")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix("TYCHO")
	viper.AutomaticEnv()

	// Absent config file is fine, flag and built-in defaults apply.
	_ = viper.ReadInConfig()
}

func initLogging() {
	level := log.InfoLevel
	if Verbose {
		log.AddHook(filename.NewHook())
		level = log.DebugLevel
	}
	if Quiet {
		level = log.ErrorLevel
	}
	log.SetLevel(level)
}

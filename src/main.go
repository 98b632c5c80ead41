package main

import (
	"fmt"
	"os"

	"clientdesk/src/directors"
	"clientdesk/src/helpers"
	"clientdesk/src/settings"
	"clientdesk/src/storage"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	logger      *zap.SugaredLogger
	recordStore *storage.BadgerStore

	rootCmd = &cobra.Command{
		Use:   "clientdesk",
		Short: "Query and maintain client modules with computed columns",
		Long: `clientdesk reads tenant modules, fills in formula, aggregation and
lookup columns, filters and pivots the result, and edits stored records.`,
		SilenceUsage:      true,
		PersistentPreRunE: setup,
		PersistentPostRun: teardown,
	}
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func init() {
	args := settings.GetSettings()
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&args.DataDir, "datadir", args.DataDir, "Directory of the record database")
	flags.StringVar(&args.SchemaDir, "schemadir", args.SchemaDir, "Directory of <tenant>/<module>.yaml schema files")
	flags.StringVar(&args.Tenant, "tenant", args.Tenant, "Tenant to operate on")
	flags.StringVar(&args.ConfigFile, "config", "", "Path to a YAML config file")
	flags.StringVar(&args.Locale, "locale", args.Locale, "Locale for descriptions and totals (en, he)")
	flags.BoolVar(&args.Memo, "memo", args.Memo, "Fetch each target module once per evaluation pass")
	flags.IntVar(&args.PrefetchLimit, "prefetch", args.PrefetchLimit, "Target modules fetched concurrently")
	flags.BoolVar(&args.InMemory, "inmemory", false, "Keep records in memory only")
	flags.BoolVar(&args.Debug, "debug", false, "Enable debug mode")
	flags.BoolVar(&args.Verbose, "verbose", false, "Enable verbose logging")

	registerCommands(rootCmd)
}

// setup applies the config file (explicit flags win), validates the
// arguments and wires the services.
func setup(cmd *cobra.Command, _ []string) error {
	args := settings.GetSettings()
	if args.ConfigFile != "" {
		explicit := *args
		if err := settings.LoadConfigFile(args, args.ConfigFile); err != nil {
			return err
		}
		restoreChangedFlags(cmd, args, &explicit)
	}
	if err := settings.Validate(args); err != nil {
		return err
	}

	var err error
	logger, err = helpers.NewLogger(args.Debug)
	if err != nil {
		return err
	}
	if args.Verbose {
		logger.Infow("clientdesk starting",
			"datadir", args.DataDir,
			"schemadir", args.SchemaDir,
			"tenant", args.Tenant,
			"locale", args.Locale,
			"memo", args.Memo)
	}

	recordStore, err = storage.OpenBadgerStore(storage.BadgerConfig{
		Path:       args.DataDir,
		InMemory:   args.InMemory,
		SyncWrites: true,
	}, logger)
	if err != nil {
		return err
	}
	schemas, err := storage.NewSchemaFileRegistry(args.SchemaDir, logger)
	if err != nil {
		return err
	}

	moduleService := directors.NewModuleService(recordStore, schemas, logger, args)
	directors.InitServiceManager(moduleService, logger)
	return nil
}

func teardown(_ *cobra.Command, _ []string) {
	if recordStore != nil {
		if err := recordStore.Close(); err != nil {
			logger.Errorw("failed to close record store", "error", err)
		}
	}
	if logger != nil {
		_ = logger.Sync()
	}
}

func restoreChangedFlags(cmd *cobra.Command, args, explicit *settings.Arguments) {
	flags := cmd.Flags()
	if flags.Changed("datadir") {
		args.DataDir = explicit.DataDir
	}
	if flags.Changed("schemadir") {
		args.SchemaDir = explicit.SchemaDir
	}
	if flags.Changed("tenant") {
		args.Tenant = explicit.Tenant
	}
	if flags.Changed("locale") {
		args.Locale = explicit.Locale
	}
	if flags.Changed("memo") {
		args.Memo = explicit.Memo
	}
	if flags.Changed("prefetch") {
		args.PrefetchLimit = explicit.PrefetchLimit
	}
	if flags.Changed("inmemory") {
		args.InMemory = explicit.InMemory
	}
	if flags.Changed("debug") {
		args.Debug = explicit.Debug
	}
	if flags.Changed("verbose") {
		args.Verbose = explicit.Verbose
	}
}

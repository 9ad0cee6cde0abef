package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/hengadev/errsx"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hengadev/itemx"
	"github.com/hengadev/itemx/internal/codegen"
	"github.com/hengadev/itemx/internal/logging"
)

// cli holds the state shared by all commands of one invocation
type cli struct {
	configPath string
	verbose    bool
	logLevel   string
	logFormat  string

	config *Config
	logger zerolog.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:          "itemx-gen",
		Short:        "Augment annotated structs with item capabilities",
		Long:         "itemx-gen finds structs marked with //itemx:item and generates their Serialize, Deserialize, Clone, GoString and Item methods.",
		Version:      itemx.Version,
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.configPath, "config", DefaultConfigPath, "path to configuration file (.yaml or .toml)")
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&c.logLevel, "log-level", "", "log level (trace|debug|info|warn|error|off)")
	flags.StringVar(&c.logFormat, "log-format", "", "log format (console|json)")

	root.AddCommand(
		c.newGenerateCmd(),
		c.newValidateCmd(),
		c.newExpandCmd(),
		newInitCmd(),
		newVersionCmd(),
	)
	return root
}

// setup loads the configuration and builds the logger. Flags win over the
// environment, which wins over the config file.
func (c *cli) setup(cmd *cobra.Command) error {
	if err := LoadDotEnv("."); err != nil {
		return err
	}

	config, err := ResolveConfig(c.configPath, cmd.Flags().Changed("config"))
	if err != nil {
		return err
	}
	if err := config.ApplyEnv(os.LookupEnv); err != nil {
		return err
	}
	if c.logLevel != "" {
		config.Logging.Level = c.logLevel
	} else if c.verbose {
		config.Logging.Level = "debug"
	}
	if c.logFormat != "" {
		config.Logging.Format = c.logFormat
	}
	if err := config.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	logger, err := logging.New(logging.Config{
		Level:     config.Logging.Level,
		Format:    logging.Format(config.Logging.Format),
		Component: "itemx-gen",
		Output:    cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}

	c.config = config
	c.logger = logging.WithRun(logger, uuid.NewString()).With().Str("command", cmd.Name()).Logger()
	return nil
}

func (c *cli) newGenerateCmd() *cobra.Command {
	var (
		outputDir string
		dryRun    bool
		workers   int
	)

	cmd := &cobra.Command{
		Use:   "generate [packages]",
		Short: "Generate item code for annotated structs",
		Long:  "Generate <file>_item.go next to every source file declaring //itemx:item structs. Packages default to the current directory.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.setup(cmd); err != nil {
				return err
			}
			if cmd.Flags().Changed("workers") {
				c.config.Workers = workers
			}

			generator, err := NewGenerator(c.config, GeneratorOptions{
				OutputDir: outputDir,
				DryRun:    dryRun,
				Verbose:   c.verbose,
				Out:       cmd.OutOrStdout(),
				Logger:    c.logger,
			})
			if err != nil {
				return err
			}

			report, err := generator.Generate(cmd.Context(), packagesOrCurrent(args))
			if err != nil {
				return fmt.Errorf("generation failed: %w", err)
			}
			if c.verbose {
				for _, file := range report.Generated {
					fmt.Fprintf(cmd.OutOrStdout(), "Generated: %s\n", file)
				}
				for _, file := range report.Removed {
					fmt.Fprintf(cmd.OutOrStdout(), "Removed: %s\n", file)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&outputDir, "output", "", "override output directory")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show what would be generated without writing files")
	cmd.Flags().IntVar(&workers, "workers", 0, "packages processed in parallel (0 means one per CPU)")
	return cmd
}

func (c *cli) newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [packages]",
		Short: "Validate configuration and annotated structs",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.setup(cmd); err != nil {
				return err
			}
			if c.verbose {
				fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("✓")+" Configuration is valid")
			}
			return validatePackages(cmd.OutOrStdout(), c.config, packagesOrCurrent(args), c.verbose)
		},
	}
}

// validatePackages discovers and validates the annotated structs of every
// package, printing a report. The error lists every failure.
func validatePackages(out io.Writer, config *Config, packages []string, verbose bool) error {
	var errs *multierror.Error
	validator := codegen.NewStructValidator()
	discovery := &codegen.DiscoveryConfig{OutputSuffix: config.Generation.OutputSuffix}

	ok := color.New(color.FgGreen).SprintFunc()
	fail := color.New(color.FgRed).SprintFunc()

	for _, pkg := range packages {
		if config.Packages[pkg].Skip {
			continue
		}

		structs, err := codegen.DiscoverStructs(pkg, discovery)
		if err != nil {
			fmt.Fprintf(out, "%s %s: %v\n", fail("✗"), pkg, err)
			errs = multierror.Append(errs, fmt.Errorf("package %s: %w", pkg, err))
			continue
		}

		if len(structs) == 0 {
			if verbose {
				fmt.Fprintf(out, "  No annotated structs found in %s\n", pkg)
			}
			continue
		}

		fmt.Fprintf(out, "Found %d annotated structs in %s:\n", len(structs), pkg)
		for _, info := range structs {
			err := validator.ValidateStruct(info)
			if err == nil {
				fmt.Fprintf(out, "  %s %s (%s)\n", ok("✓"), info.StructName, info.SourceFile)
				continue
			}

			fmt.Fprintf(out, "  %s %s (%s)\n", fail("✗"), info.StructName, info.SourceFile)
			if problems, isMap := err.(errsx.Map); isMap {
				keys := make([]string, 0, len(problems))
				for key := range problems {
					keys = append(keys, key)
				}
				sort.Strings(keys)
				for _, key := range keys {
					fmt.Fprintf(out, "      %s: %v\n", key, problems[key])
				}
			}
			errs = multierror.Append(errs, fmt.Errorf("%s.%s: %w", pkg, info.StructName, err))
		}
	}

	if err := errs.ErrorOrNil(); err != nil {
		fmt.Fprintf(out, "\n%s\n", fail("Validation failed with errors."))
		return err
	}

	fmt.Fprintf(out, "\n%s\n", ok("✓ All validations passed!"))
	return nil
}

func (c *cli) newExpandCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "expand <file|->",
		Short: "Print the augmented form of a single struct declaration",
		Long:  "Read one struct declaration, without package clause, from a file or stdin and print the generated unit.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.setup(cmd); err != nil {
				return err
			}

			var (
				src []byte
				err error
			)
			if args[0] == "-" {
				src, err = io.ReadAll(cmd.InOrStdin())
			} else {
				src, err = os.ReadFile(args[0])
			}
			if err != nil {
				return fmt.Errorf("failed to read declaration: %w", err)
			}

			unit, err := codegen.Augment(src, c.config.Generation.ToCodegenConfig())
			if err != nil {
				return err
			}
			text, err := unit.Source()
			if err != nil {
				return err
			}

			c.logger.Debug().Str("struct", unit.Name).Msg("expanded declaration")
			for _, spec := range unit.Imports {
				fmt.Fprintf(cmd.OutOrStdout(), "import %s\n\n", spec)
			}
			fmt.Fprint(cmd.OutOrStdout(), text)
			return nil
		},
	}
}

func newInitCmd() *cobra.Command {
	var (
		force bool
		path  string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				if _, err := os.Stat(path); err == nil {
					return fmt.Errorf("configuration file %s already exists, use --force to overwrite", path)
				}
			}

			if err := SaveConfig(DefaultConfig(), path); err != nil {
				return fmt.Errorf("failed to create config file: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration file %s created!\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing configuration file")
	cmd.Flags().StringVar(&path, "path", DefaultConfigPath, "file to create (.yaml or .toml)")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "itemx-gen "+itemx.VersionInfo())
			fmt.Fprintln(out, "Code generator for itemx items")
			fmt.Fprintln(out, "")
			fmt.Fprintln(out, "Features:")
			fmt.Fprintln(out, "  - AST-based struct discovery")
			fmt.Fprintln(out, "  - Deep clone synthesis")
			fmt.Fprintln(out, "  - Incremental generation with caching")
			fmt.Fprintln(out, "  - JSON, MessagePack and YAML codecs")
		},
	}
}

func packagesOrCurrent(args []string) []string {
	if len(args) == 0 {
		return []string{"."}
	}
	return args
}

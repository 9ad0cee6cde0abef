package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/hengadev/itemx"
	"github.com/hengadev/itemx/internal/cache"
	"github.com/hengadev/itemx/internal/codegen"
)

// Generator handles the code generation process
type Generator struct {
	config    *Config
	outputDir string
	dryRun    bool
	verbose   bool
	out       io.Writer
	logger    zerolog.Logger
	engine    *codegen.TemplateEngine
	cache     *cache.Cache
	validator *codegen.StructValidator
}

// GeneratorOptions holds the per-run settings of a Generator
type GeneratorOptions struct {
	OutputDir string
	DryRun    bool
	Verbose   bool
	Out       io.Writer
	Logger    zerolog.Logger
}

// Report summarizes a generation run
type Report struct {
	Generated []string
	Removed   []string
	Cached    []string
	Skipped   []string
}

func (r *Report) sort() {
	sort.Strings(r.Generated)
	sort.Strings(r.Removed)
	sort.Strings(r.Cached)
	sort.Strings(r.Skipped)
}

// NewGenerator creates a new Generator instance
func NewGenerator(config *Config, opts GeneratorOptions) (*Generator, error) {
	engine, err := codegen.NewTemplateEngine()
	if err != nil {
		return nil, fmt.Errorf("failed to create template engine: %w", err)
	}

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	genCache := cache.New("")
	if config.Cache.Enabled && !opts.DryRun {
		loaded, err := cache.Load(config.Cache.Path)
		if err != nil {
			opts.Logger.Warn().Err(err).Msg("ignoring generation cache")
		}
		genCache = loaded
	}

	return &Generator{
		config:    config,
		outputDir: opts.OutputDir,
		dryRun:    opts.DryRun,
		verbose:   opts.Verbose,
		out:       out,
		logger:    opts.Logger,
		engine:    engine,
		cache:     genCache,
		validator: codegen.NewStructValidator(),
	}, nil
}

// Generate performs code generation for the specified package directories.
// Packages are processed concurrently; a failing package does not stop the
// others and all failures are returned together.
func (g *Generator) Generate(ctx context.Context, packages []string) (*Report, error) {
	g.logger.Debug().Strs("packages", packages).Bool("dry_run", g.dryRun).Msg("starting code generation")

	var (
		mu     sync.Mutex
		report Report
		errs   *multierror.Error
	)

	workers := g.config.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(workers)

	for _, packagePath := range packages {
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			pkgReport, err := g.generatePackage(packagePath)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = multierror.Append(errs, fmt.Errorf("package %s: %w", packagePath, err))
				return nil
			}
			report.Generated = append(report.Generated, pkgReport.Generated...)
			report.Removed = append(report.Removed, pkgReport.Removed...)
			report.Cached = append(report.Cached, pkgReport.Cached...)
			report.Skipped = append(report.Skipped, pkgReport.Skipped...)
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		errs = multierror.Append(errs, err)
	}
	if err := g.cache.Save(); err != nil {
		errs = multierror.Append(errs, err)
	}

	report.sort()
	g.logger.Info().
		Int("generated", len(report.Generated)).
		Int("removed", len(report.Removed)).
		Int("cached", len(report.Cached)).
		Int("skipped", len(report.Skipped)).
		Msg("code generation complete")

	return &report, errs.ErrorOrNil()
}

func (g *Generator) generatePackage(packagePath string) (*Report, error) {
	logger := g.logger.With().Str("package", packagePath).Logger()
	report := &Report{}

	pkgConfig := g.config.Packages[packagePath]
	if pkgConfig.Skip {
		logger.Debug().Msg("skipping package (marked as skip)")
		report.Skipped = append(report.Skipped, packagePath)
		return report, nil
	}

	genConfig := g.config.Generation.ToCodegenConfig()
	outputDir := packagePath
	if pkgConfig.OutputDir != "" {
		outputDir = pkgConfig.OutputDir
	} else if g.outputDir != "" {
		outputDir = g.outputDir
	}

	sources, err := sourceFiles(packagePath, genConfig.OutputSuffix)
	if err != nil {
		return nil, err
	}
	want, err := g.cacheEntry(sources, genConfig, outputDir)
	if err != nil {
		return nil, err
	}
	if !g.dryRun && g.config.Cache.Enabled && g.cache.Fresh(packagePath, want) {
		logger.Debug().Msg("package unchanged since last generation")
		report.Cached = append(report.Cached, packagePath)
		return report, nil
	}

	structs, err := codegen.DiscoverStructs(packagePath, &codegen.DiscoveryConfig{OutputSuffix: genConfig.OutputSuffix})
	if err != nil {
		return nil, err
	}
	logger.Debug().Int("structs", len(structs)).Msg("discovered annotated structs")

	if err := g.validate(structs); err != nil {
		return nil, err
	}

	known := make(map[string]bool, len(structs))
	for _, info := range structs {
		known[info.StructName] = true
	}

	var outputs []string
	for _, group := range groupBySource(structs) {
		code, err := g.renderFile(group, known, genConfig)
		if err != nil {
			return nil, err
		}

		outputFile := filepath.Join(outputDir, codegen.OutputFileName(group[0].SourceFile, genConfig.OutputSuffix))
		outputs = append(outputs, outputFile)

		if g.dryRun {
			fmt.Fprintf(g.out, "Would generate: %s\n", outputFile)
			if g.verbose {
				fmt.Fprintf(g.out, "%s\n", code)
			}
			continue
		}

		if err := os.MkdirAll(outputDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory %s: %w", outputDir, err)
		}
		if err := os.WriteFile(outputFile, code, 0644); err != nil {
			return nil, fmt.Errorf("failed to write generated file %s: %w", outputFile, err)
		}
		logger.Debug().Str("file", outputFile).Int("structs", len(group)).Msg("generated")
		report.Generated = append(report.Generated, outputFile)
	}

	// An output directory shared by several packages cannot tell whose files are stale.
	var stale []string
	if outputDir == packagePath {
		stale, err = staleOutputs(outputDir, genConfig.OutputSuffix, outputs)
		if err != nil {
			return nil, err
		}
	}
	for _, file := range stale {
		if g.dryRun {
			fmt.Fprintf(g.out, "Would remove: %s\n", file)
			continue
		}
		if err := os.Remove(file); err != nil {
			return nil, fmt.Errorf("failed to remove stale file %s: %w", file, err)
		}
		logger.Debug().Str("file", file).Msg("removed stale generated file")
		report.Removed = append(report.Removed, file)
	}

	if !g.dryRun && g.config.Cache.Enabled {
		want.Outputs = outputs
		g.cache.Record(packagePath, want)
	}
	return report, nil
}

// validate checks every struct and collects all failures
func (g *Generator) validate(structs []codegen.StructInfo) error {
	var errs *multierror.Error
	for _, info := range structs {
		if err := g.validator.ValidateStruct(info); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s (%s): %w", info.StructName, info.SourceFile, err))
		}
	}
	return errs.ErrorOrNil()
}

func (g *Generator) renderFile(structs []codegen.StructInfo, known map[string]bool, config codegen.GenerationConfig) ([]byte, error) {
	items := make([]codegen.RenderedItem, 0, len(structs))
	for _, info := range structs {
		data, err := codegen.BuildTemplateData(info, known, config)
		if err != nil {
			return nil, err
		}
		item, err := g.engine.RenderItem(data)
		if err != nil {
			return nil, fmt.Errorf("failed to generate code for struct %s: %w", info.StructName, err)
		}
		items = append(items, item)
	}

	return g.engine.GenerateFile(codegen.FileData{
		PackageName:      structs[0].PackageName,
		SourceFile:       structs[0].SourceFile,
		GeneratorVersion: itemx.Version,
		ImportSpec:       config.ImportSpec(),
		Items:            items,
	})
}

func (g *Generator) cacheEntry(sources []string, config codegen.GenerationConfig, outputDir string) (cache.Entry, error) {
	sourceHash, err := cache.HashFiles(sources)
	if err != nil {
		return cache.Entry{}, err
	}
	configHash, err := cache.HashValue(struct {
		Generation codegen.GenerationConfig
		OutputDir  string
	}{config, outputDir})
	if err != nil {
		return cache.Entry{}, err
	}
	return cache.Entry{SourceHash: sourceHash, ConfigHash: configHash, Generator: itemx.Version}, nil
}

// groupBySource splits discovered structs per source file, keeping their order
func groupBySource(structs []codegen.StructInfo) [][]codegen.StructInfo {
	var groups [][]codegen.StructInfo
	index := make(map[string]int)
	for _, info := range structs {
		i, ok := index[info.SourceFile]
		if !ok {
			i = len(groups)
			index[info.SourceFile] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], info)
	}
	return groups
}

// sourceFiles lists the hand-written Go files of a package directory
func sourceFiles(dir, suffix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read package directory: %w", err)
	}
	var files []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") || codegen.IsOutputFile(name, suffix) {
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}
	return files, nil
}

// staleOutputs lists files in dir written by the generator that the current
// run did not produce
func staleOutputs(dir, suffix string, current []string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read output directory: %w", err)
	}

	keep := make(map[string]bool, len(current))
	for _, file := range current {
		keep[filepath.Clean(file)] = true
	}

	var stale []string
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if entry.IsDir() || !codegen.IsOutputFile(entry.Name(), suffix) || keep[filepath.Clean(path)] {
			continue
		}
		generated, err := hasGeneratedHeader(path)
		if err != nil {
			return nil, err
		}
		if generated {
			stale = append(stale, path)
		}
	}
	return stale, nil
}

func hasGeneratedHeader(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	line, err := bufio.NewReader(f).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	return strings.HasPrefix(line, codegen.GeneratedHeader), nil
}

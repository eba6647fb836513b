// Command taintflow runs taint queries over flow graphs.
//
// A target may be a serialized flow-graph JSON file, a directory of Go
// packages, or a git URL which is cloned and analyzed as Go packages:
//
//	taintflow check graph.json
//	taintflow check --query query.yaml ./...
//	taintflow check --query query.yaml https://github.com/example/app
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/tools/go/packages"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"

	"github.com/taintflow/taint"
	"github.com/taintflow/taint/domxss"
	"github.com/taintflow/taint/flowgraph"
	"github.com/taintflow/taint/queryfile"
	"github.com/taintflow/taint/sarif"
	"github.com/taintflow/taint/sqlinjection"
	"github.com/taintflow/taint/ssaflow"
)

var (
	flagQuery    string
	flagFormat   string
	flagMaxSteps int
	flagWorkers  int
	flagVerbose  bool
)

func main() {
	root := &cobra.Command{
		Use:           "taintflow",
		Short:         "taint-propagation analysis over flow graphs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")

	check := &cobra.Command{
		Use:   "check <graph.json | go-package-dir | git-url>",
		Short: "run a taint query against a target",
		Args:  cobra.ExactArgs(1),
		RunE:  runCheck,
	}
	check.Flags().StringVarP(&flagQuery, "query", "q", domxss.Name, "query to run: dom-xss, sql-injection, or a YAML query file")
	check.Flags().StringVarP(&flagFormat, "format", "f", "text", "output format: text, sarif, or dot")
	check.Flags().IntVar(&flagMaxSteps, "max-steps", 0, "propagation step budget (0 = unlimited)")
	check.Flags().IntVar(&flagWorkers, "workers", 4, "concurrent propagation workers")
	root.AddCommand(check)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, renderError(err))
		os.Exit(1)
	}
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger, err := newLogger(flagVerbose)
	if err != nil {
		return err
	}
	defer logger.Sync()

	cfg, err := loadQuery(flagQuery)
	if err != nil {
		return err
	}

	g, err := loadGraph(ctx, logger, args[0])
	if err != nil {
		return err
	}
	logger.Debug("graph loaded",
		zap.Int("nodes", g.NumNodes()),
		zap.Int("edges", g.NumEdges()))

	if flagFormat == "dot" {
		return flowgraph.WriteDOT(os.Stdout, g)
	}

	report, err := taint.CheckContext(ctx, g, cfg, &taint.Options{
		MaxSteps: flagMaxSteps,
		Workers:  flagWorkers,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	switch flagFormat {
	case "text":
		renderReport(os.Stdout, g, cfg.Name(), report)
		return nil
	case "sarif":
		return sarif.Write(os.Stdout, sarif.FromReport(g, cfg.Name(), report))
	default:
		return fmt.Errorf("unknown format %q", flagFormat)
	}
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	if !verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}

func loadQuery(name string) (taint.Config, error) {
	switch name {
	case domxss.Name:
		return domxss.New(), nil
	case sqlinjection.Name:
		return sqlinjection.New(), nil
	}
	return queryfile.LoadFile(name)
}

// loadGraph resolves a target into a flow graph: a JSON graph file is
// decoded directly, a git URL is cloned first, and anything else is
// loaded as Go packages and lowered through ssaflow.
func loadGraph(ctx context.Context, logger *zap.Logger, target string) (*flowgraph.Graph, error) {
	if strings.HasSuffix(target, ".json") {
		f, err := os.Open(target)
		if err != nil {
			return nil, fmt.Errorf("failed to open graph file: %w", err)
		}
		defer f.Close()
		return flowgraph.Decode(f)
	}

	dir := target
	if isGitURL(target) {
		cloned, err := cloneRepo(ctx, logger, target)
		if err != nil {
			return nil, err
		}
		dir = cloned
	}

	return loadGoPackages(ctx, logger, dir)
}

func isGitURL(target string) bool {
	return strings.HasPrefix(target, "https://") ||
		strings.HasPrefix(target, "http://") ||
		strings.HasPrefix(target, "git@")
}

func cloneRepo(ctx context.Context, logger *zap.Logger, url string) (string, error) {
	dir, err := os.MkdirTemp("", "taintflow-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp dir: %w", err)
	}

	logger.Debug("cloning repository", zap.String("url", url), zap.String("dir", dir))

	_, err = git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL:          url,
		Depth:        1,
		Tags:         git.NoTags,
		SingleBranch: true,
	})
	if err != nil {
		return "", fmt.Errorf("failed to clone %s: %w", url, err)
	}

	return dir, nil
}

func loadGoPackages(ctx context.Context, logger *zap.Logger, dir string) (*flowgraph.Graph, error) {
	pkgs, err := packages.Load(&packages.Config{
		Mode: packages.NeedName | packages.NeedFiles | packages.NeedCompiledGoFiles |
			packages.NeedImports | packages.NeedDeps | packages.NeedTypes |
			packages.NeedSyntax | packages.NeedTypesInfo | packages.NeedTypesSizes,
		Context: ctx,
		Dir:     dir,
		Env:     os.Environ(),
	}, "./...")
	if err != nil {
		return nil, fmt.Errorf("failed to load packages: %w", err)
	}
	for _, p := range pkgs {
		for _, perr := range p.Errors {
			logger.Warn("package load error", zap.String("error", perr.Error()))
		}
	}

	prog, _ := ssautil.Packages(pkgs, ssa.InstantiateGenerics)
	prog.Build()

	// Sort for a deterministic graph across runs.
	var fns []*ssa.Function
	for fn := range ssautil.AllFunctions(prog) {
		if fn.Blocks == nil {
			continue
		}
		fns = append(fns, fn)
	}
	sort.Slice(fns, func(i, j int) bool {
		return fns[i].String() < fns[j].String()
	})

	if len(fns) == 0 {
		return nil, fmt.Errorf("no functions found in %s", dir)
	}

	return ssaflow.Build(fns...)
}

package lint

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/gnolang/boundprove/internal"
	"github.com/gnolang/boundprove/internal/boundscheck"
	tt "github.com/gnolang/boundprove/internal/types"
)

// DefaultConfigPath is where init writes and lint looks for the configuration.
const DefaultConfigPath = ".boundprove.yaml"

const maxShowRecentFiles = 10

// ProgressOutput receives the progress bar and the recently processed files
// shown while a directory is linted. Set it to io.Discard to silence them.
var ProgressOutput io.Writer = os.Stderr

type LintEngine interface {
	Run(filePath string) ([]tt.Issue, error)
	RunSource(source []byte) ([]tt.Issue, error)
	IgnoreRule(rule string)
	IgnorePath(path string)
}

// New loads the configuration at configurationPath and creates an engine
// from it. A missing file means the defaults.
func New(rootDir, configurationPath string, logger *zap.Logger, opts ...internal.EngineOption) (*internal.Engine, error) {
	config, err := LoadConfig(configurationPath)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Debug("configuration loaded",
		zap.String("path", configurationPath),
		zap.String("name", config.Name),
		zap.Int("max-complexity", config.Prover.MaxComplexity),
		zap.Bool("check-slices", config.Prover.CheckSlices))

	base := []internal.EngineOption{
		internal.WithLogger(logger),
		internal.WithProverConfig(config.Prover.checkerConfig()),
	}
	return internal.NewEngine(rootDir, config.Rules, append(base, opts...)...)
}

func ProcessSources(
	ctx context.Context,
	logger *zap.Logger,
	engine LintEngine,
	sources [][]byte,
	processor func(LintEngine, []byte) ([]tt.Issue, error),
) ([]tt.Issue, error) {
	var allIssues []tt.Issue
	for i, source := range sources {
		if err := ctx.Err(); err != nil {
			return allIssues, err
		}
		issues, err := processor(engine, source)
		if err != nil {
			if logger != nil {
				logger.Error("Error processing source", zap.Int("source", i), zap.Error(err))
			}
			return nil, err
		}
		allIssues = append(allIssues, issues...)
	}

	return allIssues, nil
}

func ProcessFiles(
	ctx context.Context,
	logger *zap.Logger,
	engine LintEngine,
	paths []string,
	processor func(LintEngine, string) ([]tt.Issue, error),
) ([]tt.Issue, error) {
	var allIssues []tt.Issue
	for _, path := range paths {
		issues, err := ProcessPath(ctx, logger, engine, path, processor)
		if err != nil {
			if logger != nil {
				logger.Error("Error processing path", zap.String("path", path), zap.Error(err))
			}
			return allIssues, err
		}
		allIssues = append(allIssues, issues...)
	}

	return allIssues, nil
}

// ProcessPath lints a file, or every Go file below a directory using one
// worker per CPU. Files that fail to process are logged and skipped. On
// cancellation the issues found so far are returned with ctx's error.
func ProcessPath(
	ctx context.Context,
	logger *zap.Logger,
	engine LintEngine,
	path string,
	processor func(LintEngine, string) ([]tt.Issue, error),
) ([]tt.Issue, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("error accessing %s: %w", path, err)
	}

	if !info.IsDir() {
		if !hasDesiredExtension(path) {
			return nil, nil
		}
		return processor(engine, path)
	}

	files, err := collectFiles(path)
	if err != nil {
		return nil, err
	}

	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetWriter(ProgressOutput),
		progressbar.OptionSetDescription(path),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))
	recent := newRecentFiles(ProgressOutput, maxShowRecentFiles)

	var (
		mu     sync.Mutex
		issues = []tt.Issue{}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for _, fp := range files {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			recent.add(filepath.Base(fp))

			fileIssues, err := processor(engine, fp)
			if err != nil {
				logger.Error("Error processing file", zap.String("file", fp), zap.Error(err))
			} else {
				mu.Lock()
				issues = append(issues, fileIssues...)
				mu.Unlock()
			}
			_ = bar.Add(1)
			return nil
		})
	}
	_ = g.Wait()
	_ = bar.Finish()

	sortIssues(issues)
	if err := ctx.Err(); err != nil {
		return issues, err
	}
	return issues, nil
}

func collectFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if hasDesiredExtension(p) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error walking %s: %w", root, err)
	}
	return files, nil
}

// recentFiles keeps the names of the last files picked up by a worker on
// screen above the progress bar.
type recentFiles struct {
	mu    sync.Mutex
	out   io.Writer
	names []string
	drawn bool
}

func newRecentFiles(out io.Writer, n int) *recentFiles {
	return &recentFiles{out: out, names: make([]string, n)}
}

func (r *recentFiles) add(name string) {
	if r.out == io.Discard {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	copy(r.names[1:], r.names)
	r.names[0] = name

	if r.drawn {
		// move the cursor back over the previous list
		fmt.Fprintf(r.out, "\033[%dA", len(r.names))
	}
	for _, n := range r.names {
		// \033[2K: clear the line, \r: back to its start
		fmt.Fprintf(r.out, "\033[2K\r%s\n", n)
	}
	r.drawn = true
}

func sortIssues(issues []tt.Issue) {
	sort.SliceStable(issues, func(i, j int) bool {
		if issues[i].Filename != issues[j].Filename {
			return issues[i].Filename < issues[j].Filename
		}
		return issues[i].Start.Offset < issues[j].Start.Offset
	})
}

func ProcessFile(engine LintEngine, filePath string) ([]tt.Issue, error) {
	return engine.Run(filePath)
}

func ProcessSource(engine LintEngine, source []byte) ([]tt.Issue, error) {
	return engine.RunSource(source)
}

var desiredExtensions = map[string]bool{
	".go": true,
}

func hasDesiredExtension(path string) bool {
	return desiredExtensions[filepath.Ext(path)]
}

// Config represents the overall configuration with a name, the rules and
// the prover settings.
type Config struct {
	Name   string                   `yaml:"name"`
	Rules  map[string]tt.ConfigRule `yaml:"rules"`
	Prover ProverConfig             `yaml:"prover"`
}

// ProverConfig is the prover section of the configuration file.
type ProverConfig struct {
	MaxComplexity int  `yaml:"max-complexity"`
	CheckSlices   bool `yaml:"check-slices"`
}

func (p ProverConfig) checkerConfig() boundscheck.Config {
	return boundscheck.Config{
		MaxComplexity: p.MaxComplexity,
		CheckSlices:   p.CheckSlices,
	}
}

// DefaultConfig is what init writes and what a missing file stands for.
func DefaultConfig() Config {
	return Config{
		Name: "boundprove",
		Rules: map[string]tt.ConfigRule{
			"unproven-index":      {Severity: tt.SeverityWarning},
			"redundant-condition": {Severity: tt.SeverityError},
		},
		Prover: ProverConfig{
			MaxComplexity: boundscheck.DefaultConfig.MaxComplexity,
			CheckSlices:   boundscheck.DefaultConfig.CheckSlices,
		},
	}
}

// Fingerprint identifies the settings issues depend on, for cache
// invalidation.
func (c Config) Fingerprint() string {
	d, err := yaml.Marshal(struct {
		Rules  map[string]tt.ConfigRule
		Prover ProverConfig
	}{c.Rules, c.Prover})
	if err != nil {
		return ""
	}
	return string(d)
}

// LoadConfig reads a configuration file on top of DefaultConfig. An empty
// path or a missing file yields the defaults.
func LoadConfig(configurationPath string) (Config, error) {
	config := DefaultConfig()
	if configurationPath == "" {
		return config, nil
	}

	f, err := os.Open(configurationPath)
	if errors.Is(err, fs.ErrNotExist) {
		return config, nil
	}
	if err != nil {
		return config, err
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(&config); err != nil && !errors.Is(err, io.EOF) {
		return config, fmt.Errorf("error parsing %s: %w", configurationPath, err)
	}
	return config, nil
}

// WriteConfig writes config as YAML to path.
func WriteConfig(path string, config Config) error {
	d, err := yaml.Marshal(config)
	if err != nil {
		return err
	}
	return os.WriteFile(path, d, 0o644)
}

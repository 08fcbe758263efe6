package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	cache "github.com/vearutop/repocache"
	"github.com/vearutop/repocache/gitsource"
	"github.com/vearutop/repocache/resilience"
)

type inspectFlags struct {
	config   string
	category string
	resource string
	params   map[string]string
	repeat   int
	verbose  bool
}

// report is printed as YAML after inspection.
type report struct {
	Key      string                      `yaml:"key"`
	Data     interface{}                 `yaml:"data"`
	Cache    cacheReport                 `yaml:"cache"`
	Retry    retryReport                 `yaml:"retry"`
	Objects  cache.PressureStats         `yaml:"objects"`
	Failures map[resilience.Category]int `yaml:"failures,omitempty"`
}

type cacheReport struct {
	Entries   int     `yaml:"entries"`
	TotalSize int64   `yaml:"totalSize"`
	Hits      int64   `yaml:"hits"`
	Misses    int64   `yaml:"misses"`
	HitRate   float64 `yaml:"hitRate"`
	Memory    float64 `yaml:"memoryUsage"`
}

type retryReport struct {
	Operations int64             `yaml:"operations"`
	Successful int64             `yaml:"successful"`
	Failed     int64             `yaml:"failed"`
	Retries    int64             `yaml:"retries"`
	Health     resilience.Health `yaml:"health"`
	Average    string            `yaml:"averageDuration"`
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "repocache",
		Short:         "Cached access to Git repository metadata",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newInspectCmd())

	return root
}

func newInspectCmd() *cobra.Command {
	f := inspectFlags{}

	cmd := &cobra.Command{
		Use:   "inspect <repo-path>",
		Short: "Load repository metadata through the cache and print it with cache statistics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return inspect(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), args[0], f)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.config, "config", "", "path to YAML configuration file")
	fl.StringVar(&f.category, "category", string(cache.CategoryCommits), "metadata category: status, commits, branches, tags, remotes")
	fl.StringVar(&f.resource, "resource", "", "resource within category, for example revision of commits")
	fl.StringToStringVar(&f.params, "param", nil, "additional key parameter, for example --param limit=10")
	fl.IntVar(&f.repeat, "repeat", 2, "number of reads, repeated reads are served from cache")
	fl.BoolVarP(&f.verbose, "verbose", "v", false, "enable debug logging")

	return cmd
}

func inspect(ctx context.Context, out, logOut io.Writer, repoPath string, f inspectFlags) error {
	if ctx == nil {
		ctx = context.Background()
	}

	fc, err := loadConfig(f.config)
	if err != nil {
		return err
	}

	cat := cache.Category(f.category)
	if !cat.Valid() {
		return fmt.Errorf("%w: %s", cache.ErrUnknownCategory, f.category)
	}

	if f.repeat < 1 {
		f.repeat = 1
	}

	level := slog.LevelWarn
	if f.verbose {
		level = slog.LevelDebug
	}

	logger := slogLogger{l: slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: level}))}

	repoPath, err = filepath.Abs(repoPath)
	if err != nil {
		return err
	}

	objects := cache.NewObjectCache()

	pc := fc.pressureConfig()
	pc.Logger = logger
	pc.Name = "objects"
	monitor := cache.NewPressureMonitor(objects, pc)

	defer monitor.Stop()

	cc := fc.cacheConfig()
	cc.Logger = logger
	cc.PressureMonitor = monitor

	rc := fc.retryConfig()
	rc.Logger = logger
	exec := resilience.NewExecutor(rc)

	rt := cache.NewReadThrough(gitsource.New(gitsource.Config{Objects: objects, Logger: logger}), cache.ReadThroughConfig{
		Name:          "repocache",
		CacheConfig:   cc,
		Executor:      exec,
		FailedLoadTTL: fc.FailedLoadTTL,
		Logger:        logger,
	})

	defer rt.Cache().Destroy()

	key := cache.NewKey(repoPath, cat, f.resource)
	for k, v := range f.params {
		key = key.With(k, v)
	}

	var data interface{}

	for i := 0; i < f.repeat; i++ {
		if data, err = rt.Get(ctx, key); err != nil {
			return err
		}
	}

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)

	if err := enc.Encode(newReport(key, data, rt, monitor)); err != nil {
		return err
	}

	return enc.Close()
}

func newReport(key cache.Key, data interface{}, rt *cache.ReadThrough, monitor *cache.PressureMonitor) report {
	st := rt.Cache().Stats()
	m := rt.Executor().OperationMetrics()

	r := report{
		Key:  key.String(),
		Data: data,
		Cache: cacheReport{
			Entries:   st.EntryCount,
			TotalSize: st.TotalSize,
			Hits:      st.Hits,
			Misses:    st.Misses,
			HitRate:   st.HitRate,
			Memory:    st.MemoryUsage,
		},
		Retry: retryReport{
			Operations: m.TotalOperations,
			Successful: m.SuccessfulOperations,
			Failed:     m.FailedOperations,
			Retries:    m.TotalRetries,
			Health:     m.Health(),
			Average:    m.AverageDuration().Round(time.Microsecond).String(),
		},
		Objects: monitor.Stats(),
	}

	for c, ef := range rt.Executor().ErrorFrequency() {
		if r.Failures == nil {
			r.Failures = make(map[resilience.Category]int)
		}

		r.Failures[c] = int(ef.Count)
	}

	return r
}

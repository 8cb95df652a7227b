// Command stk runs the sensetrack analytics pipeline over a directory of
// observation data and prints the result as JSON. With -watch it keeps
// running, recomputing whenever the source file changes and invalidating
// cached results only for the students whose entries changed.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/goccy/go-json"

	"github.com/mverbeek/sensetrack/internal/datasource"
	"github.com/mverbeek/sensetrack/pkg/config"
	"github.com/mverbeek/sensetrack/pkg/coordinator"
	"github.com/mverbeek/sensetrack/pkg/debug"
	"github.com/mverbeek/sensetrack/pkg/metrics"
	"github.com/mverbeek/sensetrack/pkg/model"
	"github.com/mverbeek/sensetrack/pkg/rescache"
	"github.com/mverbeek/sensetrack/pkg/version"
	"github.com/mverbeek/sensetrack/pkg/watcher"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		dataDir     = flag.String("data", "", "observation data directory (default: ST_DATA_DIR or cwd)")
		configPath  = flag.String("config", "", "YAML config file (optional)")
		watch       = flag.Bool("watch", false, "keep running and recompute when the source changes")
		showStats   = flag.Bool("stats", false, "print cache and timing statistics to stderr")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Version)
		return 0
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "stk: %v\n", err)
			return 1
		}
		cfg = loaded
	}
	cfg = config.ApplyEnvOverrides(cfg)

	store := config.NewStore(cfg)
	cache := rescache.New[*model.AnalyticsResult](
		rescache.WithCapacity(cfg.Cache.Capacity),
		rescache.WithDefaultTTL(cfg.Cache.TTL),
	)
	coord := coordinator.New(cache, store)
	defer coord.Close()

	source, err := datasource.SelectBestSource(datasource.DiscoveryOptions{
		DataDir: *dataDir,
		Logger:  func(msg string) { debug.Log("%s", msg) },
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "stk: %v\n", err)
		return 1
	}
	debug.Log("selected source: %s", source)

	req, err := loadRequest(source)
	if err != nil {
		fmt.Fprintf(os.Stderr, "stk: %v\n", err)
		return 1
	}

	if err := analyzeAndPrint(coord, req, *showStats); err != nil {
		fmt.Fprintf(os.Stderr, "stk: %v\n", err)
		return 1
	}

	if !*watch {
		return 0
	}
	return watchLoop(coord, source, req, *showStats)
}

func loadRequest(source datasource.DataSource) (model.AnalyticsRequest, error) {
	return datasource.LoadRequest(source, datasource.LoadOptions{
		WarningHandler: func(msg string) {
			fmt.Fprintf(os.Stderr, "stk: warning: %s\n", msg)
		},
	})
}

func analyzeAndPrint(coord *coordinator.Coordinator, req model.AnalyticsRequest, showStats bool) error {
	defer debug.LogEnterExit("analyze")()

	result, err := coord.RunAnalysis(context.Background(), req)
	if err != nil {
		return err
	}
	if state := coord.State(); state.Notice != "" {
		fmt.Fprintf(os.Stderr, "stk: %s\n", state.Notice)
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	fmt.Println(string(out))

	if showStats {
		printStats(coord)
	}
	return nil
}

func printStats(coord *coordinator.Coordinator) {
	stats := struct {
		Cache   rescache.Stats        `json:"cache"`
		Health  coordinator.Health    `json:"health"`
		Timings []metrics.TimingStats `json:"timings"`
	}{
		Cache:   coord.CacheStats(),
		Health:  coord.WorkerHealth(),
		Timings: metrics.AllTimingStats(),
	}
	out, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return
	}
	fmt.Fprintln(os.Stderr, string(out))
}

// watchLoop reruns the analysis whenever the source file changes, until
// interrupted. Only subjects whose entries actually changed lose their
// cached results.
func watchLoop(coord *coordinator.Coordinator, source datasource.DataSource, prev model.AnalyticsRequest, showStats bool) int {
	w, err := watcher.New(source.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "stk: watch: %v\n", err)
		return 1
	}
	if err := w.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "stk: watch: %v\n", err)
		return 1
	}
	defer w.Stop()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	fmt.Fprintf(os.Stderr, "stk: watching %s\n", source.Path)
	for {
		select {
		case <-sig:
			return 0
		case <-w.Changed():
			next, err := loadRequest(source)
			if err != nil {
				fmt.Fprintf(os.Stderr, "stk: reload: %v\n", err)
				continue
			}
			diff := datasource.DiffRequests(prev, next)
			if diff.Empty() {
				debug.Log("source touched but content unchanged")
				continue
			}
			for _, subject := range diff.TouchedSubjects {
				removed := coord.InvalidateForSubject(subject)
				debug.Log("invalidated %d cached result(s) for %s", removed, subject)
			}
			prev = next
			if err := analyzeAndPrint(coord, next, showStats); err != nil {
				fmt.Fprintf(os.Stderr, "stk: %v\n", err)
			}
		}
	}
}

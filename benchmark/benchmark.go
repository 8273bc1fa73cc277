package benchmark

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-mot/tracking"
)

// Suite manages and executes benchmark scenarios
type Suite struct {
	scenarios []Scenario
	outputDir string
	logger    *slog.Logger
	mu        sync.RWMutex
	results   []PerformanceMetrics
}

// NewSuite creates a new benchmark suite.
//
// Arguments:
//   - outputDir: Directory SaveResults writes to.
//   - logger: Progress logger. Nil discards.
//
// Returns:
//   - *Suite: The benchmark suite.
func NewSuite(outputDir string, logger *slog.Logger) *Suite {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Suite{
		outputDir: outputDir,
		logger:    logger,
	}
}

// AddScenario adds a test scenario to the benchmark suite
func (s *Suite) AddScenario(scenario Scenario) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scenarios = append(s.scenarios, scenario)
}

// Scenarios returns the configured scenarios.
func (s *Suite) Scenarios() []Scenario {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Scenario(nil), s.scenarios...)
}

// RunScenario generates the scenario's sequence, replays it through a fresh
// tracker and scores the result.
//
// Arguments:
//   - ctx: Checked between frames.
//   - scenario: The scenario to run.
//
// Returns:
//   - *PerformanceMetrics: Timing, accuracy and memory figures.
//   - error: An error if the scenario is empty or the context is done.
func (s *Suite) RunScenario(ctx context.Context, scenario Scenario) (*PerformanceMetrics, error) {
	if scenario.Frames <= 0 {
		return nil, errors.Errorf("scenario %q has no frames", scenario.Name)
	}

	frames := Generate(scenario)
	tracker := tracking.New(scenario.Tracker)
	eval := NewEvaluator(scenario.Objects)
	durations := make([]time.Duration, 0, len(frames))

	metrics := &PerformanceMetrics{
		Scenario:  scenario,
		Timestamp: time.Now(),
	}

	var startMem runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&startMem)

	for i, frame := range frames {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrapf(err, "scenario %q cancelled at frame %d", scenario.Name, i+1)
		}

		start := time.Now()
		tracks := tracker.Process(frame.Detections)
		durations = append(durations, time.Since(start))

		eval.Add(frame.Truth, tracks)
		metrics.DetectionCount += len(frame.Detections)
	}

	var endMem runtime.MemStats
	runtime.ReadMemStats(&endMem)

	for _, d := range durations {
		metrics.TotalDuration += d
	}
	if metrics.TotalDuration > 0 {
		metrics.FramesPerSecond = float64(len(frames)) / metrics.TotalDuration.Seconds()
	}
	metrics.Latency = Latencies(durations)
	metrics.Tracking = eval.Metrics()
	metrics.MemoryStats = MemoryMetrics{
		AllocBytes:      endMem.Alloc,
		TotalAllocBytes: endMem.TotalAlloc - startMem.TotalAlloc,
		SysBytes:        endMem.Sys,
		NumGC:           endMem.NumGC - startMem.NumGC,
		HeapAllocBytes:  endMem.HeapAlloc,
		HeapSysBytes:    endMem.HeapSys,
	}
	return metrics, nil
}

// RunAll executes all configured benchmark scenarios in order. A failing
// scenario is logged and skipped; a done context stops the run.
func (s *Suite) RunAll(ctx context.Context) ([]PerformanceMetrics, error) {
	for _, scenario := range s.Scenarios() {
		metrics, err := s.RunScenario(ctx, scenario)
		if err != nil {
			if ctx.Err() != nil {
				return s.Results(), err
			}
			s.logger.Warn("scenario failed", slog.String("scenario", scenario.Name), slog.Any("error", err))
			continue
		}

		s.mu.Lock()
		s.results = append(s.results, *metrics)
		s.mu.Unlock()

		s.logger.Info("scenario completed",
			slog.String("scenario", scenario.Name),
			slog.Float64("fps", metrics.FramesPerSecond),
			slog.Int("id_switches", metrics.Tracking.IDSwitches),
			slog.Float64("coverage", metrics.Tracking.Coverage),
		)
	}
	return s.Results(), nil
}

// SaveResults persists benchmark results to the output directory as JSON and
// a CSV summary.
//
// Returns:
//   - string: The path of the JSON results file.
//   - error: An error if the files cannot be written.
func (s *Suite) SaveResults() (string, error) {
	results := s.Results()

	if err := os.MkdirAll(s.outputDir, 0o755); err != nil {
		return "", errors.Wrap(err, "failed to create output directory")
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	resultsFile := filepath.Join(s.outputDir, fmt.Sprintf("benchmark_results_%s.json", timestamp))

	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal results")
	}
	if err := os.WriteFile(resultsFile, data, 0o644); err != nil {
		return "", errors.Wrap(err, "failed to write results file")
	}

	summaryFile := filepath.Join(s.outputDir, fmt.Sprintf("benchmark_summary_%s.csv", timestamp))
	if err := os.WriteFile(summaryFile, []byte(Render(results, FormatCSV)+"\n"), 0o644); err != nil {
		return "", errors.Wrap(err, "failed to save summary CSV")
	}

	s.logger.Info("results saved", slog.String("results", resultsFile), slog.String("summary", summaryFile))
	return resultsFile, nil
}

// Results returns all benchmark results
func (s *Suite) Results() []PerformanceMetrics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]PerformanceMetrics(nil), s.results...)
}

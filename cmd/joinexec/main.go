package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/jon-wei/druid-sub000/pkg/config"
	"github.com/jon-wei/druid-sub000/pkg/filter"
	"github.com/jon-wei/druid-sub000/pkg/join/hashjoin"
	"github.com/jon-wei/druid-sub000/pkg/monitor"
	"github.com/jon-wei/druid-sub000/pkg/segment"
	"github.com/jon-wei/druid-sub000/pkg/workerpool"
	"github.com/prometheus/client_golang/prometheus"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

func main() {
	configPath := flag.String("config", "", "path to the JSON config file")
	scenarioPath := flag.String("scenario", "", "path to the JSON scenario file")
	metricsOut := flag.String("metrics-out", "", "write Prometheus metrics to this file after the run")
	workers := flag.Int("workers", workerpool.DefaultConfig().Size, "segments read in parallel")
	flag.Parse()

	var cfg *config.Config
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadConfig(*configPath); err != nil {
			fatal(err)
		}
	} else {
		cfg = config.LoadConfigOrDefault()
	}

	logger, err := monitor.NewLogger(os.Stderr, cfg.Log.Format, cfg.Log.Level)
	if err != nil {
		fatal(err)
	}

	if *scenarioPath == "" {
		level.Error(logger).Log("msg", "missing -scenario")
		os.Exit(2)
	}
	sc, err := LoadScenario(*scenarioPath)
	if err != nil {
		level.Error(logger).Log("msg", "加载场景失败", "err", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	var metrics *monitor.JoinMetrics
	if cfg.Monitor.Enabled {
		metrics = monitor.NewJoinMetrics(reg)
	}

	pool, err := workerpool.New(workerpool.Config{Size: *workers})
	if err != nil {
		fatal(err)
	}
	defer pool.Close()

	if err := run(context.Background(), cfg, sc, pool, os.Stdout, logger, metrics); err != nil {
		level.Error(logger).Log("msg", "执行失败", "err", err)
		os.Exit(1)
	}

	if *metricsOut != "" {
		if err := prometheus.WriteToTextfile(*metricsOut, reg); err != nil {
			level.Error(logger).Log("msg", "写入指标失败", "err", err)
			os.Exit(1)
		}
	}
}

func fatal(err error) {
	_, _ = os.Stderr.WriteString(err.Error() + "\n")
	os.Exit(1)
}

type splitOutput struct {
	BaseFilter             string   `json:"baseFilter,omitempty"`
	JoinFilter             string   `json:"joinFilter,omitempty"`
	PushDownVirtualColumns []string `json:"pushDownVirtualColumns,omitempty"`
	PreJoinVirtualColumns  []string `json:"preJoinVirtualColumns,omitempty"`
	PostJoinVirtualColumns []string `json:"postJoinVirtualColumns,omitempty"`
}

// run executes a scenario and writes the filter split followed by one JSON
// line per joined row.
func run(ctx context.Context, cfg *config.Config, sc *Scenario, pool *workerpool.Pool, w io.Writer, logger log.Logger, metrics *monitor.JoinMetrics) error {
	joinCfg, err := cfg.Join.WithContext(sc.Context)
	if err != nil {
		return err
	}

	factory, res, err := sc.joinables(ctx, logger)
	if err != nil {
		return err
	}
	defer res.Close()

	mapFn, err := hashjoin.SegmentMapFn(sc.Clauses, factory, joinCfg,
		hashjoin.WithLogger(logger),
		hashjoin.WithMetrics(metrics),
	)
	if err != nil {
		return err
	}

	bases, err := sc.bases()
	if err != nil {
		return err
	}
	segments := make([]segment.StorageAdapter, len(bases))
	for i, base := range bases {
		segments[i] = mapFn(base)
	}

	spec := segment.CursorSpec{}
	if spec.VirtualColumns, err = sc.virtualColumns(); err != nil {
		return err
	}
	if sc.Filter != "" {
		if spec.Filter, err = filter.Parse(sc.Filter); err != nil {
			return errors.Wrap(err, "filter")
		}
	}
	if spec.Granularity, err = segment.ParseGranularity(sc.Granularity); err != nil {
		return err
	}
	spec.Descending = sc.Descending

	enc := json.NewEncoder(w)
	if hj, ok := segments[0].(*hashjoin.HashJoinStorageAdapter); ok {
		pre, split := hj.Split(spec)
		out := splitOutput{
			PushDownVirtualColumns: split.PushDownVirtualColumns.Names(),
			PreJoinVirtualColumns:  pre.PreJoinVirtualColumns.Names(),
			PostJoinVirtualColumns: pre.PostJoinVirtualColumns.Names(),
		}
		if split.BaseFilter != nil {
			out.BaseFilter = split.BaseFilter.String()
		}
		if split.JoinFilter != nil {
			out.JoinFilter = split.JoinFilter.String()
		}
		if err := enc.Encode(map[string]splitOutput{"split": out}); err != nil {
			return err
		}
	}

	results, err := workerpool.ReadSegments(ctx, pool, segments, spec, sc.Columns)
	if err != nil {
		return err
	}
	if err := res.Err(); err != nil {
		return err
	}
	for _, rows := range results {
		for _, row := range rows {
			if err := enc.Encode(row); err != nil {
				return err
			}
		}
	}
	return nil
}

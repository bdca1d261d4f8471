// Command etl loads breach CSV files into a database table.
//
//	etl -config pipelines/breaches.yaml
//	etl -config a.yaml -config b.json -parallel 2
//	etl -config-list pipelines.txt -metrics-backend pushgateway
//
// Settings from a .env file in the working directory are loaded into the
// environment first; ETL_DB_DSN, ETL_DB_TABLE and ETL_DB_MODE override the
// storage block of every pipeline.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"breachetl/internal/config"
	"breachetl/internal/datasource/file"
	"breachetl/internal/etl"
	"breachetl/internal/logging"
	"breachetl/internal/metrics"
	"breachetl/internal/metrics/datadog"
	"breachetl/internal/metrics/prompush"

	// register all backends with the storage factory.
	_ "breachetl/internal/storage/all"
)

// Exit codes.
const (
	exitOK    = 0
	exitRun   = 1
	exitUsage = 2
)

func main() {
	// A missing .env is normal.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stderr, os.Getenv)
	stop()
	os.Exit(code)
}

// multiFlag collects a repeatable string flag.
type multiFlag []string

func (m *multiFlag) String() string { return strings.Join(*m, ",") }

func (m *multiFlag) Set(v string) error {
	*m = append(*m, v)
	return nil
}

type options struct {
	configs        multiFlag
	configList     string
	validate       bool
	parallel       int
	metricsBackend string
	pushGatewayURL string
	statsdAddr     string
	logLevel       string
	logFormat      string
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("etl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Var(&o.configs, "config", "pipeline config path (.json, .yaml); repeatable")
	fs.StringVar(&o.configList, "config-list", "", "file listing one pipeline config path per line")
	fs.BoolVar(&o.validate, "validate", false, "validate the configuration and exit")
	fs.IntVar(&o.parallel, "parallel", 1, "pipelines run concurrently (0 = all)")
	fs.StringVar(&o.metricsBackend, "metrics-backend", "", "metrics backend: none, pushgateway, datadog (env METRICS_BACKEND)")
	fs.StringVar(&o.pushGatewayURL, "pushgateway-url", "", "Pushgateway base URL (env PUSHGATEWAY_URL)")
	fs.StringVar(&o.statsdAddr, "statsd-addr", "", "DogStatsD address (env DD_DOGSTATSD_ADDR)")
	fs.StringVar(&o.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	fs.StringVar(&o.logFormat, "log-format", "console", "log format: console or json")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if fs.NArg() > 0 {
		return o, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return o, nil
}

// run is main without the process exit, so tests can drive it.
func run(ctx context.Context, args []string, stderr io.Writer, getenv func(string) string) int {
	o, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintln(stderr, err)
		return exitUsage
	}

	logger, err := logging.Setup(o.logLevel, o.logFormat)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}
	ctx = logger.WithContext(ctx)

	paths := append([]string(nil), o.configs...)
	if o.configList != "" {
		listed, err := file.ReadConfigList(o.configList)
		if err != nil {
			logger.Error().Err(err).Msg("read config list")
			return exitUsage
		}
		paths = append(paths, listed...)
	}
	if len(paths) == 0 {
		fmt.Fprintln(stderr, "no pipeline config given (use -config or -config-list)")
		return exitUsage
	}

	pipelines, ok := loadPipelines(logger, paths, getenv)
	if !ok {
		return exitUsage
	}
	if o.validate {
		logger.Info().Strs("configs", paths).Msg("configuration is valid")
		return exitOK
	}

	backend, err := metricsBackend(o, getenv, jobName(pipelines))
	if err != nil {
		logger.Error().Err(err).Msg("metrics backend")
		return exitUsage
	}
	if backend != nil {
		metrics.SetBackend(backend)
		defer func() {
			if err := metrics.Flush(); err != nil {
				logger.Warn().Err(err).Msg("metrics flush")
			}
			metrics.SetBackend(nil)
		}()
	}

	sums, err := etl.RunAll(ctx, pipelines, o.parallel)
	for _, s := range sums {
		if s.RunID == "" {
			continue
		}
		logger.Info().
			Str("job", s.Job).
			Str("run_id", s.RunID).
			Int64("written", s.Written).
			Dur("took", s.Duration).
			Msg("pipeline summary")
	}
	if err != nil {
		logger.Error().Err(err).Msg("run failed")
		return exitRun
	}
	return exitOK
}

// loadPipelines decodes, overrides and validates every path. All issues are
// logged before reporting failure.
func loadPipelines(logger zerolog.Logger, paths []string, getenv func(string) string) ([]config.Pipeline, bool) {
	pipelines := make([]config.Pipeline, 0, len(paths))
	ok := true
	for _, path := range paths {
		p, err := config.Load(path)
		if err != nil {
			logger.Error().Err(err).Str("config", path).Msg("load config")
			ok = false
			continue
		}
		config.ApplyEnv(&p, getenv)
		if p.Job == "" {
			p.Job = "etl_job"
		}
		issues := config.ValidatePipeline(p)
		for _, iss := range issues {
			ev := logger.Warn()
			if iss.Severity == config.SeverityError {
				ev = logger.Error()
			}
			ev.Str("config", path).Str("path", iss.Path).Msg(iss.Message)
		}
		if config.HasErrors(issues) {
			ok = false
			continue
		}
		pipelines = append(pipelines, p)
	}
	return pipelines, ok
}

// metricsBackend picks the backend: flag, then env, then none. A nil
// backend means metrics stay disabled.
func metricsBackend(o options, getenv func(string) string, job string) (metrics.Backend, error) {
	name := o.metricsBackend
	if name == "" {
		name = getenv("METRICS_BACKEND")
	}
	switch name {
	case "", "none":
		return nil, nil
	case "pushgateway":
		url := firstNonEmpty(o.pushGatewayURL, getenv("PUSHGATEWAY_URL"), "http://localhost:9091")
		return prompush.NewBackend(job, url)
	case "datadog":
		addr := firstNonEmpty(o.statsdAddr, getenv("DD_DOGSTATSD_ADDR"), "127.0.0.1:8125")
		return datadog.NewBackend(datadog.Config{Addr: addr, Namespace: "breachetl."})
	default:
		return nil, fmt.Errorf("unknown metrics backend %q", name)
	}
}

// jobName labels pushed metrics; one pipeline lends its job name.
func jobName(pipelines []config.Pipeline) string {
	if len(pipelines) == 1 {
		return pipelines[0].Job
	}
	return "breachetl"
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// Command xlog4 loads a logging configuration, drives synthetic load through
// it and serves an admin API with Prometheus metrics and logger levels.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v2"

	"github.com/trickstertwo/xlog4"
	"github.com/trickstertwo/xlog4/config"
	"github.com/trickstertwo/xlog4/status"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

var configFlag = &cli.StringFlag{
	Name:    "config",
	Aliases: []string{"c"},
	Usage:   "YAML configuration file; XLOG4_* variables override it",
	EnvVars: []string{"XLOG4_CONFIG"},
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "xlog4"
	app.Usage = "Run and inspect xlog4 logging configurations"
	app.Flags = []cli.Flag{configFlag}
	app.Commands = []*cli.Command{
		{
			Name:   "validate",
			Usage:  "Load and validate the configuration, then print its logger tree",
			Action: runValidate,
		},
		{
			Name:   "types",
			Usage:  "List the registered appender types",
			Action: runTypes,
		},
		{
			Name:  "run",
			Usage: "Start the configuration, generate load and serve the admin API",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "listen", Value: "127.0.0.1:9464", Usage: "admin API address; empty disables it"},
				&cli.IntFlag{Name: "producers", Value: 4, Usage: "concurrent producer goroutines"},
				&cli.Float64Flag{Name: "rate", Value: 100, Usage: "events per second per producer; 0 is unthrottled"},
				&cli.DurationFlag{Name: "duration", Value: 10 * time.Second, Usage: "load duration; 0 runs until interrupted"},
				&cli.StringSliceFlag{Name: "logger", Value: cli.NewStringSlice("load"), Usage: "logger names to log through"},
				&cli.BoolFlag{Name: "watch", Usage: "reload the configuration file when it changes"},
			},
			Action: runLoad,
		},
	}
	return app
}

func runValidate(c *cli.Context) error {
	cfg, _, err := config.LoadConfiguration(c.String(configFlag.Name), config.Options{})
	if err != nil {
		return err
	}
	for _, lc := range cfg.LoggerConfigs() {
		v := view(lc)
		fmt.Fprintf(c.App.Writer, "%-24s %-6s additive=%-5t %-5s -> %s\n",
			v.Name, v.Effective, v.Additive, v.Mode, strings.Join(v.Appenders, ","))
	}
	return nil
}

func runTypes(c *cli.Context) error {
	for _, t := range config.NewRegistry().AppenderTypes() {
		fmt.Fprintln(c.App.Writer, t)
	}
	return nil
}

func runLoad(c *cli.Context) error {
	path := c.String(configFlag.Name)
	f, err := config.Load(path)
	if err != nil {
		return err
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f.Metrics.Enabled = true
	st := status.New(os.Stderr, status.ParseLevel(f.Status.Level))
	opts := config.Options{Status: st, Registerer: reg}
	cfg, err := config.Build(f, opts)
	if err != nil {
		return err
	}
	lctx := xlog4.NewLoggerContext(cfg, xlog4.ContextOptions{Status: st})

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if c.Bool("watch") && path != "" {
		w, err := config.Watch(path, lctx, config.Options{Status: st, Metrics: cfg.Metrics()})
		if err != nil {
			return err
		}
		defer w.Close()
	}

	var srv *http.Server
	if addr := c.String("listen"); addr != "" {
		srv = &http.Server{Addr: addr, Handler: newRouter(lctx, reg), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				st.Error().Err(err).Str("addr", addr).Msg("admin server failed")
				stop()
			}
		}()
		st.Info().Str("addr", addr).Msg("admin API listening")
	}

	res := generate(ctx, lctx, loadPlan{
		Producers: c.Int("producers"),
		Rate:      c.Float64("rate"),
		Duration:  c.Duration("duration"),
		Loggers:   c.StringSlice("logger"),
	})

	if srv != nil {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(sctx)
		cancel()
	}
	drained := lctx.Stop(0)
	fmt.Fprintf(c.App.Writer, "events=%d errors=%d elapsed=%s rate=%.0f/s drained=%t\n",
		res.Events, res.Errors, res.Elapsed.Round(time.Millisecond),
		float64(res.Events)/res.Elapsed.Seconds(), drained)
	return nil
}

// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

// Program tinymq runs the brokers and example roles of a tinymq deployment.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/creachadair/command"
	"github.com/creachadair/flax"
	"github.com/creachadair/mds/value"
	"github.com/creachadair/taskgroup"
	"github.com/creachadair/tinymq"
	"github.com/creachadair/tinymq/broker"
	"github.com/creachadair/tinymq/config"
	"github.com/creachadair/tinymq/handler"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var flags struct {
	Config      string `flag:"config,Path of YAML settings file (optional)"`
	MetricsAddr string `flag:"metrics-addr,Serve Prometheus metrics at this address (optional)"`
	JSONLog     bool   `flag:"json-log,Write logs as JSON rather than text"`
}

var portFlags struct {
	Clients int `flag:"clients-port,Port for request-side connections (default from config)"`
	Peers   int `flag:"peers-port,Port for worker or subscriber connections (default from config)"`
}

var roleFlags struct {
	URI      string        `flag:"uri,Broker URI (default from config)"`
	Interval time.Duration `flag:"interval,default=2s,Period between messages"`
}

func main() {
	root := &command.C{
		Name:     filepath.Base(os.Args[0]),
		Help:     "Run tinymq brokers and example roles.",
		SetFlags: command.Flags(flax.MustBind, &flags),
		Commands: []*command.C{
			{
				Name: "broker",
				Help: "Run a broker.",
				Commands: []*command.C{
					{
						Name:     "balancing",
						Help:     "Run a balancing broker between clients and workers.",
						SetFlags: command.Flags(flax.MustBind, &portFlags),
						Run:      runBalancing,
					},
					{
						Name:     "broadcast",
						Help:     "Run a broadcast broker between publishers and subscribers.",
						SetFlags: command.Flags(flax.MustBind, &portFlags),
						Run:      runBroadcast,
					},
				},
			},
			{
				Name: "worker",
				Help: `Serve requests from a balancing broker.

Each request is answered with its parameters plus a random "value" field.`,
				SetFlags: command.Flags(flax.MustBind, &roleFlags),
				Run:      runWorker,
			},
			{
				Name:     "client",
				Help:     "Send a numbered request through a balancing broker periodically.",
				SetFlags: command.Flags(flax.MustBind, &roleFlags),
				Run:      runClient,
			},
			{
				Name:     "publish",
				Help:     "Publish a numbered notification through a broadcast broker periodically.",
				SetFlags: command.Flags(flax.MustBind, &roleFlags),
				Run:      runPublish,
			},
			{
				Name:     "subscribe",
				Help:     "Print notifications relayed by a broadcast broker.",
				SetFlags: command.Flags(flax.MustBind, &roleFlags),
				Run:      runSubscribe,
			},
			command.VersionCommand(),
			command.HelpCommand(nil),
		},
	}
	command.RunOrFail(root.NewEnv(nil).MergeFlags(true), os.Args[1:])
}

// setup loads the settings and starts the ambient services shared by all
// subcommands. The returned context ends on SIGINT or SIGTERM; the returned
// function stops the services.
func setup(name string) (context.Context, *config.Config, *zerolog.Logger, func(), error) {
	cfg, err := config.Load(flags.Config, nil)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	out := value.Cond[io.Writer](flags.JSONLog, os.Stderr,
		zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	log := zerolog.New(out).With().Timestamp().Str("app", cfg.ComponentName).Str("cmd", name).Logger()
	if cfg.Debug {
		log = log.Level(zerolog.DebugLevel)
	} else {
		log = log.Level(zerolog.InfoLevel)
	}
	for _, v := range cfg.Overrides {
		log.Info().Str("var", v).Msg("using environment variable")
	}

	ctx, stop := signal.NotifyContext(log.WithContext(context.Background()), os.Interrupt, syscall.SIGTERM)
	g := taskgroup.New(nil)
	if flags.MetricsAddr != "" {
		if err := tinymq.RegisterMetrics(prometheus.DefaultRegisterer); err != nil {
			stop()
			return nil, nil, nil, nil, fmt.Errorf("register metrics: %w", err)
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: flags.MetricsAddr, Handler: mux}
		g.Go(func() error {
			log.Info().Str("addr", flags.MetricsAddr).Msg("serving metrics")
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("metrics server failed")
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(sctx)
		})
	}
	return ctx, cfg, &log, func() { stop(); g.Wait() }, nil
}

func ports(cfg *config.Config) (int, int) {
	clients, peers := portFlags.Clients, portFlags.Peers
	if clients == 0 {
		clients = cfg.ClientPort
	}
	if peers == 0 {
		peers = cfg.WorkerPort
	}
	return clients, peers
}

func uri(dflt string) string {
	if roleFlags.URI != "" {
		return roleFlags.URI
	}
	return dflt
}

func runBalancing(env *command.Env) error {
	ctx, cfg, log, done, err := setup("broker-balancing")
	if err != nil {
		return err
	}
	defer done()
	clients, workers := ports(cfg)
	return broker.RunBalancing(ctx, clients, workers, cfg.BrokerOptions(log))
}

func runBroadcast(env *command.Env) error {
	ctx, cfg, log, done, err := setup("broker-broadcast")
	if err != nil {
		return err
	}
	defer done()
	clients, subscribers := ports(cfg)
	b, err := broker.ListenBroadcast(ctx, clients, subscribers, cfg.BrokerOptions(log))
	if err != nil {
		return err
	}
	return b.Run(ctx)
}

func runWorker(env *command.Env) error {
	ctx, cfg, log, done, err := setup("worker")
	if err != nil {
		return err
	}
	defer done()

	w := tinymq.NewWorker(cfg.Options(log))
	defer w.Shutdown()
	if err := w.Connect(uri(cfg.WorkerURI), handler.ParamResult(
		func(_ context.Context, params map[string]any) map[string]any {
			log.Info().Interface("params", params).Msg("the worker got")
			params["value"] = rand.Float64()
			return params
		},
	)); err != nil {
		return err
	}
	<-ctx.Done()
	return nil
}

func runClient(env *command.Env) error {
	ctx, cfg, log, done, err := setup("client")
	if err != nil {
		return err
	}
	defer done()

	c := tinymq.NewClient(cfg.Options(log))
	defer c.Shutdown()
	if err := c.Connect(uri(cfg.ClientURI)); err != nil {
		return err
	}
	return every(ctx, func(i int) error {
		req := map[string]any{"number": i, "pid": os.Getpid()}
		log.Info().Interface("request", req).Msg("the client requests")
		_, err := c.Send(req, func(rsp json.RawMessage, err error) {
			if err != nil {
				log.Error().Err(err).Int("number", i).Msg("request failed")
				return
			}
			log.Info().RawJSON("response", rsp).Msg("the client got back")
		})
		return err
	})
}

func runPublish(env *command.Env) error {
	ctx, cfg, log, done, err := setup("publish")
	if err != nil {
		return err
	}
	defer done()

	p := tinymq.NewPublisher(cfg.Options(log))
	defer p.Shutdown()
	if err := p.Connect(uri(cfg.ClientURI)); err != nil {
		return err
	}
	return every(ctx, func(i int) error {
		msg := map[string]any{"number": i, "pid": os.Getpid()}
		log.Info().Interface("notification", msg).Msg("the client notifies")
		return p.Publish(msg)
	})
}

func runSubscribe(env *command.Env) error {
	ctx, cfg, log, done, err := setup("subscribe")
	if err != nil {
		return err
	}
	defer done()

	s := tinymq.NewSubscriber(cfg.Options(log))
	defer s.Shutdown()
	if err := s.Connect(uri(cfg.WorkerURI), func(_ context.Context, msg json.RawMessage) error {
		log.Info().RawJSON("notification", msg).Msg("the subscriber got")
		return nil
	}); err != nil {
		return err
	}
	<-ctx.Done()
	return nil
}

// every calls f with successive message numbers at the configured interval
// until ctx ends. Errors from f are logged but do not stop the loop, except
// ErrClosed.
func every(ctx context.Context, f func(int) error) error {
	tick := time.NewTicker(roleFlags.Interval)
	defer tick.Stop()
	for i := 1; ; i++ {
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
			if err := f(i); errors.Is(err, tinymq.ErrClosed) {
				return err
			} else if err != nil {
				zerolog.Ctx(ctx).Error().Err(err).Msg("send failed")
			}
		}
	}
}

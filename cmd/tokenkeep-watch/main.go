package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-logr/stdr"
	"github.com/redis/go-redis/v9"

	tokenkeep "github.com/tokenkeep/tokenkeep"
	promexport "github.com/tokenkeep/tokenkeep/metrics/export/prometheus"
)

func main() {
	var (
		baseURL     = flag.String("url", "", "base URL of the authority (required)")
		checkPath   = flag.String("check-path", "/auth/check", "path of the token check endpoint")
		refreshPath = flag.String("refresh-path", "/auth/refresh", "path of the token refresh endpoint")
		access      = flag.String("access", "", "initial access token (required)")
		refresh     = flag.String("refresh", "", "initial refresh token")
		interval    = flag.Duration("interval", time.Second, "expiration check interval")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		remember    = flag.Bool("remember", false, "persist credentials in the durable tier")
		metricsAddr = flag.String("metrics-addr", "", "if set, serve Prometheus metrics on this address")
		verbosity   = flag.Int("v", 0, "log verbosity")
	)
	flag.Parse()

	if *baseURL == "" || *access == "" {
		fmt.Fprintln(os.Stderr, "url and access are required")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	stdr.SetVerbosity(*verbosity)
	logger := stdr.New(log.New(os.Stderr, "", log.LstdFlags))

	cfg := tokenkeep.DefaultConfig()
	cfg.Renewal.BaseURL = *baseURL
	cfg.Renewal.CheckPath = *checkPath
	cfg.Renewal.RefreshPath = *refreshPath
	cfg.Checker.Interval = *interval
	cfg.Storage.Remember = *remember
	cfg.Metrics.Enabled = *metricsAddr != ""
	cfg.Metrics.EnableLatencyHistograms = *metricsAddr != ""

	events := tokenkeep.NewChannelSink(64)

	session, err := tokenkeep.New().
		WithConfig(cfg).
		WithRedis(client, 24*time.Hour).
		WithTokens(*access, *refresh).
		WithLogger(logger).
		WithEventSink(events).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build failed: %v\n", err)
		os.Exit(1)
	}

	if *metricsAddr != "" {
		exporter := promexport.NewPrometheusExporter(session)
		mux := http.NewServeMux()
		mux.Handle("/metrics", exporter.Handler())
		go func() {
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				fmt.Fprintf(os.Stderr, "metrics server: %v\n", err)
			}
		}()
		fmt.Printf("serving metrics at http://%s/metrics\n", *metricsAddr)
	}

	go printEvents(events)

	snapshot, err := session.Init(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("session %s armed, valid=%t\n", session.ID(), snapshot.Valid)
	if exp, ok := snapshot.Claims.Access.ExpiresAt(); ok {
		fmt.Printf("access token expires at %s\n", exp.Format(time.RFC3339))
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs

	fmt.Println("signing out...")
	session.Close(ctx)
}

func printEvents(sink *tokenkeep.ChannelSink) {
	for event := range sink.Events() {
		fmt.Printf("[%s] %s token=%s status=%d success=%t error=%q\n",
			event.Timestamp.Format(time.RFC3339),
			event.EventType,
			event.Token,
			event.Status,
			event.Success,
			event.Error,
		)
	}
}

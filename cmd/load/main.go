package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"tennisetl/internal/config"
	"tennisetl/internal/ingest"
	"tennisetl/internal/metrics"
	"tennisetl/internal/metrics/datadog"
	"tennisetl/internal/metrics/prompush"

	// register all backends with the storage factory.
	// the plan specifies which to use but we need to build in support for all of them.
	_ "tennisetl/internal/storage/all"
)

// main is the entry point for the load binary. It decodes the plan,
// optionally initializes a metrics backend, and executes the run.
func main() {
	var (
		planPath          string
		metricsBackendFlg string
		pushGatewayURLFlg string
		datadogAddrFlg    string
		validate          bool
		strict            bool
	)

	flag.StringVar(&planPath, "config", "configs/plans/atp.json", "load plan JSON path")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "none", "metrics backend to use (pushgateway, datadog, none)")
	flag.StringVar(&pushGatewayURLFlg, "pushgateway-url", "", "Pushgateway base URL (overrides env PUSHGATEWAY_URL)")
	flag.StringVar(&datadogAddrFlg, "datadog-addr", "", "DogStatsD address (overrides env DD_AGENT_ADDR)")
	flag.BoolVar(&validate, "validate", false, "validate the plan and exit")
	flag.BoolVar(&strict, "strict", false, "exit non-zero when any extract fails")
	verbose := flag.Bool("v", false, "enable verbose logs")

	flag.Parse()

	f, err := os.Open(planPath)
	if err != nil {
		fatalf("open plan: %v", err)
	}
	defer f.Close()

	var p config.Plan
	if err := json.NewDecoder(f).Decode(&p); err != nil {
		fatalf("decode plan: %v", err)
	}

	issues := config.ValidatePlan(p)
	hasError := false
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
		if iss.Severity == config.SeverityError {
			hasError = true
		}
	}
	if hasError {
		log.Printf("plan is invalid: %v", planPath)
		os.Exit(1)
	}

	// If validate flag is set, only validate the plan and exit
	if validate {
		log.Printf("plan is valid: %v", planPath)
		os.Exit(0)
	}

	// DSN fallback: plan → env.
	if p.Storage.DB.DSN == "" {
		p.Storage.DB.DSN = os.Getenv("PG_URL")
	}

	// Decide metrics backend: flag → env → default.
	backendName := metricsBackendFlg
	if backendName == "" {
		backendName = os.Getenv("METRICS_BACKEND")
	}
	switch backendName {
	case "pushgateway":
		// Decide Pushgateway URL: flag → env → default.
		gwURL := pushGatewayURLFlg
		if gwURL == "" {
			gwURL = os.Getenv("PUSHGATEWAY_URL")
		}
		if gwURL == "" {
			gwURL = "http://localhost:9091"
		}

		jobName := p.Job
		if jobName == "" {
			jobName = "tennis_load"
		}

		b, err := prompush.NewBackend(jobName, gwURL)
		if err != nil {
			log.Printf("metrics: failed to init prom push backend: %v; using nop", err)
		} else {
			log.Printf("metrics: url=%v, backend=%v, job_name=%v", gwURL, backendName, jobName)
			metrics.SetBackend(b)
			defer func() {
				if err := metrics.Flush(); err != nil {
					log.Printf("metrics: flush error: %v", err)
				}
			}()
		}

	case "datadog":
		addr := datadogAddrFlg
		if addr == "" {
			addr = os.Getenv("DD_AGENT_ADDR")
		}
		if addr == "" {
			addr = "127.0.0.1:8125"
		}

		b, err := datadog.NewBackend(datadog.Config{
			Addr:      addr,
			Namespace: "tennisetl.",
		})
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
		} else {
			log.Printf("metrics: addr=%v, backend=%v", addr, backendName)
			metrics.SetBackend(b)
			defer func() {
				if err := metrics.Flush(); err != nil {
					log.Printf("metrics: flush error: %v", err)
				}
			}()
		}

	case "", "none":
		// metrics disabled; nop backend remains
		if *verbose {
			log.Printf("metrics: disabled (backend=%q)", backendName)
		}

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", backendName)
	}

	ctx := context.Background()

	if *verbose {
		log.Printf("plan: job=%s storage=%s schema=%s entities=%d",
			p.Job, p.Storage.Kind, p.Storage.DB.Schema, len(p.Entities))
	}

	sum, err := ingest.Run(ctx, p)
	if sum != nil {
		sum.Log()
	}
	if err != nil {
		log.Fatalf("%v", err)
	}
	if strict && sum.Failed() {
		log.Fatalf("one or more extracts failed (strict mode)")
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}

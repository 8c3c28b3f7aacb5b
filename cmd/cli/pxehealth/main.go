package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	retryablehttp "github.com/hashicorp/go-retryablehttp"
	flags "github.com/jessevdk/go-flags"

	"github.com/netboot-tools/pxe-supervisor/pkg/config"
	"github.com/netboot-tools/pxe-supervisor/pkg/logging"
	"github.com/netboot-tools/pxe-supervisor/pkg/monitoring"
	"github.com/netboot-tools/pxe-supervisor/pkg/supervisor"
)

type flagOptions struct {
	Host    string `long:"host" default:"127.0.0.1" description:"supervisor host"`
	Port    int    `long:"port" default:"9091" description:"supervisor health port"`
	Timeout int    `long:"timeout" default:"5" description:"request timeout in seconds"`
	JSON    bool   `long:"json" description:"print the raw health report JSON"`
	Direct  bool   `long:"direct" description:"run network and filesystem probes in-process instead of querying the endpoint"`
}

func main() {
	var opts flagOptions
	parser := flags.NewParser(&opts, flags.HelpFlag)
	_, err := parser.ParseArgs(os.Args[1:])
	if err != nil {
		fmt.Printf("Command line flags parsing failed: %v\n", err)
		os.Exit(1)
	}

	var report monitoring.Report
	if opts.Direct {
		report, err = directReport(opts)
	} else {
		report, err = endpointReport(opts)
	}
	if err != nil {
		fmt.Printf("%v\n", err)
		os.Exit(1)
	}

	if opts.JSON {
		encoded, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			fmt.Printf("Failed to encode health report: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(encoded))
	} else {
		printReport(report)
	}

	if !report.Healthy {
		os.Exit(1)
	}
}

// endpointReport fetches the last report from the supervisor's health
// endpoint.
func endpointReport(opts flagOptions) (monitoring.Report, error) {
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.HTTPClient.Timeout = time.Duration(opts.Timeout) * time.Second
	client.Logger = nil
	// 503 is the endpoint's way of saying "unhealthy, report attached";
	// retrying it would swallow the report we came for
	client.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if resp != nil && resp.StatusCode == http.StatusServiceUnavailable {
			return false, nil
		}
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}

	url := fmt.Sprintf("http://%s:%d/healthz", opts.Host, opts.Port)
	response, err := client.Get(url)
	if err != nil {
		return monitoring.Report{}, fmt.Errorf("health endpoint unreachable: %w", err)
	}
	defer response.Body.Close()

	return decodeReport(response)
}

// decodeReport reads the report body from a health endpoint response.
// Both 200 and 503 carry a report; anything else is a broken endpoint.
func decodeReport(response *http.Response) (monitoring.Report, error) {
	if response.StatusCode != http.StatusOK && response.StatusCode != http.StatusServiceUnavailable {
		return monitoring.Report{}, fmt.Errorf("health endpoint returned unexpected status %d", response.StatusCode)
	}
	var report monitoring.Report
	if err := json.NewDecoder(response.Body).Decode(&report); err != nil {
		return monitoring.Report{}, fmt.Errorf("failed to decode health report: %w", err)
	}
	return report, nil
}

// directReport runs the network and filesystem probe battery in-process.
// Liveness probes need the supervisor's process table and are skipped;
// the port and fetch probes still catch a dead daemon.
func directReport(opts flagOptions) (monitoring.Report, error) {
	cfg, err := config.Load()
	if err != nil {
		return monitoring.Report{}, fmt.Errorf("configuration rejected: %w", err)
	}

	overrides, err := config.LoadDaemonsFile(cfg.DaemonsFile)
	if err != nil {
		return monitoring.Report{}, fmt.Errorf("daemon overrides rejected: %w", err)
	}

	descriptors := supervisor.BuildDescriptors(cfg, overrides)
	baseURL := fmt.Sprintf("http://%s:%d", cfg.HostIP, cfg.HTTPPort)
	battery := supervisor.BuildBattery(cfg, descriptors, nil, baseURL, logging.NopLogger{})
	monitor := monitoring.NewMonitor(battery, cfg.ProbeTimeout, logging.NopLogger{})

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(opts.Timeout)*time.Second)
	defer cancel()
	return monitor.Run(ctx), nil
}

func printReport(report monitoring.Report) {
	for _, result := range report.Results {
		status := "PASS"
		if !result.Passed {
			status = "FAIL"
		}
		fmt.Printf("%-4s  %-28s  %s\n", status, result.Name, result.Message)
	}
	if report.Healthy {
		fmt.Printf("healthy: %d checks passed (checked at %s)\n",
			len(report.Results), report.CheckedAt.Format(time.RFC3339))
	} else {
		fmt.Printf("unhealthy: %d of %d checks failing (checked at %s)\n",
			report.Failures, len(report.Results), report.CheckedAt.Format(time.RFC3339))
	}
}

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BaSui01/careflow/config"
	"github.com/BaSui01/careflow/scenarios"
)

// =============================================================================
// 🎬 scenarios 命令：演示场景驱动
// =============================================================================

// runScenarios drives the six canonical demo conversations against a live
// router and prints a pass/fail summary.
func runScenarios(args []string) {
	fs := flag.NewFlagSet("scenarios", flag.ExitOnError)
	routerURL := fs.String("router", fmt.Sprintf("http://localhost:%d", config.DefaultRouterPort), "Router agent base URL")
	only := fs.String("only", "", "Run a single scenario by name")
	fs.Parse(args)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	selected := scenarios.All()
	if *only != "" {
		selected = nil
		for _, s := range scenarios.All() {
			if s.Name == *only {
				selected = append(selected, s)
			}
		}
		if len(selected) == 0 {
			fmt.Fprintf(os.Stderr, "Unknown scenario: %s\n", *only)
			fmt.Fprintln(os.Stderr, "Available scenarios:")
			for _, s := range scenarios.All() {
				fmt.Fprintf(os.Stderr, "  %s\n", s.Name)
			}
			os.Exit(1)
		}
	}

	runner := scenarios.NewRunner(*routerURL)
	results := runner.RunAll(ctx, selected)

	failed := 0
	for _, result := range results {
		if result.Passed() {
			fmt.Printf("PASS  %-32s %8s  %s\n",
				result.Scenario.Name,
				result.Elapsed.Round(time.Millisecond),
				result.Scenario.Description,
			)
			continue
		}
		failed++
		fmt.Printf("FAIL  %-32s %8s  %v\n",
			result.Scenario.Name,
			result.Elapsed.Round(time.Millisecond),
			result.Err,
		)
	}

	fmt.Printf("\n%d/%d scenarios passed\n", len(results)-failed, len(results))
	if failed > 0 {
		os.Exit(1)
	}
}

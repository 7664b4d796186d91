// Package main provides a command line runner for the product shot pipeline.
// It executes a single run synchronously and prints the step outcomes, which
// is handy for trying prompts without standing up the HTTP server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/mirovado/firefly-gateway/internal/bootstrap"
	"github.com/mirovado/firefly-gateway/internal/config"
	"github.com/mirovado/firefly-gateway/internal/workflow"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		bucket  = flag.String("bucket", "", "storage bucket holding the product image (defaults to S3_BUCKET)")
		product = flag.String("product", "", "object key of the source product image")
		output  = flag.String("output", "", "object key the finished image is written to")
		prompt  = flag.String("prompt", "", "scene to render the product into")
		style   = flag.String("style", "", "optional style reference image URL")
		timeout = flag.Duration("timeout", 30*time.Minute, "overall pipeline deadline")
	)
	flag.Parse()

	// Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Create structured logger
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	if *bucket == "" {
		*bucket = cfg.S3Bucket
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	// Initialize dependencies using bootstrap
	deps, err := bootstrap.NewDependencies(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize dependencies: %w", err)
	}

	created, err := deps.Workflows.CreateRun(ctx, workflow.ProductShotRequest{
		Bucket:            *bucket,
		ProductKey:        *product,
		OutputKey:         *output,
		Prompt:            *prompt,
		StyleReferenceURL: *style,
	})
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}

	logger.Info("executing product shot run",
		slog.String("run_id", created.ID),
		slog.String("bucket", *bucket),
		slog.String("product_key", *product),
		slog.String("output_key", *output),
	)

	done, err := deps.Workflows.ExecuteRun(ctx, created.ID)
	if err != nil {
		return fmt.Errorf("execute run: %w", err)
	}

	for _, step := range done.Steps {
		fmt.Printf("step %-10s status=%-10s attempts=%d", step.Name, step.Status, step.Attempts)
		if step.Error != "" {
			fmt.Printf(" error=%s", step.Error)
		}
		fmt.Println()
	}

	if done.Status != workflow.StatusCompleted {
		return fmt.Errorf("run %s finished %s: %s", done.ID, done.Status, done.Error)
	}

	fmt.Printf("run %s completed: s3://%s/%s\n", done.ID, done.Bucket, done.OutputKey)
	if done.ResultURL != "" {
		fmt.Printf("composite result: %s\n", done.ResultURL)
	}
	return nil
}

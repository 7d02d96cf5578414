package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	envFile string
	rootCmd = &cobra.Command{
		Use:   "satinel",
		Short: "Run building statistics and change detection tasks offline",
		Long: `satinel runs analysis tasks against the configured imagery and detection
stack without the HTTP service and prints the results as JSON.`,
		SilenceUsage: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", "path to load env from")

	rootCmd.AddCommand(batchCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(maskCmd())
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		slog.Info("received interrupt signal, cancelling remaining tasks")
		cancel()
	}()

	err := rootCmd.ExecuteContext(ctx)
	cancel()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/sumire/providerlab/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().ExecuteContext(context.Background()); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

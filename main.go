package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/m-ll/backup/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "ecc:", err)
		stop()
		os.Exit(1)
	}
}

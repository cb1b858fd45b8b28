// Command deadline is the command-line front end of the deadline agent.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/turtacn/deadline-agent/internal/interfaces/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := cli.Execute(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

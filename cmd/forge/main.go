package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"forge/internal/cli"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	root := cli.NewRootCommand()
	root.SetArgs(os.Args[1:])

	err := root.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(cli.ExitCodeOf(err))
}

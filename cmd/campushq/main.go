package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	campushq "github.com/campushq/campushq/internal/cmd/campushq"
	"github.com/campushq/campushq/internal/platform/config"
)

func main() {
	log.SetPrefix("[CAMPUSHQ] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := campushq.Run(ctx, os.Args[1:], os.Stdout); err != nil {
		stop()
		config.Exitf("campushq: %v", err)
	}
}

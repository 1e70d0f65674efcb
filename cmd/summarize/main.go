package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/dgallion1/pdfbrief/internal/cli"
	"github.com/joho/godotenv"
)

func main() {
	// A missing .env is fine.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.New().Run(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}

package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/youruser/tokenizer/internal/app"
	"github.com/youruser/tokenizer/internal/config"
)

func main() {
	log.SetPrefix("[TOKENIZER] ")
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Serve(ctx, cfg); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}

package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	worldcmd "github.com/louisbranch/meshmush/internal/cmd/worldd"
)

func main() {
	cfg, err := worldcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix("[WORLDD] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := worldcmd.Run(ctx, cfg); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}

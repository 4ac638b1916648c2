package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/anayy09/FinMate/internal/buildinfo"
	"github.com/anayy09/FinMate/internal/client/cli"
	"github.com/anayy09/FinMate/internal/client/config"
)

func main() {

	buildinfo.PrintBanner(os.Stdout, "FinMate")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadConfig()
	app, err := cli.NewApp(ctx, cfg)

	if err != nil {
		log.Fatalf("%v", err)
		return
	}

	app.Run(ctx)

}

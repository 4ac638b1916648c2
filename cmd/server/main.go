package main

import (
	"context"
	"log"
	"os"

	"github.com/anayy09/FinMate/internal/buildinfo"
	"github.com/anayy09/FinMate/internal/server"
	"github.com/anayy09/FinMate/internal/server/config"
)

func main() {

	buildinfo.PrintBanner(os.Stdout, "FinMate dev")

	ctx := context.Background()
	cfg := config.LoadConfig()
	app, err := server.NewApp(ctx, cfg)

	if err != nil {
		log.Printf("%v", err)
		return
	}

	app.Run(ctx)

}

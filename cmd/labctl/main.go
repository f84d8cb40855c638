package main

import (
	"log"
	"os"

	"lab-dashboard/internal/app"
	"lab-dashboard/internal/cli"
	"lab-dashboard/internal/config"
	"lab-dashboard/internal/logger"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	a, err := app.New(cfg, app.Options{})
	if err != nil {
		log.Fatal("Failed to initialize services:", err)
	}

	cli.SetServices(a.Documents, a.Engine)
	err = cli.Execute()
	a.Close()
	if err != nil {
		os.Exit(1)
	}
}

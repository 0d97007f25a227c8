package main

import (
	app "affiliate-gateway/internal/app/server"
	"affiliate-gateway/internal/config"
)

func main() {
	cfg := config.Load()
	config.SetupLogging(cfg)
	app.Run(cfg)
}

package main

import (
	"embed"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"github.com/chazu/stepview/pkg/config"
	"github.com/chazu/stepview/pkg/logger"
	"github.com/chazu/stepview/pkg/viewer"
)

//go:embed all:frontend/dist
var assets embed.FS

func main() {
	cfg, err := config.Load("")
	if err != nil {
		logger.Log.WithError(err).Fatal("stepview: config")
	}
	logger.Init(cfg.LoggerOptions())

	v, err := viewer.FromConfig(cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("stepview: viewer")
	}
	app := NewApp(v)

	err = wails.Run(&options.App{
		Title:  "stepview",
		Width:  1280,
		Height: 800,
		AssetServer: &assetserver.Options{
			Assets: assets,
		},
		BackgroundColour: &options.RGBA{R: 240, G: 240, B: 240, A: 255},
		OnStartup:        app.startup,
		Bind: []interface{}{
			app,
		},
	})
	if err != nil {
		logger.Log.WithError(err).Fatal("stepview: wails")
	}
}

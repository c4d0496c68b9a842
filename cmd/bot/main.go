package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/riky-24/bot-medsos-sub000/core/buildinfo"
	"github.com/riky-24/bot-medsos-sub000/core/cmd"
	"github.com/riky-24/bot-medsos-sub000/internal/app"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "config.yaml", "config file path, used when CONFIG_PATH is unset")
	showVersion := flag.Bool("version", false, "print build info and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("bot-medsos %s (%s %s)\n", buildinfo.Version, buildinfo.Commit, buildinfo.Date)
		return nil
	}

	_ = godotenv.Load()

	var application *app.App
	defer func() {
		if application == nil {
			return
		}
		if err := application.Close(); err != nil {
			log.Printf("close error: %v", err)
		}
	}()

	return cmd.Run(cmd.Options{
		DefaultConfigPath: *configPath,
		LoadConfig: func(path string) (cmd.ConfigCarrier, error) {
			return app.Load(path)
		},
		Bootstrap: func(carrier cmd.ConfigCarrier) (cmd.TelegramApp, error) {
			cfg, ok := carrier.(*app.Config)
			if !ok {
				return nil, fmt.Errorf("unexpected config type %T", carrier)
			}
			a, err := app.New(cfg)
			if err != nil {
				return nil, err
			}
			application = a
			return a, nil
		},
	})
}

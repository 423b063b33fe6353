package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lomoval/plannr/internal/account"
	"github.com/lomoval/plannr/internal/app"
	"github.com/lomoval/plannr/internal/backend"
	"github.com/lomoval/plannr/internal/calsync"
	"github.com/lomoval/plannr/internal/export"
	"github.com/lomoval/plannr/internal/ingest"
	"github.com/lomoval/plannr/internal/logger"
	"github.com/lomoval/plannr/internal/registry"
	internalhttp "github.com/lomoval/plannr/internal/server/http"
	"github.com/lomoval/plannr/internal/storagebuilder"
	log "github.com/sirupsen/logrus"
)

var configFile string

func init() {
	flag.StringVar(&configFile, "config", "./configs/config.yaml", "Path to configuration file")
	log.SetFormatter(&log.TextFormatter{})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.WarnLevel)
}

func main() {
	flag.Parse()

	if flag.Arg(0) == "version" {
		printVersion()
		return
	}

	config, err := NewConfig(configFile)
	if err != nil {
		log.Errorf("failed to start %v", err)
		return
	}
	err = logger.PrepareLogger(config.Logger)
	if err != nil {
		log.Errorf("failed to start %v", err)
		return
	}
	stor, err := storagebuilder.New(config.Storage)
	if err != nil {
		log.Errorf("failed to start %v", err)
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer cancel()

	client := backend.NewFromConfig(config.Backend)
	accounts := account.Context{Fallback: account.Static(config.Account.Email)}
	classes := registry.New(ctx, stor)
	planner := app.New(
		ingest.New(client),
		calsync.New(client, accounts, classes),
		export.New(client, accounts),
		export.DirSink{Dir: config.Export.Dir},
		classes,
	)
	server := internalhttp.NewServer(config.HTTPServer, planner, config.Export.Dir)

	go func() {
		<-ctx.Done()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second*3)
		defer cancel()

		if err := server.Stop(ctx); err != nil {
			log.Error("failed to stop http server: " + err.Error())
		}
	}()

	log.Info("plannr is running...")

	if err := server.Start(ctx); err != nil {
		log.Error("failed to start http server: " + err.Error())
		cancel()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second*3)
		defer cancel()
		err := stor.Close(ctx)
		if err != nil {
			log.Errorf("failed to close storage: %v", err)
		}
		os.Exit(1) //nolint:gocritic
	}
	ctx, cancel = context.WithTimeout(context.Background(), time.Second*3)
	defer cancel()
	err = stor.Close(ctx)
	if err != nil {
		log.Errorf("failed to close storage: %v", err)
	}
}

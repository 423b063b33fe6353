package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lomoval/plannr/internal/logger"
	"github.com/lomoval/plannr/internal/model"
	"github.com/lomoval/plannr/internal/rabbit"
	"github.com/lomoval/plannr/internal/registry"
	"github.com/lomoval/plannr/internal/reminder"
	"github.com/lomoval/plannr/internal/storagebuilder"
	log "github.com/sirupsen/logrus"
)

var configFile string

func init() {
	flag.StringVar(&configFile, "config", "./configs/scheduler_config.yaml", "Path to configuration file")
	log.SetFormatter(&log.TextFormatter{})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.WarnLevel)
}

func main() {
	flag.Parse()

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

	r := rabbit.New(config.Rabbit)
	if err := r.Connect(); err != nil {
		log.Errorf("failed to start %v", err)
		return
	}
	defer r.Close()

	stor, err := storagebuilder.New(config.Storage)
	if err != nil {
		log.Errorf("failed to start %v", err)
		return
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second*3)
		defer cancel()
		stor.Close(ctx)
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer cancel()

	source := func(ctx context.Context) ([]model.Class, error) {
		return registry.Load(ctx, stor)
	}
	s := reminder.NewScheduler(source, r, config.Account.Email, config.Scheduler.NotifyBefore)

	log.Info("scheduler is running...")
	if err := s.Run(ctx, config.Scheduler.Interval); err != nil {
		log.Errorf("scheduler stopped: %v", err)
	}
}

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/idusortus/predictwithfriends/internal/config"
	"github.com/idusortus/predictwithfriends/internal/hub"
	"github.com/idusortus/predictwithfriends/internal/janitor"
	"github.com/idusortus/predictwithfriends/internal/server"
	"github.com/idusortus/predictwithfriends/internal/store"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML config file")
	flag.Parse()

	logger := logrus.New()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("Can't load config: ", err)
	}
	if err = cfg.Validate(); err != nil {
		logger.Fatal(err)
	}
	level, _ := logrus.ParseLevel(cfg.LogLevel)
	logger.SetLevel(level)

	// Catch interrupt signals
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sig := <-c
		logger.Infof("Signal: %s", sig)
		cancel()
	}()

	h := hub.New(logger, server.EncodeEvent, hub.Options{
		SendBuffer:     cfg.WS.SendBuffer,
		MaxMessageSize: cfg.WS.MaxMessageSize,
	})
	st, err := store.New(ctx, logger, h, store.Options{
		InviteCodes:     cfg.InviteCodes,
		StartingBalance: decimal.NewFromInt(cfg.StartingBalance),
		SessionTTL:      cfg.SessionTTL.Duration,
		MarketTTL:       cfg.MarketTTL.Duration,
		ChatHistory:     cfg.ChatHistory,
		ChatStateWindow: cfg.ChatStateWindow,
		JournalDSN:      cfg.JournalDSN,
	})
	if err != nil {
		logger.Fatal("Can't open store: ", err)
	}
	logger.Infof("Invite codes: %s", strings.Join(cfg.InviteCodes, ", "))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return h.Run(ctx)
	})
	g.Go(func() error {
		err := server.Start(ctx, server.Config{
			Addr:        cfg.Addr,
			StaticDir:   cfg.StaticDir,
			CORSOrigins: cfg.CORSOrigins,
		}, st, h, logger)
		// A server that failed to start takes the rest down with it.
		cancel()
		return err
	})
	if cfg.SweepSchedule != "" {
		r := janitor.New(logger)
		if err = r.Add(cfg.SweepSchedule, janitor.Sweep(st, logger)); err != nil {
			logger.Fatal("Bad sweep_schedule: ", err)
		}
		g.Go(func() error {
			return r.Run(ctx)
		})
	}

	if err = g.Wait(); err != nil {
		logger.Error(err)
	}
	logger.Info("Exiting...")
}

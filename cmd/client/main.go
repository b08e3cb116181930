// Package main runs the GophShop interactive client.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"go.uber.org/zap"

	"github.com/atinyakov/GophShop/internal/client/app"
	"github.com/atinyakov/GophShop/internal/client/prompt"
	"github.com/atinyakov/GophShop/internal/config"
	"github.com/atinyakov/GophShop/internal/logger"
)

var (
	version   string
	buildDate string
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "-version" {
		fmt.Printf("GophShop Client\nVersion: %s\nBuild Date: %s\n", version, buildDate)
		return
	}

	opts, err := config.ParseClient(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init(opts.LogLevel); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	p := prompt.New(os.Stdin, os.Stdout)
	bio := &prompt.TerminalBiometrics{Prompter: p, Enrolled: opts.Biometrics}

	a, err := app.Build(opts, bio, nil, log.Log)
	if err != nil {
		log.Log.Fatal("failed to start client", zap.Error(err))
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Log.Warn("close failed", zap.Error(err))
		}
	}()
	a.Bootstrap()

	if v := a.View(); v.Authenticated {
		fmt.Printf("Signed in as %s\n", v.Username)
	}
	(&shell{app: a, prompt: p, out: os.Stdout}).run(ctx)
}

package main

import (
	"context"
	"errors"
	"flag"
	"flavorai-client/cli"
	"flavorai-client/config"
	"flavorai-client/core"
	"flavorai-client/gateway"
	"flavorai-client/mockapi"
	"flavorai-client/session"
	"flavorai-client/stores"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
)

func main() {
	apiURL := flag.String("api", "", "Override FLAVORAI_API_URL.")
	ephemeral := flag.Bool("ephemeral", false, "Keep the session in memory only.")
	logLevel := flag.String("loglevel", "warn", "The log level (debug, info, warn, error).")
	flag.Parse()

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetOutput(os.Stderr)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	cfg := config.Load()
	if *apiURL != "" {
		cfg.APIURL = *apiURL
	}
	if *ephemeral {
		cfg.Store.Type = "memory"
	}

	args := flag.Args()
	if len(args) > 0 && args[0] == "mockapi" {
		if err := serveMockAPI(cfg, args[1:]); err != nil {
			logrus.WithField("event", "start server").Fatal(err)
		}
		return
	}

	os.Exit(run(cfg, args))
}

func run(cfg *config.Config, args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closer, err := stores.GetTokenStore(cfg.Store)
	if err != nil {
		logrus.WithError(err).Error("Failed to open token store")
		return 1
	}
	defer closer.Close()

	gw := gateway.New(cfg.APIURL, store, gateway.WithTimeout(cfg.Timeout))
	mgr := session.NewManager(ctx, gw, store)
	defer mgr.Close()

	app := cli.New(gw, mgr, os.Stdin, os.Stdout)
	if err := app.Run(ctx, args); err != nil {
		if errors.Is(err, cli.ErrUsage) {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
		fmt.Fprintln(os.Stderr, core.Message(err, ""))
		return 1
	}
	return 0
}

func serveMockAPI(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("mockapi", flag.ExitOnError)
	listenAddress := fs.String("listen", ":3000", "The address to listen on.")
	fs.Parse(args)

	api := mockapi.NewServer(cfg.MockAPI.JWTSecret, mockapi.WithRequestLog())
	srv := &http.Server{
		Addr:              *listenAddress,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logrus.WithField("addr", *listenAddress).Info("starting mock API")
	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()

	return waitForShutdown(srv, errc)
}

func waitForShutdown(srv *http.Server, errc <-chan error) error {
	signalC := make(chan os.Signal, 1)
	signal.Notify(signalC, os.Interrupt, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer signal.Stop(signalC)

	select {
	case err := <-errc:
		return err
	case s := <-signalC:
		logrus.WithField("signal", s.String()).Info("Shutting down...")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

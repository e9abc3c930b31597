// Command portal-devserver serves the in-memory citizen portal API for local
// development of portalctl.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	flag "github.com/spf13/pflag"

	"go.pilab.hu/citizenportal/config"
	"go.pilab.hu/citizenportal/internal/fakeapi"
	"go.pilab.hu/citizenportal/log"
)

func main() {
	cfgFile := flag.String("config", "", "config file")
	addr := flag.String("addr", "", "listen address (default dev_server_addr from the config)")
	devOTP := flag.Bool("dev-otp", true, "return issued OTPs in the send-otp response")
	flag.Parse()

	var (
		cfg *config.Config
		err error
	)
	if *cfgFile != "" {
		cfg, err = config.LoadFile(*cfgFile)
	} else {
		cfg, err = config.LoadConfig()
	}
	if err != nil {
		bootLogger := zerolog.New(os.Stderr).With().Timestamp().Logger()
		bootLogger.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if *addr == "" {
		*addr = cfg.DevServerAddr
	}

	logger := log.NewZerologAdapter(log.ParseLevel(cfg.LogLevel), cfg.LogPretty)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "portal_devserver_requests_total",
		Help: "Requests served by route and status code.",
	}, []string{"method", "route", "code"})
	reg.MustRegister(requests)

	api := fakeapi.New(fakeapi.WithLogger(logger), fakeapi.WithDevOTP(*devOTP))

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			code := c.Response().Status
			var he *echo.HTTPError
			if errors.As(err, &he) {
				code = he.Code
			}
			requests.WithLabelValues(c.Request().Method, c.Path(), strconv.Itoa(code)).Inc()
			return err
		}
	})
	api.RegisterRoutes(e.Group(fakeapi.Prefix))
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))

	go func() {
		logger.Info(ctx, "Development portal API listening", log.Fields{
			"addr":    *addr,
			"prefix":  fakeapi.Prefix,
			"dev_otp": *devOTP,
			"citizen": fakeapi.SeedUserID,
			"mobile":  fakeapi.SeedMobile,
		})
		if err := e.Start(*addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal(ctx, "Server failed", err)
		}
	}()

	<-ctx.Done()
	logger.Info(context.Background(), "Shutting down development server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error(shutdownCtx, "Graceful shutdown failed", err)
	}
}

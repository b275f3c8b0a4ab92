package main

import (
	"context"
	"errors"
	"fmt"
	"github.com/Geniuskaa/buenafe_registration/internal/config"
	"github.com/Geniuskaa/buenafe_registration/pkg/database"
	"github.com/Geniuskaa/buenafe_registration/pkg/server"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.10.0"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"
)

const (
	service     = "buenafe-registration"
	environment = "production"
	id          = 1
)

func main() {
	conf, err := config.NewConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error with reading config:", err)
		os.Exit(1)
	}

	if err := execute(net.JoinHostPort(conf.App.Host, conf.App.Port), conf); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func execute(addr string, conf *config.Entity) (err error) {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger, atom, err := loggerInit(conf.Log)
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	if conf.Jag.Dsn != "" {
		tp, err := tracerProvider(conf.Jag.Dsn)
		if err != nil {
			return fmt.Errorf("tracerProvider failed: %w", err)
		}
		otel.SetTracerProvider(tp)

		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
			defer cancel()
			if err := tp.Shutdown(ctx); err != nil {
				logger.Error("tp.Shutdown failed", zap.Error(err))
			}
		}()
	}

	db, err := database.Open(ctx, logger, conf)
	if err != nil {
		logger.Error("Database opening failed", zap.Error(err))
		return err
	}
	defer db.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	mux := chi.NewRouter()
	application := server.NewServer(ctx, logger, mux, db, conf)
	if err := application.Init(atom, reg); err != nil {
		logger.Error("Server init failed", zap.Error(err))
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- application.Start(addr)
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server stopped", zap.Error(err))
			return err
		}
		return nil
	case <-ctx.Done():
		logger.Info("Shutting down")
		if err := application.Shutdown(); err != nil {
			logger.Error("Graceful shutdown failed", zap.Error(err))
			return err
		}
		return nil
	}
}

func loggerInit(conf config.Log) (*zap.Logger, zap.AtomicLevel, error) {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(time.RFC1123Z)
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	fileEncoder := zapcore.NewJSONEncoder(encoderConfig)
	consoleEncoder := zapcore.NewConsoleEncoder(encoderConfig)

	atom := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if err := atom.UnmarshalText([]byte(conf.Level)); err != nil {
		return nil, atom, fmt.Errorf("atom.UnmarshalText failed: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(conf.File), 0o755); err != nil {
		return nil, atom, fmt.Errorf("os.MkdirAll failed: %w", err)
	}

	file, err := os.OpenFile(conf.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
	if err != nil {
		return nil, atom, fmt.Errorf("os.OpenFile failed: %w", err)
	}

	core := zapcore.NewTee(
		zapcore.NewCore(fileEncoder, zapcore.AddSync(file), atom),
		zapcore.NewCore(consoleEncoder, zapcore.AddSync(os.Stdout), atom),
	)

	return zap.New(core), atom, nil
}

func tracerProvider(url string) (*tracesdk.TracerProvider, error) {
	exp, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(url)))
	if err != nil {
		return nil, err
	}
	tp := tracesdk.NewTracerProvider(
		tracesdk.WithBatcher(exp),
		tracesdk.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(service),
			attribute.String("environment", environment),
			attribute.Int64("ID", id),
		)),
	)
	return tp, nil
}

// devserver es el backend stub de desarrollo de SalvaComida: auth,
// productos/pedidos y push websocket, suficiente para correr el
// cliente sin el backend real.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/salvacomida/miniapp/internal/config"
	"github.com/salvacomida/miniapp/internal/devserver"
	"github.com/salvacomida/miniapp/internal/observability/logger"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", os.Getenv("CONFIG_PATH"), "ruta al config.yaml (opcional)")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		panic(err)
	}
	logger.Init(logger.Config{
		Env:     cfg.App.Env,
		Level:   cfg.App.LogLevel,
		Service: "salvacomida-devserver",
	})
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := devserver.NewStore(ctx, devserver.StoreConfig{
		Driver: cfg.DevServer.Storage.Driver,
		DSN:    cfg.DevServer.Storage.DSN,
	})
	if err != nil {
		logger.L().Fatal("inicializar store", logger.Err(err))
	}
	defer store.Close()

	srv, err := devserver.NewServer(devserver.Config{
		AdminTelegramID:   cfg.Telegram.AdminID,
		AdminPasswordHash: cfg.DevServer.AdminPasswordHash,
		BotToken:          cfg.DevServer.BotToken,
	}, store)
	if err != nil {
		logger.L().Fatal("inicializar server", logger.Err(err))
	}

	httpSrv := &http.Server{
		Addr:              cfg.DevServer.Addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.L().Info("devserver escuchando",
			zap.String("addr", cfg.DevServer.Addr),
			zap.String("storage", cfg.DevServer.Storage.Driver))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.L().Fatal("listen", logger.Err(err))
		}
	}()

	<-ctx.Done()
	logger.L().Info("señal recibida, apagando")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.L().Warn("shutdown", logger.Err(err))
	}
	srv.Hub().Close()
}

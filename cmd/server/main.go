package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bhumika-maharjan/Chat-Application/internal/chat"
	"github.com/bhumika-maharjan/Chat-Application/internal/config"
	"github.com/bhumika-maharjan/Chat-Application/internal/db"
	clog "github.com/bhumika-maharjan/Chat-Application/internal/log"
	"github.com/bhumika-maharjan/Chat-Application/internal/server"
	"github.com/bhumika-maharjan/Chat-Application/internal/storage"
	"github.com/rs/zerolog/log"
)

func main() {
	// main 函数负责加载配置、初始化日志、连接数据库并启动 Gin 服务。
	cfg := config.Load()
	clog.Init(cfg.Env)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("config")
	}

	gdb, err := db.Connect(cfg.DatabaseDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	if err := db.Migrate(gdb); err != nil {
		log.Fatal().Err(err).Msg("db migrate")
	}

	files, err := storage.NewDiskStore(cfg.UploadDir)
	if err != nil {
		log.Fatal().Err(err).Str("dir", cfg.UploadDir).Msg("upload dir")
	}

	store := chat.NewStore(gdb)
	rooms := chat.NewRoomRegistry(store)
	direct := chat.NewDirectRegistry()
	tracker := chat.NewTracker(store, direct)
	chatH := chat.NewHandler(gdb, cfg, store, rooms, direct, tracker, files)

	r := server.SetupRouter(cfg, gdb, chatH, store, rooms, files)
	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server run")
		}
	}()
	log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}
	log.Info().Msg("server stopped")
}

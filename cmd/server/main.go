package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	evbus "github.com/asaskevich/EventBus"
	"github.com/gin-gonic/gin"
	"github.com/rayking12/celo-simple-donation/internal/chain"
	"github.com/rayking12/celo-simple-donation/internal/config"
	"github.com/rayking12/celo-simple-donation/internal/contract"
	"github.com/rayking12/celo-simple-donation/internal/handler"
	"github.com/rayking12/celo-simple-donation/internal/logger"
	"github.com/rayking12/celo-simple-donation/internal/logic"
	"github.com/rayking12/celo-simple-donation/internal/notify"
	"github.com/rayking12/celo-simple-donation/internal/operation"
	"github.com/rayking12/celo-simple-donation/internal/router"
	"github.com/rayking12/celo-simple-donation/internal/watch"
)

func main() {
	// 加载配置
	cfg := config.Load()

	// 初始化日志
	if err := logger.Init(cfg.Log); err != nil {
		logger.Fatal("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 初始化链客户端
	client, err := chain.New(ctx, cfg.Chain)
	if err != nil {
		logger.Fatal("Failed to initialize chain client: %v", err)
	}
	defer client.Close()

	// 加载合约
	binding, err := contract.LoadBinding(cfg.Chain.Contract)
	if err != nil {
		logger.Fatal("Failed to load contract binding: %v", err)
	}

	// 通知
	notifier := notify.NewBus(evbus.New(), cfg.Notify.DisplayDuration())
	recorder := notify.NewRecorder(cfg.Notify.History)
	if err := notifier.Subscribe(notify.LogSink); err != nil {
		logger.Fatal("Failed to subscribe log sink: %v", err)
	}
	if err := notifier.Subscribe(recorder.Notify); err != nil {
		logger.Fatal("Failed to subscribe notification recorder: %v", err)
	}

	factory := contract.NewFactory(binding, notifier.ErrorHandler())

	// 写操作协程池
	pool, err := operation.NewPool(cfg.Pool.Size)
	if err != nil {
		logger.Fatal("%v", err)
	}
	defer pool.Release()

	watcher := watch.New(client, time.Duration(cfg.Task.Interval)*time.Second)

	donationLogic := logic.NewDonationLogic(client, factory, watcher, pool, notifier, logic.Options{
		Symbol: cfg.Chain.Symbol,
		TxWait: cfg.Chain.TxWait(),
	})
	defer donationLogic.Close()
	donationLogic.Load(ctx)

	// 启动区块监听
	if err := watcher.Start(); err != nil {
		logger.Fatal("Failed to start block watcher: %v", err)
	}
	defer watcher.Stop()

	// 设置Gin模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 初始化路由
	r := router.Setup(router.Handlers{
		Cause:   handler.NewCauseHandler(donationLogic),
		Account: handler.NewAccountHandler(donationLogic, recorder, client, cfg.Chain),
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	go func() {
		logger.Info("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown: %v", err)
	}
}

package main

import (
	"flag"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	pb "github.com/rpcpool/yellowstone-grpc/examples/golang/proto"
	"github.com/zeromicro/go-zero/core/logx"
	zerosvc "github.com/zeromicro/go-zero/core/service"

	"lending-indexer-sol/internal/config"
	"lending-indexer-sol/internal/logic/grpc"
	"lending-indexer-sol/internal/service"
	"lending-indexer-sol/internal/svc"
	"lending-indexer-sol/pkg/logger"
)

var configFile = flag.String("f", "etc/grpc.yaml", "the config file")

func main() {
	defer func() {
		if r := recover(); r != nil {
			logx.Errorf("panic: %+v\nstack: %s", r, debug.Stack())
			logger.Sync()
		}
	}()

	flag.Parse()

	c := config.MustLoad(*configFile)
	if err := logger.Init(c.LogConf.ToLogOption()); err != nil {
		panic(err)
	}
	defer logger.Sync()
	setupLogx(c.LogConf)

	serviceContext, err := svc.NewGrpcServiceContext(c)
	if err != nil {
		logx.Errorf("init service context: %v", err)
		return
	}
	defer serviceContext.Close()

	sg := zerosvc.NewServiceGroup()

	blockChan := make(chan *pb.SubscribeUpdateBlock, 200)

	// 漏块复核
	var checker *grpc.SlotChecker
	if c.SlotCheckConf.Enabled {
		checker = grpc.NewSlotChecker(c.SlotCheckConf.RpcEndpoint, time.Duration(c.SlotCheckConf.DelaySec)*time.Second)
		sg.Add(checker)
	}

	sg.Add(grpc.NewBlockProcessor(serviceContext, blockChan, checker))

	if serviceContext.ProgressManager != nil {
		sg.Add(service.NewProgressService(serviceContext.ProgressManager, c.ProgressConf))
	}
	if c.MetricsConf.Enabled {
		sg.Add(service.NewMetricsService(c.MetricsConf))
	}

	grpcService, err := grpc.NewGrpcStreamManager(serviceContext, blockChan)
	if err != nil {
		logx.Errorf("init grpc stream: %v", err)
		return
	}
	sg.Add(grpcService)

	logx.Infof("Starting lending indexer, endpoint=%s", c.Grpc.Endpoint)

	go sg.Start()

	// 等待退出信号
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logx.Info("Shutting down services...")
	sg.Stop()
}

// setupLogx 让 go-zero logx 与 pkg/logger 使用相同的级别与格式
func setupLogx(c config.LogConfig) {
	encoding := "plain"
	if c.Format == "json" {
		encoding = "json"
	}
	level := c.Level
	if level == "warn" {
		level = "error"
	}
	logx.MustSetup(logx.LogConf{
		ServiceName: "lending-indexer-sol",
		Mode:        "console",
		Encoding:    encoding,
		Level:       level,
	})
}

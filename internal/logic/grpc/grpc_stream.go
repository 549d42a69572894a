package grpc

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	pb "github.com/rpcpool/yellowstone-grpc/examples/golang/proto"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/metadata"

	"lending-indexer-sol/internal/metrics"
	"lending-indexer-sol/internal/svc"
	"lending-indexer-sol/pkg/logger"
)

type GrpcStreamManager struct {
	mu                    sync.Mutex                    // 保护连接状态
	conn                  *grpc.ClientConn              // gRPC 连接对象
	client                pb.GeyserClient               // gRPC 客户端
	stream                pb.Geyser_SubscribeClient     // gRPC 订阅流
	stopped               bool                          // 是否已经停止
	reconnectAttempts     int                           // 已重连次数
	reconnectInterval     time.Duration                 // 重连基础间隔
	xToken                string                        // 认证用的 x-token
	accountInclude        []string                      // 订阅过滤的程序地址
	streamPingIntervalSec int                           // Stream 心跳包发送间隔（秒）
	blockChan             chan *pb.SubscribeUpdateBlock // 区块数据通道
	connCtx               context.Context               // 当前连接的 context
	connCancel            context.CancelFunc            // 当前连接的 cancel 函数
	blockRecvTimeoutSec   int                           // block 接收超时时间（秒）
	sendTimeoutSec        int                           // gRPC 发送超时时间（秒）
	maxLatencyWarnMs      int64                         // 延迟告警阈值（毫秒）
}

func NewGrpcStreamManager(sc *svc.GrpcServiceContext, blockChan chan *pb.SubscribeUpdateBlock) (*GrpcStreamManager, error) {
	grpcConf := sc.Config.Grpc

	creds := credentials.NewTLS(&tls.Config{InsecureSkipVerify: true})
	if grpcConf.Insecure {
		creds = insecure.NewCredentials()
	}

	dialCtx, cancel := context.WithTimeout(context.Background(), time.Duration(grpcConf.ConnectTimeoutSec)*time.Second)
	defer cancel()

	conn, err := grpc.DialContext(
		dialCtx,
		grpcConf.Endpoint,
		grpc.WithTransportCredentials(creds),
		grpc.WithInitialWindowSize(int32(grpcConf.InitialWindowSize)),
		grpc.WithInitialConnWindowSize(int32(grpcConf.InitialConnWindowSize)),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallSendMsgSize(grpcConf.MaxCallSendMsgSize),
			grpc.MaxCallRecvMsgSize(grpcConf.MaxCallRecvMsgSize),
		),
		grpc.WithBlock(),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                time.Duration(grpcConf.KeepalivePingIntervalSec) * time.Second,
			Timeout:             time.Duration(grpcConf.KeepalivePingTimeoutSec) * time.Second,
			PermitWithoutStream: true,
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect %s: %w", grpcConf.Endpoint, err)
	}

	return &GrpcStreamManager{
		conn:                  conn,
		client:                pb.NewGeyserClient(conn),
		reconnectInterval:     time.Duration(grpcConf.ReconnectIntervalSec) * time.Second,
		xToken:                grpcConf.XToken,
		accountInclude:        sc.Config.ParserConf.LendingPrograms,
		streamPingIntervalSec: grpcConf.StreamPingIntervalSec,
		blockChan:             blockChan,
		blockRecvTimeoutSec:   grpcConf.BlockRecvTimeoutSec,
		sendTimeoutSec:        grpcConf.SendTimeoutSec,
		maxLatencyWarnMs:      int64(grpcConf.MaxLatencyWarnMs),
	}, nil
}

func (m *GrpcStreamManager) Start() {
	m.mustConnect()
}

func (m *GrpcStreamManager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopped = true
	if m.connCancel != nil {
		m.connCancel()
		m.connCancel = nil
	}
	if m.conn != nil {
		if err := m.conn.Close(); err != nil {
			logger.Warnf("[GrpcStream] close conn: %v", err)
		}
	}
}

// mustConnect 循环直到连接成功或已停止
func (m *GrpcStreamManager) mustConnect() {
	for {
		m.mu.Lock()
		if m.stopped {
			m.mu.Unlock()
			return
		}
		m.mu.Unlock()

		if m.reconnectAttempts > 0 {
			if m.reconnectAttempts > 3 {
				time.Sleep(m.reconnectInterval * 2)
			} else {
				time.Sleep(m.reconnectInterval)
			}
		}
		logger.Infof("[GrpcStream] connecting... attempt %d", m.reconnectAttempts+1)
		m.reconnectAttempts++
		err := m.connect()
		if err == nil {
			return
		}
		logger.Warnf("[GrpcStream] connect failed: %v, will retry...", err)
	}
}

func buildSubscribeRequest(accountInclude []string) *pb.SubscribeRequest {
	blocks := make(map[string]*pb.SubscribeRequestFilterBlocks)
	blocks["blocks"] = &pb.SubscribeRequestFilterBlocks{
		AccountInclude:      accountInclude,
		IncludeTransactions: boolPtr(true),
		IncludeAccounts:     boolPtr(false),
		IncludeEntries:      boolPtr(false),
	}
	commitment := pb.CommitmentLevel_CONFIRMED
	return &pb.SubscribeRequest{
		Blocks:     blocks,
		Commitment: &commitment,
	}
}

// connect 只尝试一次连接
func (m *GrpcStreamManager) connect() error {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return errors.New("manager is stopped")
	}
	defer m.mu.Unlock()

	// 先关闭旧的 context，让旧 goroutine 退出
	if m.connCancel != nil {
		m.connCancel()
		m.connCancel = nil
	}
	m.connCtx, m.connCancel = context.WithCancel(context.Background())

	metaCtx := metadata.NewOutgoingContext(
		m.connCtx,
		metadata.New(map[string]string{"x-token": m.xToken}),
	)
	stream, err := m.client.Subscribe(metaCtx)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	req := buildSubscribeRequest(m.accountInclude)
	err = sendWithTimeout(m.connCtx, stream.Send, req, time.Duration(m.sendTimeoutSec)*time.Second)
	if err != nil {
		return fmt.Errorf("send subscribe request: %w", err)
	}

	m.stream = stream
	m.reconnectAttempts = 0
	logger.Infof("[GrpcStream] connection established, programs=%v", m.accountInclude)

	go m.pingLoop(m.connCtx, stream)
	go m.blockRecvLoop(m.connCtx, stream)

	return nil
}

func (m *GrpcStreamManager) blockRecvLoop(ctx context.Context, stream pb.Geyser_SubscribeClient) {
	last := time.Now()
	blockTimeout := time.Duration(m.blockRecvTimeoutSec) * time.Second
	for {
		if ctx.Err() != nil {
			return
		}

		update, err := stream.Recv()
		now := time.Now()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, io.EOF) {
				logger.Warnf("[GrpcStream] stream closed by server (EOF), will reconnect")
				m.reconnect()
				return
			}

			logger.Errorf("[GrpcStream] stream error: %v", err)
			if m.reconnectIfBlockTimeout(last, blockTimeout) {
				return
			}
			time.Sleep(100 * time.Millisecond)
			continue
		}

		if block := update.GetBlock(); block != nil {
			m.forwardBlock(ctx, block, now)
			last = now
		}

		if m.reconnectIfBlockTimeout(last, blockTimeout) {
			return
		}
	}
}

// forwardBlock 记录延迟并写入 blockChan，通道满时阻塞直到连接关闭
func (m *GrpcStreamManager) forwardBlock(ctx context.Context, block *pb.SubscribeUpdateBlock, now time.Time) {
	if block.BlockTime != nil {
		latencyMs := now.UnixMilli() - block.BlockTime.Timestamp*1000
		metrics.BlockLatencySeconds.Observe(float64(latencyMs) / 1000)
		if m.maxLatencyWarnMs > 0 && latencyMs > m.maxLatencyWarnMs {
			logger.Warnf("[GrpcStream] block latency too high: slot=%d, latency=%dms", block.Slot, latencyMs)
		}
	}

	select {
	case m.blockChan <- block:
	case <-ctx.Done():
	}
}

// 带超时的 Send
func sendWithTimeout[T any](ctx context.Context, sendFunc func(T) error, req T, timeout time.Duration) error {
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- sendFunc(req)
	}()

	select {
	case <-timeoutCtx.Done():
		return timeoutCtx.Err()
	case err := <-done:
		return err
	}
}

// 心跳
func (m *GrpcStreamManager) pingLoop(ctx context.Context, stream pb.Geyser_SubscribeClient) {
	ticker := time.NewTicker(time.Duration(m.streamPingIntervalSec) * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingReq := &pb.SubscribeRequest{
				Ping: &pb.SubscribeRequestPing{Id: 1},
			}
			err := sendWithTimeout(ctx, stream.Send, pingReq, time.Duration(m.sendTimeoutSec)*time.Second)
			if err != nil {
				// 只记录日志，不触发重连
				logger.Warnf("[GrpcStream] ping failed: %v", err)
			}
		}
	}
}

func (m *GrpcStreamManager) reconnectIfBlockTimeout(last time.Time, timeout time.Duration) bool {
	if timeout > 0 && time.Since(last) > timeout {
		logger.Warnf("[GrpcStream] %v 未收到 block，触发重连", timeout)
		m.reconnect()
		return true
	}
	return false
}

func (m *GrpcStreamManager) reconnect() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	if m.connCancel != nil {
		m.connCancel()
		m.connCancel = nil
	}
	m.mu.Unlock()

	go m.mustConnect()
}

func boolPtr(b bool) *bool {
	return &b
}

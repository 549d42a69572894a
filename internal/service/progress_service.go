package service

import (
	"context"
	"sync"
	"time"

	"lending-indexer-sol/internal/config"
	"lending-indexer-sol/internal/logic/progress"
)

const progressGCInterval = time.Hour

// ProgressService 后台定时 flush slot 进度并清理历史记录
type ProgressService struct {
	pm            *progress.ProgressManager
	flushInterval time.Duration
	retainDays    int
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
}

func NewProgressService(pm *progress.ProgressManager, c config.ProgressConfig) *ProgressService {
	ctx, cancel := context.WithCancel(context.Background())
	return &ProgressService{
		pm:            pm,
		flushInterval: time.Duration(c.FlushIntervalSec) * time.Second,
		retainDays:    c.RetainDays,
		ctx:           ctx,
		cancel:        cancel,
	}
}

func (s *ProgressService) Start() {
	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.pm.StartGCLoop(s.ctx, progressGCInterval, s.retainDays)
	}()
	go func() {
		defer s.wg.Done()
		s.pm.StartFlushLoop(s.ctx, s.flushInterval)
	}()
	s.wg.Wait()
}

// Stop 停止后台循环，返回前完成最后一次 flush
func (s *ProgressService) Stop() {
	s.cancel()
	s.wg.Wait()
}

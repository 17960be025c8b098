package service

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/tendermint/dasync/libs/log"
)

var (
	ErrAlreadyStarted = errors.New("already started")
	ErrAlreadyStopped = errors.New("already stopped")
	ErrNotStarted     = errors.New("not started")
)

// Service is a long-running component of a node.
type Service interface {
	Start(context.Context) error
	Stop() error
	IsRunning() bool
	// Wait blocks until the service is stopped.
	Wait()
}

// Implementation holds the hooks BaseService runs on state changes.
type Implementation interface {
	OnStart(context.Context) error
	OnStop()
}

const (
	stateIdle int32 = iota
	stateStarting
	stateRunning
	stateStopped
)

// BaseService tracks the lifecycle of an Implementation that embeds it:
//
//	r.BaseService = *service.NewBaseService(logger, "Gossip", r)
//
// A service runs until Stop is called or the context given to Start is
// canceled. OnStop runs exactly once for a started service. A stopped service
// cannot be started again; if OnStart fails the service stays idle.
type BaseService struct {
	logger log.Logger
	name   string
	state  int32 // atomic
	quit   chan struct{}
	impl   Implementation
}

// NewBaseService returns an idle service named name.
func NewBaseService(logger log.Logger, name string, impl Implementation) *BaseService {
	return &BaseService{
		logger: logger,
		name:   name,
		quit:   make(chan struct{}),
		impl:   impl,
	}
}

// Start runs OnStart and moves the service to running.
func (bs *BaseService) Start(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&bs.state, stateIdle, stateStarting) {
		if atomic.LoadInt32(&bs.state) == stateStopped {
			return ErrAlreadyStopped
		}
		return ErrAlreadyStarted
	}

	bs.logger.Info("starting service", "service", bs.name)
	if err := bs.impl.OnStart(ctx); err != nil {
		atomic.StoreInt32(&bs.state, stateIdle)
		return err
	}
	atomic.StoreInt32(&bs.state, stateRunning)

	go func() {
		select {
		case <-bs.quit:
		case <-ctx.Done():
			if err := bs.Stop(); err != nil && !errors.Is(err, ErrAlreadyStopped) {
				bs.logger.Error("failed to stop service", "service", bs.name, "err", err)
			}
		}
	}()
	return nil
}

// Stop runs OnStop and releases Wait.
func (bs *BaseService) Stop() error {
	if !atomic.CompareAndSwapInt32(&bs.state, stateRunning, stateStopped) {
		if atomic.LoadInt32(&bs.state) == stateStopped {
			return ErrAlreadyStopped
		}
		return ErrNotStarted
	}

	bs.logger.Info("stopping service", "service", bs.name)
	bs.impl.OnStop()
	close(bs.quit)
	return nil
}

// IsRunning reports whether the service started and has not stopped.
func (bs *BaseService) IsRunning() bool {
	return atomic.LoadInt32(&bs.state) == stateRunning
}

// Wait blocks until the service is stopped.
func (bs *BaseService) Wait() { <-bs.quit }

func (bs *BaseService) String() string { return bs.name }

// Package run starts and supervises the daemon's background tasks:
// the control loop, the config watcher and the telemetry mirror.
package run

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang/glog"
)

// Task is a background task that runs until its context is cancelled.
type Task interface {
	Run(context.Context) error
}

// TaskFunc is the func form of Task.
type TaskFunc func(context.Context) error

// Run implements Task.
func (f TaskFunc) Run(ctx context.Context) error { return f(ctx) }

type namedTask struct {
	Task
	name string
}

// Named labels a task for logging.
func Named(name string, task Task) Task {
	return &namedTask{name: name, Task: task}
}

// Group runs tasks concurrently and collects their errors.
type Group struct {
	ctx    context.Context
	tasks  int
	errCh  chan error
	exitCh chan struct{}
}

// NewGroup creates a group rooted at ctx.
func NewGroup(ctx context.Context) *Group {
	return &Group{
		ctx:    ctx,
		errCh:  make(chan error, 1),
		exitCh: make(chan struct{}),
	}
}

// HandleSignals cancels the group on SIGINT/SIGTERM. A second signal
// forces exit.
func (g *Group) HandleSignals() *Group {
	ctx, cancel := context.WithCancel(g.ctx)
	g.ctx = ctx
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		glog.Info("stop requested")
		cancel()
		<-sigCh
		glog.Error("stop requested again, force exit")
		close(g.exitCh)
	}()
	return g
}

// Go spawns tasks on the group context.
func (g *Group) Go(tasks ...Task) *Group {
	for _, task := range tasks {
		name := "task"
		if nt, ok := task.(*namedTask); ok {
			name = nt.name
		}
		g.tasks++
		go func(task Task, name string) {
			glog.V(1).Infof("%s started", name)
			g.errCh <- task.Run(g.ctx)
			glog.V(1).Infof("%s stopped", name)
		}(task, name)
	}
	return g
}

// Wait blocks until every task returns and aggregates their errors.
// Context cancellation is a clean stop, not an error.
func (g *Group) Wait() error {
	var errs AggregatedError
	for i := 0; i < g.tasks; i++ {
		select {
		case <-g.exitCh:
			return errors.New("forced exit")
		case err := <-g.errCh:
			if !errors.Is(err, context.Canceled) {
				errs.Add(err)
			}
		}
	}
	return errs.Aggregate()
}

// WithCloser runs fn and guarantees closer.Close is called, either
// when ctx is cancelled (unblocking fn) or when fn returns.
func WithCloser(ctx context.Context, closer io.Closer, fn func() error) error {
	errCh := make(chan error, 1)
	go func() { errCh <- fn() }()
	select {
	case <-ctx.Done():
		closer.Close()
		<-errCh
		return context.Canceled
	case err := <-errCh:
		closer.Close()
		return err
	}
}

package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// State 处理状态
type State int

const (
	Idle State = iota
	Processing
	Finished
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Processing:
		return "processing"
	case Finished:
		return "finished"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal Finished 或 Failed
func (s State) Terminal() bool { return s == Finished || s == Failed }

var (
	// ErrBusy 已有一次处理在进行
	ErrBusy = errors.New("a run is already in progress")
	// ErrNotIdle 上一次的结果还没有 Reset
	ErrNotIdle = errors.New("orchestrator is not idle, reset first")
	ErrClosed  = errors.New("orchestrator closed")
)

// Status 对外发布的状态快照
//
//	Finished 时 Result 非空，Failed 时 Err 非空
type Status struct {
	State  State
	Source string
	Result *Result
	Err    error
}

// Opener 把调用方传入的 source 解析成 Resource
type Opener func(source string) (Resource, error)

type request struct {
	kind   requestKind
	source string
	reply  chan error
	status chan Status
	sub    chan Status
}

type requestKind int

const (
	reqProcess requestKind = iota
	reqReset
	reqStatus
	reqSubscribe
	reqUnsubscribe
)

type outcome struct {
	result *Result
	err    error
}

// Orchestrator Idle → Processing → Finished | Failed 状态机
//
// 状态只由 loop 协程持有和修改；后台处理协程通过 channel 把结果交回 loop，
// 由 loop 一次性发布新状态，观察者不会读到中间状态。
// 同一时刻最多只有一次处理，处理中再次调用 Process 会被拒绝。
type Orchestrator struct {
	pipeline *Pipeline
	open     Opener
	log      *slog.Logger

	reqs   chan request
	done   chan outcome
	quit   chan struct{}
	exited chan struct{}
	once   sync.Once
}

func NewOrchestrator(p *Pipeline, open Opener, log *slog.Logger) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	o := &Orchestrator{
		pipeline: p,
		open:     open,
		log:      log,
		reqs:     make(chan request),
		done:     make(chan outcome, 1),
		quit:     make(chan struct{}),
		exited:   make(chan struct{}),
	}
	go o.loop()
	return o
}

// Process 异步开始处理 source，立即返回
// 只有 Idle 状态下会被接受
func (o *Orchestrator) Process(source string) error {
	return o.call(request{kind: reqProcess, source: source})
}

// Reset Finished/Failed 回到 Idle
func (o *Orchestrator) Reset() error {
	return o.call(request{kind: reqReset})
}

// Status 当前状态快照
func (o *Orchestrator) Status() Status {
	ch := make(chan Status, 1)
	select {
	case o.reqs <- request{kind: reqStatus, status: ch}:
		return <-ch
	case <-o.exited:
		return Status{State: Idle, Err: ErrClosed}
	}
}

// Subscribe 返回只保留最新状态的 channel，订阅时会先收到当前状态
// Close 之后 channel 被关闭；cancel 用于提前退订
func (o *Orchestrator) Subscribe() (<-chan Status, func()) {
	ch := make(chan Status, 1)
	select {
	case o.reqs <- request{kind: reqSubscribe, sub: ch}:
	case <-o.exited:
		close(ch)
		return ch, func() {}
	}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			select {
			case o.reqs <- request{kind: reqUnsubscribe, sub: ch}:
			case <-o.exited:
			}
		})
	}
}

// Wait 阻塞直到进入 Finished 或 Failed
func (o *Orchestrator) Wait(ctx context.Context) (Status, error) {
	ch, cancel := o.Subscribe()
	defer cancel()

	for {
		select {
		case s, ok := <-ch:
			if !ok {
				return Status{}, ErrClosed
			}
			if s.State.Terminal() {
				return s, nil
			}
		case <-ctx.Done():
			return Status{}, ctx.Err()
		}
	}
}

// Close 等待进行中的处理结束后退出 loop
func (o *Orchestrator) Close() error {
	o.once.Do(func() {
		close(o.quit)
	})
	<-o.exited
	return nil
}

func (o *Orchestrator) call(r request) error {
	r.reply = make(chan error, 1)
	select {
	case o.reqs <- r:
		return <-r.reply
	case <-o.exited:
		return ErrClosed
	}
}

func (o *Orchestrator) loop() {
	defer close(o.exited)

	var (
		status  Status
		subs    = map[chan Status]struct{}{}
		running bool
	)

	publish := func(s Status) {
		status = s
		o.log.Info("state changed", "state", s.State.String(), "source", s.Source)
		for ch := range subs {
			offer(ch, s)
		}
	}

	defer func() {
		for ch := range subs {
			close(ch)
		}
	}()

	for {
		select {
		case <-o.quit:
			if running {
				out := <-o.done
				publish(finish(status.Source, out))
			}
			return

		case out := <-o.done:
			running = false
			next := finish(status.Source, out)
			if next.State == Failed {
				o.log.Warn("processing failed", "source", next.Source, "error", next.Err)
			}
			publish(next)

		case r := <-o.reqs:
			switch r.kind {
			case reqProcess:
				switch status.State {
				case Processing:
					r.reply <- ErrBusy
					continue
				case Finished, Failed:
					r.reply <- ErrNotIdle
					continue
				}
				running = true
				publish(Status{State: Processing, Source: r.source})
				go o.run(r.source)
				r.reply <- nil

			case reqReset:
				switch status.State {
				case Processing:
					r.reply <- ErrBusy
					continue
				case Finished, Failed:
					publish(Status{State: Idle})
				}
				r.reply <- nil

			case reqStatus:
				r.status <- status

			case reqSubscribe:
				subs[r.sub] = struct{}{}
				offer(r.sub, status)

			case reqUnsubscribe:
				if _, ok := subs[r.sub]; ok {
					delete(subs, r.sub)
					close(r.sub)
				}
			}
		}
	}
}

// run 在后台协程中执行，只通过 done 把结果交回 loop
func (o *Orchestrator) run(source string) {
	src, err := o.open(source)
	if err != nil {
		o.done <- outcome{err: newError(KindDecode, "open source", err)}
		return
	}
	result, err := o.pipeline.Run(context.Background(), src)
	o.done <- outcome{result: result, err: err}
}

func finish(source string, out outcome) Status {
	if out.err != nil {
		return Status{State: Failed, Source: source, Err: out.err}
	}
	return Status{State: Finished, Source: source, Result: out.result}
}

// offer 丢弃未读的旧状态，只保留最新的
func offer(ch chan Status, s Status) {
	select {
	case <-ch:
	default:
	}
	ch <- s
}

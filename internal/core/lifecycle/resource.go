// Package lifecycle 提供资源生命周期状态机
//
// 每个 Peer 与 Connection 都建立在一个 Resource 之上：
//   - Open 幂等，并发调用合并为同一次 doOpen
//   - Close 幂等，等待进行中的 Open 结束后才执行 doClose
//   - 关闭终态只到达一次，届时触发 OnClosed 并关闭 Done()
//
// 幂等性是显式的状态检查，Network 的双向移除（显式关闭 → 关闭信号 → 移出拓扑，
// 移出拓扑 → 关闭）完全依赖它避免重复副作用。
package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dep2p/go-netsetup/internal/util/logger"
)

var log = logger.Logger("core/lifecycle")

// Resource 打开/关闭状态机
type Resource struct {
	handler Handler

	mu             sync.Mutex
	state          State
	openErr        error
	closeErr       error
	closeRequested bool
	watched        bool
	watcher        Watcher
	closeTimeout   time.Duration
	// closeInvoked doClose 已被调用
	closeInvoked bool

	// openDone 在 open 结束（或未打开即关闭）时关闭
	openDone chan struct{}
	// closeDone 在到达关闭终态时关闭
	closeDone chan struct{}
}

// Option 资源选项
type Option func(*Resource)

// WithCloseTimeout 限制 doClose 的执行时间，0 表示不限
//
// 超时后资源以 ErrCloseTimeout 进入 CloseFailed，doClose 的迟到结果被丢弃。
func WithCloseTimeout(d time.Duration) Option {
	return func(r *Resource) {
		r.closeTimeout = d
	}
}

// New 创建资源，nil Handler 视为空操作
func New(h Handler, opts ...Option) *Resource {
	if h == nil {
		h = Noop()
	}
	r := &Resource{
		handler:   h,
		openDone:  make(chan struct{}),
		closeDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ============================================================================
//                              打开
// ============================================================================

// Start 异步开始打开，非 Unopened 状态下为空操作
func (r *Resource) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateUnopened {
		r.beginOpenLocked(context.Background())
	}
}

// Open 打开资源并等待结果
//
// 首次调用启动 doOpen；Opening 期间的调用等待同一结果；
// 之后的调用立即返回已记录的结果。未打开即被关闭的资源返回 ErrClosed。
// ctx 只约束调用方的等待，不会取消 doOpen。
func (r *Resource) Open(ctx context.Context) error {
	r.mu.Lock()
	if r.state == StateUnopened {
		r.beginOpenLocked(context.WithoutCancel(ctx))
	}
	done := r.openDone
	r.mu.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.openErr
}

func (r *Resource) beginOpenLocked(ctx context.Context) {
	r.state = StateOpening
	go r.runOpen(ctx)
}

func (r *Resource) runOpen(ctx context.Context) {
	err := invoke(ctx, r.handler.Open)

	r.mu.Lock()
	r.openErr = err
	if err != nil {
		r.state = StateOpenFailed
	} else {
		r.state = StateOpen
	}
	close(r.openDone)
	w := r.watcher
	pendingClose := r.closeRequested
	if pendingClose {
		r.state = StateClosing
	}
	r.mu.Unlock()

	if err != nil {
		log.Debug("资源打开失败", "err", err)
	}
	if w.OnOpen != nil {
		w.OnOpen(err)
	}

	if !pendingClose {
		return
	}
	if err != nil {
		// 未成功打开，无需 doClose
		r.finalize(nil)
		return
	}
	r.runClose(ctx)
}

// ============================================================================
//                              关闭
// ============================================================================

// Close 关闭资源并等待关闭终态
//
// Opening 期间的关闭请求在 open 结束后执行；Unopened 与 OpenFailed 直接进入 Closed，
// 不调用 doClose。到达终态后返回记录的关闭结果。
func (r *Resource) Close(ctx context.Context) error {
	r.mu.Lock()
	switch r.state {
	case StateUnopened:
		r.openErr = ErrClosed
		close(r.openDone)
		r.state = StateClosing
		r.mu.Unlock()
		r.finalize(nil)

	case StateOpenFailed:
		r.state = StateClosing
		r.mu.Unlock()
		r.finalize(nil)

	case StateOpening:
		r.closeRequested = true
		r.mu.Unlock()

	case StateOpen:
		r.state = StateClosing
		r.mu.Unlock()
		go r.runClose(context.WithoutCancel(ctx))

	default:
		r.mu.Unlock()
	}

	select {
	case <-r.closeDone:
	case <-ctx.Done():
		return ctx.Err()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closeErr
}

func (r *Resource) runClose(ctx context.Context) {
	r.mu.Lock()
	r.closeInvoked = true
	timeout := r.closeTimeout
	r.mu.Unlock()

	var err error
	if timeout > 0 {
		err = invokeWithTimeout(ctx, timeout, r.handler.Close)
	} else {
		err = invoke(ctx, r.handler.Close)
	}
	if err != nil {
		log.Debug("资源关闭失败", "err", err)
	}
	r.finalize(err)
}

// invokeWithTimeout 到期后不再等待 fn，fn 在后台自行结束
func invokeWithTimeout(ctx context.Context, d time.Duration, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	result := make(chan error, 1)
	go func() {
		result <- invoke(ctx, fn)
	}()

	select {
	case err := <-result:
		if err != nil && ctx.Err() != nil {
			return fmt.Errorf("%w after %s: %w", ErrCloseTimeout, d, err)
		}
		return err
	case <-ctx.Done():
		return fmt.Errorf("%w after %s: %w", ErrCloseTimeout, d, ctx.Err())
	}
}

// finalize 进入关闭终态，只会执行一次
func (r *Resource) finalize(err error) {
	r.mu.Lock()
	r.closeErr = err
	if err != nil {
		r.state = StateCloseFailed
	} else {
		r.state = StateClosed
	}
	w := r.watcher
	r.mu.Unlock()

	if w.OnClosed != nil {
		w.OnClosed(err)
	}
	close(r.closeDone)
}

// ============================================================================
//                              观察
// ============================================================================

// Watch 挂载唯一的带外观察者
//
// 重复挂载返回 ErrAlreadyWatched。资源已关闭时 OnClosed 立即调用。
func (r *Resource) Watch(w Watcher) error {
	r.mu.Lock()
	if r.watched {
		r.mu.Unlock()
		return ErrAlreadyWatched
	}
	r.watched = true
	r.watcher = w
	closed := r.state.IsClosed()
	closeErr := r.closeErr
	r.mu.Unlock()

	if closed && w.OnClosed != nil {
		w.OnClosed(closeErr)
	}
	return nil
}

// Bind 在资源启动前挂载观察者并应用选项
//
// 状态检查与挂载在同一把锁内完成：资源已离开 Unopened 时返回 ErrStarted，
// 已有观察者时返回 ErrAlreadyWatched，两种情况下资源都不受影响。
func (r *Resource) Bind(w Watcher, opts ...Option) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.watched {
		return ErrAlreadyWatched
	}
	if r.state != StateUnopened {
		return fmt.Errorf("%w: %s", ErrStarted, r.state)
	}
	r.watched = true
	r.watcher = w
	for _, opt := range opts {
		opt(r)
	}
	return nil
}

// HandlerClosed 返回 doClose 是否被调用过
//
// 未打开或打开失败的资源关闭时不调用 doClose。
func (r *Resource) HandlerClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closeInvoked
}

// State 返回当前状态
func (r *Resource) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Done 返回在资源关闭后关闭的 channel
func (r *Resource) Done() <-chan struct{} {
	return r.closeDone
}

// Err 返回打开或关闭失败的错误
func (r *Resource) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.openErr != nil && r.openErr != ErrClosed {
		return r.openErr
	}
	return r.closeErr
}

func invoke(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, p)
		}
	}()
	return fn(ctx)
}

package lifecycle

import "context"

// Handler 资源的打开/关闭实现
//
// Open 至多调用一次；Close 仅在 Open 成功后调用，且至多一次，
// 从不与 Open 并发。
type Handler interface {
	Open(ctx context.Context) error
	Close(ctx context.Context) error
}

// HandlerFuncs 将一对函数适配为 Handler，nil 函数视为成功的空操作
type HandlerFuncs struct {
	OpenFunc  func(ctx context.Context) error
	CloseFunc func(ctx context.Context) error
}

// Open 实现 Handler
func (h HandlerFuncs) Open(ctx context.Context) error {
	if h.OpenFunc == nil {
		return nil
	}
	return h.OpenFunc(ctx)
}

// Close 实现 Handler
func (h HandlerFuncs) Close(ctx context.Context) error {
	if h.CloseFunc == nil {
		return nil
	}
	return h.CloseFunc(ctx)
}

// Noop 返回什么都不做的 Handler
func Noop() Handler {
	return HandlerFuncs{}
}

// Watcher 资源的带外观察者
type Watcher struct {
	// OnOpen doOpen 结束时调用一次，err 为其结果
	OnOpen func(err error)

	// OnClosed 到达关闭终态时恰好调用一次，err 为 doClose 的结果，
	// 先于 Done() 关闭以及任何 Close 调用返回
	OnClosed func(err error)
}

package lifecycle

import "errors"

var (
	// ErrClosed 资源在打开前已被关闭
	ErrClosed = errors.New("lifecycle: resource closed")

	// ErrAlreadyWatched 资源已有观察者
	ErrAlreadyWatched = errors.New("lifecycle: resource already watched")

	// ErrStarted 资源已离开 Unopened
	ErrStarted = errors.New("lifecycle: resource already started")

	// ErrCloseTimeout doClose 超过关闭时限
	ErrCloseTimeout = errors.New("lifecycle: close timed out")

	// ErrHandlerPanic doOpen/doClose 发生 panic
	ErrHandlerPanic = errors.New("lifecycle: handler panicked")
)

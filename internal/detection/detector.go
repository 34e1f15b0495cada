package detection

import (
	"context"
	"fmt"
	"image"
	"sync"
)

// Result is the out-of-band completion of a Detect call.
type Result struct {
	Seq uint64
	Set Set
	Err error
}

// Detector is the asynchronous face detector boundary. Detect must not block
// on inference; completions are delivered through the OnResult callback,
// possibly on another goroutine.
type Detector interface {
	Initialize(ctx context.Context) error
	Detect(ctx context.Context, seq uint64, frame image.Image)
	OnResult(fn func(Result))
	Close() error
}

// Engine is a synchronous detector implementation. Async adapts an Engine to
// the Detector boundary.
type Engine interface {
	Initialize(ctx context.Context) error
	Run(ctx context.Context, frame image.Image) (Set, error)
	Close() error
}

// Async runs an Engine on a background goroutine per request and reports the
// outcome through OnResult. A panicking engine is reported as an error result.
type Async struct {
	engine Engine

	mu       sync.Mutex
	onResult func(Result)
	wg       sync.WaitGroup
}

// NewAsync wraps engine.
func NewAsync(engine Engine) *Async {
	return &Async{engine: engine}
}

func (a *Async) Initialize(ctx context.Context) error {
	return a.engine.Initialize(ctx)
}

func (a *Async) OnResult(fn func(Result)) {
	a.mu.Lock()
	a.onResult = fn
	a.mu.Unlock()
}

func (a *Async) Detect(ctx context.Context, seq uint64, frame image.Image) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		res := Result{Seq: seq}
		func() {
			defer func() {
				if r := recover(); r != nil {
					res.Set = nil
					res.Err = fmt.Errorf("detector panic: %v", r)
				}
			}()
			res.Set, res.Err = a.engine.Run(ctx, frame)
		}()
		a.mu.Lock()
		fn := a.onResult
		a.mu.Unlock()
		if fn != nil {
			fn(res)
		}
	}()
}

// Close waits for in-flight requests and closes the engine.
func (a *Async) Close() error {
	a.wg.Wait()
	return a.engine.Close()
}

package backrooms

// workerPool bounds how many provider calls run at once across branches.
type workerPool struct {
	sem chan struct{}
}

func newWorkerPool(size int) *workerPool {
	if size <= 0 {
		size = 4
	}
	return &workerPool{sem: make(chan struct{}, size)}
}

// submit runs fn on its own goroutine once a slot frees up.
func (p *workerPool) submit(fn func()) {
	p.sem <- struct{}{}
	go func() {
		defer func() { <-p.sem }()
		fn()
	}()
}

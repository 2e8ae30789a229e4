package store

import "sync"

// taskQueue 单 worker 的 FIFO 任务队列：任务严格按提交顺序逐个执行
type taskQueue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	tasks   []func()
	running bool
	closed  bool
	done    chan struct{}
}

func newTaskQueue() *taskQueue {
	q := &taskQueue{done: make(chan struct{})}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *taskQueue) start() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running || q.closed {
		return
	}
	q.running = true
	go q.run()
}

// push 入队；队列已关闭返回 false
func (q *taskQueue) push(task func()) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed || !q.running {
		return false
	}
	q.tasks = append(q.tasks, task)
	q.cond.Signal()
	return true
}

func (q *taskQueue) pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// stop 不再接收新任务，执行完已入队的任务后返回
func (q *taskQueue) stop() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.done
		return
	}
	q.closed = true
	running := q.running
	q.cond.Signal()
	q.mu.Unlock()
	if !running {
		close(q.done)
		return
	}
	<-q.done
}

func (q *taskQueue) run() {
	defer close(q.done)
	for {
		q.mu.Lock()
		for len(q.tasks) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.tasks) == 0 {
			q.mu.Unlock()
			return
		}
		task := q.tasks[0]
		q.tasks[0] = nil
		q.tasks = q.tasks[1:]
		q.mu.Unlock()
		task()
	}
}

package rhl

import "sync"

//Task is one unit of work executed by the pool.
type Task interface {
	Execute()
}

//Pool fans tasks out over a fixed number of executor goroutines.
type Pool struct {
	tasks chan Task
	wg    sync.WaitGroup
}

//NewPool starts threadsNum executors consuming tasks as they arrive.
func NewPool(threadsNum int) *Pool {
	pool := &Pool{tasks: make(chan Task)}
	for threadInd := 0; threadInd < threadsNum; threadInd++ {
		pool.wg.Add(1)
		go func() {
			defer pool.wg.Done()
			for task := range pool.tasks {
				task.Execute()
			}
		}()
	}
	return pool
}

//AddTask submits one task. Blocks while every executor is busy.
func (p *Pool) AddTask(task Task) {
	p.tasks <- task
}

//Close signals that no more tasks will be added.
func (p *Pool) Close() {
	close(p.tasks)
}

//WaitAll blocks until every submitted task has completed.
func (p *Pool) WaitAll() {
	p.wg.Wait()
}

package worker

import (
	"context"
	"fmt"
	"log"
	"sync"
)

// Job is a unit of background work.
type Job func(ctx context.Context) error

// JobPayload is a named job as it travels through the pool.
type JobPayload struct {
	JobID string
	Name  string
	Run   Job
}

type WorkingPool struct {
	NumWorkers int
	jobChan    chan JobPayload
}

func NewWorkingPool(numWorkers int, queueSize int) *WorkingPool {
	return &WorkingPool{
		NumWorkers: max(numWorkers, 1),
		jobChan:    make(chan JobPayload, queueSize),
	}
}

// SubmitJob queues job, giving up when ctx ends first.
func (p *WorkingPool) SubmitJob(ctx context.Context, job JobPayload) error {
	select {
	case p.jobChan <- job:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("submit %s (%s): %w", job.Name, job.JobID, ctx.Err())
	}
}

func (p *WorkingPool) Start(ctx context.Context, managerWg *sync.WaitGroup) {
	defer managerWg.Done()

	var workerWg sync.WaitGroup
	for i := range p.NumWorkers {
		workerWg.Add(1)
		go p.worker(ctx, &workerWg, i+1)
	}

	<-ctx.Done()
	log.Println("[WorkingPool] Shutdown signaled.")

	workerWg.Wait()
	log.Println("[WorkingPool] All workers stopped.")
}

func (p *WorkingPool) worker(ctx context.Context, wg *sync.WaitGroup, id int) {
	defer wg.Done()
	log.Printf("[WorkingPool-Worker %d] Started and waiting for jobs.\n", id)

	for {
		select {
		case job := <-p.jobChan:
			p.safeExecution(ctx, job, id)
		case <-ctx.Done():
			log.Printf("[WorkingPool-Worker %d] Context canceled. Exiting.\n", id)
			return
		}
	}
}

func (p *WorkingPool) safeExecution(ctx context.Context, job JobPayload, workerID int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[WorkingPool-Worker %d] FATAL: Panic recovered in job %s (%s): %v\n", workerID, job.Name, job.JobID, r)
			err = fmt.Errorf("job %s panicked: %v", job.Name, r)
		}
	}()

	log.Printf("[WorkingPool-Worker %d] Picked up job %s (%s).\n", workerID, job.Name, job.JobID)
	if err = job.Run(ctx); err != nil {
		log.Printf("[WorkingPool-Worker %d] Error executing job %s: %s.\n", workerID, job.Name, err)
	}
	return err
}

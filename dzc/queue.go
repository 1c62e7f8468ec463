package dzc

import (
	"image"
	"sync"
)

type packJob struct {
	member Member
	level  int
	img    image.Image
}

// Queue runs a packer's compositing on a single dedicated goroutine, in the
// order levels are submitted. Submitted rasters must not be modified
// afterwards.
type Queue struct {
	packer *Packer
	jobs   chan packJob
	done   chan struct{}

	mu  sync.Mutex
	err error
}

func NewQueue(p *Packer, size int) *Queue {
	q := &Queue{
		packer: p,
		jobs:   make(chan packJob, size),
		done:   make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *Queue) run() {
	defer close(q.done)
	for job := range q.jobs {
		if q.Err() != nil {
			continue
		}
		if err := q.packer.pack(job.member, job.level, job.img); err != nil {
			q.mu.Lock()
			q.err = err
			q.mu.Unlock()
		}
	}
}

// Err returns the first packing failure, if any.
func (q *Queue) Err() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.err
}

// Submit queues a level of the current member. It returns the first failure
// seen so far so the caller can stop feeding a broken collection.
func (q *Queue) Submit(level int, img image.Image) error {
	if err := q.Err(); err != nil {
		return err
	}
	m, ok := q.packer.Current()
	if !ok {
		return ErrNoMember
	}
	q.jobs <- packJob{member: m, level: level, img: img}
	return nil
}

// Close waits for every queued level to be packed.
func (q *Queue) Close() error {
	close(q.jobs)
	<-q.done
	return q.Err()
}

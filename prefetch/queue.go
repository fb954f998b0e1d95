package prefetch

import "container/heap"

// job is one unit of scheduled work: a cache entry to refresh, or a
// prefetch-on-open read, ordered by descending priority.
type job struct {
	namespace string
	key       string
	priority  float64
	refresh   func() error
	index     int // maintained by heap.Interface
}

// priorityQueue orders jobs by descending priority; no ecosystem
// priority-queue library turned up in the retrieved corpus, so this
// follows the standard container/heap example shape (a max-heap via an
// inverted Less).
type priorityQueue []*job

func (pq priorityQueue) Len() int { return len(pq) }

func (pq priorityQueue) Less(i, j int) bool {
	return pq[i].priority > pq[j].priority
}

func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *priorityQueue) Push(x any) {
	j := x.(*job)
	j.index = len(*pq)
	*pq = append(*pq, j)
}

func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	j := old[n-1]
	old[n-1] = nil
	j.index = -1
	*pq = old[:n-1]
	return j
}

var _ heap.Interface = (*priorityQueue)(nil)

package mempool

import (
	"container/heap"

	"github.com/aurum-project/aurumd/internal/chainhash"
)

// txPriorityQueue orders mempool entries for select_for_block: highest
// fee-rate first, ties broken on txid lexicographic order for
// determinism (spec.md §4.5). Grounded on the container/heap-based
// txPriorityQueue pattern used for fee-rate block template selection in
// the mining package of the wider pack.
type txPriorityQueue []*Entry

func (pq txPriorityQueue) Len() int { return len(pq) }

func (pq txPriorityQueue) Less(i, j int) bool {
	if pq[i].FeeRate != pq[j].FeeRate {
		return pq[i].FeeRate > pq[j].FeeRate
	}
	return chainhash.Less(pq[i].Txid, pq[j].Txid)
}

func (pq txPriorityQueue) Swap(i, j int) { pq[i], pq[j] = pq[j], pq[i] }

func (pq *txPriorityQueue) Push(x interface{}) {
	*pq = append(*pq, x.(*Entry))
}

func (pq *txPriorityQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	*pq = old[:n-1]
	return item
}

// sortByPriority reorders pq in place, highest fee-rate (then lowest
// txid) first, by heapifying and draining through container/heap.
func (pq *txPriorityQueue) sortByPriority() {
	heap.Init(pq)
	ordered := make(txPriorityQueue, 0, pq.Len())
	for pq.Len() > 0 {
		ordered = append(ordered, heap.Pop(pq).(*Entry))
	}
	*pq = ordered
}

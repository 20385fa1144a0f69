package vectorindex

import (
	"container/heap"
	"math"
	"math/rand"
)

// hnswNode is one vector inserted into the graph. NodeID is the graph's own
// sequential identity; Key is the caller-supplied row key, which — because
// VectorIndex is multi=true — may repeat across distinct nodes.
type hnswNode struct {
	NodeID    int
	Key       uint64
	Vector    []float32
	Level     int
	Neighbors [][]int
	Deleted   bool
}

// hnsw is a hierarchical navigable small world graph over float32 vectors.
// Quantization (F16/I8) is applied above this layer, in VectorIndex.Add:
// the graph itself always walks dequantized float32, per the cosine
// distance invariant in the spec's design notes.
type hnsw struct {
	m              int
	maxM           int
	efConstruction int

	nodes      map[int]*hnswNode
	entryPoint int // -1 when empty
	nextID     int

	rng *rand.Rand
}

func newHNSW(m, efConstruction int, seed int64) *hnsw {
	return &hnsw{
		m:              m,
		maxM:           m * 2,
		efConstruction: efConstruction,
		nodes:          make(map[int]*hnswNode),
		entryPoint:     -1,
		rng:            rand.New(rand.NewSource(seed)),
	}
}

func (h *hnsw) selectLevel() int {
	level := 0
	for h.rng.Float64() < 0.5 {
		level++
		if level > 16 {
			break
		}
	}
	return level
}

func (h *hnsw) size() int {
	n := 0
	for _, node := range h.nodes {
		if !node.Deleted {
			n++
		}
	}
	return n
}

// insert adds vector under key, returning the new node's graph id.
func (h *hnsw) insert(key uint64, vector []float32) int {
	id := h.nextID
	h.nextID++

	level := h.selectLevel()
	node := &hnswNode{
		NodeID:    id,
		Key:       key,
		Vector:    vector,
		Level:     level,
		Neighbors: make([][]int, level+1),
	}
	for i := range node.Neighbors {
		node.Neighbors[i] = make([]int, 0)
	}
	h.nodes[id] = node

	if h.entryPoint == -1 {
		h.entryPoint = id
		return id
	}

	currNearest := []int{h.entryPoint}
	entryNode := h.nodes[h.entryPoint]
	for lc := entryNode.Level; lc > level; lc-- {
		currNearest = h.searchLayerClosest(vector, currNearest, 1, lc)
	}

	for lc := level; lc >= 0; lc-- {
		maxConn := h.m
		if lc == 0 {
			maxConn = h.maxM
		}

		candidates := h.searchLayer(vector, currNearest, h.efConstruction, lc)
		neighbors := h.selectNeighborsHeuristic(vector, candidates, maxConn)

		node.Neighbors[lc] = neighbors
		for _, nb := range neighbors {
			h.addConnection(nb, id, lc)

			nbNode := h.nodes[nb]
			if lc < len(nbNode.Neighbors) && len(nbNode.Neighbors[lc]) > maxConn {
				nbNode.Neighbors[lc] = h.selectNeighborsHeuristic(nbNode.Vector, nbNode.Neighbors[lc], maxConn)
			}
		}

		currNearest = neighbors
	}

	if level > h.nodes[h.entryPoint].Level {
		h.entryPoint = id
	}

	return id
}

func (h *hnsw) addConnection(from, to, layer int) {
	fromNode, ok := h.nodes[from]
	if !ok || layer >= len(fromNode.Neighbors) {
		return
	}
	for _, nb := range fromNode.Neighbors[layer] {
		if nb == to {
			return
		}
	}
	fromNode.Neighbors[layer] = append(fromNode.Neighbors[layer], to)
}

func (h *hnsw) searchLayerClosest(query []float32, entryPoints []int, num, layer int) []int {
	candidates := h.searchLayer(query, entryPoints, num, layer)
	if len(candidates) > num {
		return candidates[:num]
	}
	return candidates
}

func (h *hnsw) searchLayer(query []float32, entryPoints []int, ef, layer int) []int {
	visited := make(map[int]bool)
	candidates := &distHeap{}
	dynamic := &distHeap{}

	for _, p := range entryPoints {
		dist := cosineDistance(query, h.nodes[p].Vector)
		heap.Push(candidates, &heapItem{id: p, dist: dist})
		heap.Push(dynamic, &heapItem{id: p, dist: -dist})
		visited[p] = true
	}

	for candidates.Len() > 0 {
		if dynamic.Len() > 0 {
			lowerBound := (*candidates)[0].dist
			if lowerBound > -(*dynamic)[0].dist {
				break
			}
		}

		current := heap.Pop(candidates).(*heapItem)
		currentNode := h.nodes[current.id]
		if layer >= len(currentNode.Neighbors) {
			continue
		}

		for _, nb := range currentNode.Neighbors[layer] {
			if visited[nb] {
				continue
			}
			visited[nb] = true

			dist := cosineDistance(query, h.nodes[nb].Vector)
			if dynamic.Len() < ef || dist < -(*dynamic)[0].dist {
				heap.Push(candidates, &heapItem{id: nb, dist: dist})
				heap.Push(dynamic, &heapItem{id: nb, dist: -dist})
				if dynamic.Len() > ef {
					heap.Pop(dynamic)
				}
			}
		}
	}

	result := make([]int, 0, dynamic.Len())
	for dynamic.Len() > 0 {
		result = append(result, heap.Pop(dynamic).(*heapItem).id)
	}
	for i := 0; i < len(result)/2; i++ {
		result[i], result[len(result)-1-i] = result[len(result)-1-i], result[i]
	}
	return result
}

func (h *hnsw) selectNeighborsHeuristic(query []float32, candidates []int, m int) []int {
	if len(candidates) <= m {
		return candidates
	}

	type pair struct {
		id   int
		dist float32
	}
	pairs := make([]pair, len(candidates))
	for i, c := range candidates {
		pairs[i] = pair{id: c, dist: cosineDistance(query, h.nodes[c].Vector)}
	}
	for i := 0; i < len(pairs)-1; i++ {
		for j := i + 1; j < len(pairs); j++ {
			if pairs[j].dist < pairs[i].dist {
				pairs[i], pairs[j] = pairs[j], pairs[i]
			}
		}
	}

	result := make([]int, 0, m)
	for i := 0; i < m && i < len(pairs); i++ {
		result = append(result, pairs[i].id)
	}
	return result
}

type hnswHit struct {
	key   uint64
	score float32
}

// search returns up to k hits ordered by descending score (1 - cosine distance).
func (h *hnsw) search(query []float32, k, ef int) []hnswHit {
	if h.entryPoint == -1 {
		return nil
	}

	entryNode := h.nodes[h.entryPoint]
	currNearest := []int{h.entryPoint}
	for layer := entryNode.Level; layer > 0; layer-- {
		currNearest = h.searchLayerClosest(query, currNearest, 1, layer)
	}

	candidates := h.searchLayer(query, currNearest, ef, 0)

	hits := make([]hnswHit, 0, len(candidates))
	for _, c := range candidates {
		node := h.nodes[c]
		if node.Deleted {
			continue
		}
		dist := cosineDistance(query, node.Vector)
		hits = append(hits, hnswHit{key: node.Key, score: 1 - dist})
	}

	for i := 0; i < len(hits)-1; i++ {
		for j := i + 1; j < len(hits); j++ {
			if hits[j].score > hits[i].score {
				hits[i], hits[j] = hits[j], hits[i]
			}
		}
	}

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

func cosineDistance(a, b []float32) float32 {
	var dot, normA, normB float32
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 1.0
	}
	sim := dot / float32(math.Sqrt(float64(normA))*math.Sqrt(float64(normB)))
	return 1 - sim
}

type heapItem struct {
	id   int
	dist float32
}

type distHeap []*heapItem

func (h distHeap) Len() int            { return len(h) }
func (h distHeap) Less(i, j int) bool  { return h[i].dist < h[j].dist }
func (h distHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *distHeap) Push(x interface{}) { *h = append(*h, x.(*heapItem)) }
func (h *distHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

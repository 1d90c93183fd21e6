package store

import (
	"math"
	"sync"

	"github.com/coder/hnsw"
)

const indexMaxNeighbors = 16

// Neighbor is an identity close to a query embedding.
type Neighbor struct {
	IdentityID string  `json:"identity_id"`
	Name       string  `json:"name"`
	Distance   float64 `json:"distance"`
}

// IdentityIndex is an in-memory HNSW index over canonical identity
// embeddings. It serves duplicate-enrollment screening and the "similar
// identities" lookup; attendance matching never reads it, the matcher
// always does an exact scan of the identity snapshot.
type IdentityIndex struct {
	mu    sync.RWMutex
	graph *hnsw.Graph[string]
	names map[string]string
}

// NewIdentityIndex creates an empty index.
func NewIdentityIndex() *IdentityIndex {
	return &IdentityIndex{names: make(map[string]string)}
}

func newGraph() *hnsw.Graph[string] {
	g := hnsw.NewGraph[string]()
	g.M = indexMaxNeighbors
	g.Ml = 1.0 / float64(indexMaxNeighbors)
	g.Distance = hnsw.EuclideanDistance
	return g
}

// Rebuild replaces the index contents with the given identities.
func (x *IdentityIndex) Rebuild(identities []Identity) {
	g := newGraph()
	names := make(map[string]string, len(identities))
	for i := range identities {
		id := &identities[i]
		if len(id.Embedding) == 0 {
			continue
		}
		g.Add(hnsw.MakeNode(id.ID, id.Embedding))
		names[id.ID] = id.Name
	}

	x.mu.Lock()
	x.graph = g
	x.names = names
	x.mu.Unlock()
}

// Add inserts a single identity into the index.
func (x *IdentityIndex) Add(identity Identity) {
	if len(identity.Embedding) == 0 {
		return
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	if x.graph == nil {
		x.graph = newGraph()
	}
	x.graph.Add(hnsw.MakeNode(identity.ID, identity.Embedding))
	x.names[identity.ID] = identity.Name
}

// Search returns up to k identities nearest to the query embedding,
// excluding excludeID, closest first.
func (x *IdentityIndex) Search(query []float32, k int, excludeID string) []Neighbor {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.graph == nil || k <= 0 {
		return nil
	}

	// Ask for one extra in case the excluded identity is among the results.
	nodes := x.graph.Search(query, k+1)
	neighbors := make([]Neighbor, 0, len(nodes))
	for _, n := range nodes {
		if n.Key == excludeID {
			continue
		}
		neighbors = append(neighbors, Neighbor{
			IdentityID: n.Key,
			Name:       x.names[n.Key],
			Distance:   euclidean(query, n.Value),
		})
		if len(neighbors) == k {
			break
		}
	}
	return neighbors
}

// Len returns the number of indexed identities.
func (x *IdentityIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.names)
}

func euclidean(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

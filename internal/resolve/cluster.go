package resolve

import "sort"

// Edge is one scored pair in a similarity graph over candidate indices.
type Edge struct {
	A, B  int
	Score float64
}

// Cluster is one connected component of the thresholded similarity graph.
// Confidence is the weakest scored pair inside the component: a weak link
// anywhere keeps the whole cluster from being fully trusted.
type Cluster struct {
	Members    []int
	Confidence float64
}

// Clusters partitions n items into connected components using only edges at
// or above the floor. Every supplied edge between two members still counts
// toward the component's confidence, so a sub-floor pair inside a component
// drags its confidence down. Singletons come back with confidence 0.
func Clusters(n int, edges []Edge, floor float64) []Cluster {
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}

	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[rb] = ra
		}
	}

	for _, edge := range edges {
		if edge.Score >= floor && edge.A >= 0 && edge.A < n && edge.B >= 0 && edge.B < n {
			union(edge.A, edge.B)
		}
	}

	grouped := make(map[int]*Cluster)
	for i := 0; i < n; i++ {
		root := find(i)
		cluster, ok := grouped[root]
		if !ok {
			cluster = &Cluster{}
			grouped[root] = cluster
		}
		cluster.Members = append(cluster.Members, i)
	}

	for _, edge := range edges {
		if edge.A < 0 || edge.A >= n || edge.B < 0 || edge.B >= n {
			continue
		}
		root := find(edge.A)
		if root != find(edge.B) {
			continue
		}
		cluster := grouped[root]
		if cluster.Confidence == 0 || edge.Score < cluster.Confidence {
			cluster.Confidence = edge.Score
		}
	}

	result := make([]Cluster, 0, len(grouped))
	for _, cluster := range grouped {
		sort.Ints(cluster.Members)
		result = append(result, *cluster)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Members[0] < result[j].Members[0]
	})
	return result
}

package resolve

import (
	"reflect"
	"testing"
)

func TestClustersConnectedComponents(t *testing.T) {
	t.Parallel()

	edges := []Edge{
		{A: 0, B: 1, Score: 0.9},
		{A: 1, B: 2, Score: 0.87},
		{A: 3, B: 4, Score: 0.95},
		{A: 0, B: 3, Score: 0.6}, // below the floor, must not join the components
	}

	clusters := Clusters(6, edges, 0.85)
	if len(clusters) != 3 {
		t.Fatalf("expected 3 clusters, got %d: %+v", len(clusters), clusters)
	}

	if !reflect.DeepEqual(clusters[0].Members, []int{0, 1, 2}) {
		t.Fatalf("wrong first component: %v", clusters[0].Members)
	}
	if clusters[0].Confidence != 0.87 {
		t.Fatalf("component confidence is its weakest edge, got %v", clusters[0].Confidence)
	}

	if !reflect.DeepEqual(clusters[1].Members, []int{3, 4}) {
		t.Fatalf("wrong second component: %v", clusters[1].Members)
	}
	if clusters[1].Confidence != 0.95 {
		t.Fatalf("wrong second confidence: %v", clusters[1].Confidence)
	}

	if !reflect.DeepEqual(clusters[2].Members, []int{5}) {
		t.Fatalf("expected 5 as a singleton: %v", clusters[2].Members)
	}
	if clusters[2].Confidence != 0 {
		t.Fatalf("singletons carry no confidence, got %v", clusters[2].Confidence)
	}
}

func TestClustersTransitiveMerge(t *testing.T) {
	t.Parallel()

	// 0-1 and 1-2 clear the floor while 0-2 does not: transitivity still
	// pulls all three together, and the sub-floor 0-2 pair sets the
	// component's confidence.
	edges := []Edge{
		{A: 0, B: 1, Score: 0.9},
		{A: 1, B: 2, Score: 0.86},
		{A: 0, B: 2, Score: 0.7},
	}

	clusters := Clusters(3, edges, 0.85)
	if len(clusters) != 1 {
		t.Fatalf("expected one component, got %+v", clusters)
	}
	if !reflect.DeepEqual(clusters[0].Members, []int{0, 1, 2}) {
		t.Fatalf("wrong members: %v", clusters[0].Members)
	}
	if clusters[0].Confidence != 0.7 {
		t.Fatalf("confidence must be the weakest pair inside the component, got %v", clusters[0].Confidence)
	}
}

func TestClustersSubFloorEdgeBetweenComponentsIgnored(t *testing.T) {
	t.Parallel()

	// A weak pair spanning two separate components neither joins them nor
	// affects either confidence.
	edges := []Edge{
		{A: 0, B: 1, Score: 0.9},
		{A: 2, B: 3, Score: 0.88},
		{A: 1, B: 2, Score: 0.4},
	}

	clusters := Clusters(4, edges, 0.85)
	if len(clusters) != 2 {
		t.Fatalf("expected two components, got %+v", clusters)
	}
	if clusters[0].Confidence != 0.9 || clusters[1].Confidence != 0.88 {
		t.Fatalf("cross-component pair must not affect confidence: %+v", clusters)
	}
}

func TestClustersNoEdges(t *testing.T) {
	t.Parallel()

	clusters := Clusters(3, nil, 0.85)
	if len(clusters) != 3 {
		t.Fatalf("every item is its own cluster, got %+v", clusters)
	}
}

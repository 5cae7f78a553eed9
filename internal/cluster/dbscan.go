package cluster

import (
	"github.com/kozaktomas/photo-gallery/internal/constants"
	"github.com/kozaktomas/photo-gallery/internal/database"
)

// Point is one face embedding eligible for clustering.
// An image may contribute several points, one per detected face slot.
type Point struct {
	ImageUID string
	Slot     int
	Vector   []float32
}

// Key identifies a point by its owning image and face slot.
type Key struct {
	ImageUID string
	Slot     int
}

// dbscan runs density-based clustering over cosine distance.
//
// A point is a core point if at least minSamples points (itself included)
// lie within eps cosine distance; clusters are maximal sets connected
// through chains of core points and their neighbors. Points reachable from
// no core point get the noise label (-1). Cluster ids are assigned in
// discovery order starting at 1 and carry no meaning across runs.
func dbscan(points []Point, eps float64, minSamples int) []int {
	n := len(points)
	if n == 0 {
		return nil
	}

	const undefined = 0

	labels := make([]int, n) // 0 = undefined
	clusterID := 0

	for i := 0; i < n; i++ {
		if labels[i] != undefined {
			continue
		}

		neighbors := regionQuery(points, points[i].Vector, eps)
		if len(neighbors) < minSamples {
			labels[i] = constants.NoiseLabel
			continue
		}

		// Start a new cluster.
		clusterID++
		labels[i] = clusterID

		// Seed set: neighbors minus point i.
		seed := make([]int, 0, len(neighbors))
		for _, j := range neighbors {
			if j != i {
				seed = append(seed, j)
			}
		}

		for len(seed) > 0 {
			q := seed[0]
			seed = seed[1:]

			if labels[q] == constants.NoiseLabel {
				labels[q] = clusterID
			}
			if labels[q] != undefined {
				continue
			}
			labels[q] = clusterID

			qNeighbors := regionQuery(points, points[q].Vector, eps)
			if len(qNeighbors) >= minSamples {
				seed = append(seed, qNeighbors...)
			}
		}
	}

	return labels
}

// regionQuery returns indices of all points within eps cosine distance of
// the query vector. The eps boundary is inclusive. Scans are exact: the
// incremental topology checks built on top of this must never miss a
// neighbor, so no approximate index is used here.
func regionQuery(points []Point, query []float32, eps float64) []int {
	var result []int
	for i := range points {
		if database.CosineDistance(query, points[i].Vector) <= eps {
			result = append(result, i)
		}
	}
	return result
}

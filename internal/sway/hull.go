package sway

import "sort"

// ConvexHull returns the convex hull of pts in counter-clockwise order using
// Andrew's monotone chain. Collinear points on the boundary are dropped.
// Fewer than three distinct points are returned as-is (sorted).
func ConvexHull(pts []Point) []Point {
	if len(pts) == 0 {
		return nil
	}
	sorted := make([]Point, len(pts))
	copy(sorted, pts)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].ML != sorted[j].ML {
			return sorted[i].ML < sorted[j].ML
		}
		return sorted[i].AP < sorted[j].AP
	})

	uniq := sorted[:1]
	for _, p := range sorted[1:] {
		if p != uniq[len(uniq)-1] {
			uniq = append(uniq, p)
		}
	}
	if len(uniq) < 3 {
		return uniq
	}

	hull := make([]Point, 0, 2*len(uniq))
	for _, p := range uniq {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	lower := len(hull) + 1
	for i := len(uniq) - 2; i >= 0; i-- {
		p := uniq[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	// The last point repeats the first.
	return hull[:len(hull)-1]
}

func cross(o, a, b Point) float64 {
	return (a.ML-o.ML)*(b.AP-o.AP) - (a.AP-o.AP)*(b.ML-o.ML)
}

// PolygonArea is the shoelace area of a simple polygon. Fewer than three
// vertices have zero area.
func PolygonArea(poly []Point) float64 {
	if len(poly) < 3 {
		return 0
	}
	var sum float64
	for i := range poly {
		j := (i + 1) % len(poly)
		sum += poly[i].ML*poly[j].AP - poly[j].ML*poly[i].AP
	}
	if sum < 0 {
		sum = -sum
	}
	return sum / 2
}

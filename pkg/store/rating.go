package store

import (
	"math"

	"vendorhub/pkg/domain"
)

// RoundRating rounds a mean rating to one decimal place.
func RoundRating(avg float64) float64 {
	return math.Round(avg*10) / 10
}

// Aggregate returns the rounded mean and count of reviews that count toward
// a vendor's rating. Rejected reviews are excluded.
func Aggregate(reviews []domain.Review) (float64, int) {
	sum, n := 0, 0
	for _, r := range reviews {
		if r.Status == domain.ReviewRejected {
			continue
		}
		sum += r.Rating
		n++
	}
	if n == 0 {
		return 0, 0
	}
	return RoundRating(float64(sum) / float64(n)), n
}

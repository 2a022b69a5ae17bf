package utils

import (
	"github.com/google/uuid"
)

func GenerateUUID() string {
	return uuid.NewString()
}

// RatingBucket function    maps a rating to its problem difficulty
// bucket. Buckets are 200 points wide and clamped to [400, 2400].
func RatingBucket(rating float64) int {
	r := int(rating)
	if r < 400 {
		r = 400
	}
	if r > 2400 {
		r = 2400
	}
	return r / 200 * 200
}

package server

import (
	"github.com/codeduel-vn/codeduel/internal/domains/entities"
)

// applyRatingDelta settles one participant's rating for a resolved
// match. A flat delta per decisive match, floored at zero; streaks
// count consecutive wins.
func applyRatingDelta(
	player entities.MatchPlayer,
	rating entities.UserRating,
	outcome entities.PlayerResult,
	delta float64,
) (entities.MatchPlayer, entities.UserRating) {
	after := rating.Rating
	switch outcome {
	case entities.ResultWon:
		after += delta
		rating.Streak++
	case entities.ResultLost:
		after -= delta
		rating.Streak = 0
	case entities.ResultDraw:
		rating.Streak = 0
	}
	if after < 0 {
		after = 0
	}

	player.Result = outcome
	player.RatingAfter = &after
	rating.UserId = player.UserId
	rating.Rating = after
	return player, rating
}

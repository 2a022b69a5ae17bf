package dtos

import (
	"time"

	"github.com/codeduel-vn/codeduel/internal/domains/entities"
)

type MatchResultResponse struct {
	MatchId     string     `json:"matchId"`
	Status      string     `json:"status"`
	OpponentId  string     `json:"opponentId"`
	Result      string     `json:"result"`
	RatingAfter *float64   `json:"ratingAfter,omitempty"`
	EndedAt     *time.Time `json:"endedAt,omitempty"`
}

type MatchResultListResponse struct {
	MatchResults  []MatchResultResponse `json:"matchResults"`
	NextPageToken string                `json:"nextPageToken,omitempty"`
}

func MatchResultListResponseFromEntities(
	userId string,
	matches []entities.Match,
	players map[string]entities.MatchPlayer,
) MatchResultListResponse {
	resp := MatchResultListResponse{
		MatchResults: make([]MatchResultResponse, 0, len(matches)),
	}
	for _, match := range matches {
		result := MatchResultResponse{
			MatchId:    match.Id,
			Status:     string(match.Status),
			OpponentId: match.OpponentOf(userId),
			EndedAt:    match.EndedAt,
		}
		if player, ok := players[match.Id]; ok {
			result.Result = string(player.Result)
			result.RatingAfter = player.RatingAfter
		}
		resp.MatchResults = append(resp.MatchResults, result)
	}
	return resp
}

package dtos

import (
	"github.com/codeduel-vn/codeduel/internal/domains/entities"
)

type UserRatingResponse struct {
	UserId string  `json:"userId"`
	Rating float64 `json:"rating"`
	Streak int     `json:"streak"`
}

type UserRatingListResponse struct {
	UserRatings   []UserRatingResponse `json:"userRatings"`
	NextPageToken string               `json:"nextPageToken,omitempty"`
}

func UserRatingListResponseFromEntities(userRatings []entities.UserRating) UserRatingListResponse {
	resp := UserRatingListResponse{
		UserRatings: make([]UserRatingResponse, 0, len(userRatings)),
	}
	for _, rating := range userRatings {
		resp.UserRatings = append(resp.UserRatings, UserRatingResponse{
			UserId: rating.UserId,
			Rating: rating.Rating,
			Streak: rating.Streak,
		})
	}
	return resp
}

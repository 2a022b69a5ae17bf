package entities

type PlayerResult string

const (
	ResultPending PlayerResult = "PENDING"
	ResultWon     PlayerResult = "WON"
	ResultLost    PlayerResult = "LOST"
	ResultDraw    PlayerResult = "DRAW"
)

type MatchPlayer struct {
	MatchId      string       `dynamodbav:"MatchId" json:"matchId"`
	UserId       string       `dynamodbav:"UserId" json:"userId"`
	Result       PlayerResult `dynamodbav:"Result" json:"result"`
	RatingBefore float64      `dynamodbav:"RatingBefore" json:"ratingBefore"`
	RatingAfter  *float64     `dynamodbav:"RatingAfter" json:"ratingAfter,omitempty"`
}

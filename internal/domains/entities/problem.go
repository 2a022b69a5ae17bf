package entities

type Problem struct {
	Bucket    int    `dynamodbav:"Bucket" json:"bucket"`
	ProblemId string `dynamodbav:"ProblemId" json:"problemId"`
	Title     string `dynamodbav:"Title" json:"title"`
	Statement string `dynamodbav:"Statement" json:"statement"`
}

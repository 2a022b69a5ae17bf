package dtos

// Verdict values returned by the AI judge.
const (
	VerdictAccepted     = "ACCEPTED"
	VerdictWrongAnswer  = "WRONG_ANSWER"
	VerdictTimeLimit    = "TIME_LIMIT"
	VerdictCompileError = "COMPILE_ERROR"
	VerdictJudgeError   = "JUDGE_ERROR"
)

type JudgeRequest struct {
	ProblemStatement string `json:"problemStatement"`
	Code             string `json:"code"`
	Language         string `json:"language"`
}

type JudgeResult struct {
	Verdict    string  `json:"verdict"`
	Confidence float64 `json:"confidence"`
	Feedback   string  `json:"feedback"`
}

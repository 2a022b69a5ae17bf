package judge

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/codeduel-vn/codeduel/internal/domains/dtos"
	"github.com/codeduel-vn/codeduel/pkg/logging"
	"go.uber.org/zap"
)

// Client calls the AI judge deployed as a Lambda function. The judge is
// a black box: it classifies a submission against a problem statement
// and returns a verdict with a confidence score.
type Client struct {
	lambda *lambda.Client
	cfg    Config
}

func NewClient(lambdaClient *lambda.Client, cfg Config) *Client {
	return &Client{
		lambda: lambdaClient,
		cfg:    cfg,
	}
}

/*
Judge method    submits code for judging and always returns a completed
verdict. A judge failure or timeout surfaces as a zero-confidence
JUDGE_ERROR verdict rather than an error: matches are time-bounded, so
a hung or retried submission would desynchronize the match timer from
what the players see.
*/
func (client *Client) Judge(
	ctx context.Context,
	problemStatement string,
	code string,
	language string,
) dtos.JudgeResult {
	payload, err := json.Marshal(dtos.JudgeRequest{
		ProblemStatement: problemStatement,
		Code:             code,
		Language:         language,
	})
	if err != nil {
		return judgeErrorResult("failed to encode submission")
	}

	ctx, cancel := context.WithTimeout(ctx, client.cfg.Timeout)
	defer cancel()

	output, err := client.lambda.Invoke(ctx, &lambda.InvokeInput{
		FunctionName:   aws.String(client.cfg.FunctionName),
		Payload:        payload,
		InvocationType: types.InvocationTypeRequestResponse,
	})
	if err != nil {
		logging.Error("failed to invoke judge", zap.Error(err))
		return judgeErrorResult("judge unavailable")
	}
	if output.FunctionError != nil {
		logging.Error("judge function error", zap.String("error", *output.FunctionError))
		return judgeErrorResult("judge failed")
	}

	var result dtos.JudgeResult
	if err := json.Unmarshal(output.Payload, &result); err != nil {
		logging.Error("failed to decode judge response", zap.Error(err))
		return judgeErrorResult("invalid judge response")
	}
	return result
}

func judgeErrorResult(feedback string) dtos.JudgeResult {
	return dtos.JudgeResult{
		Verdict:    dtos.VerdictJudgeError,
		Confidence: 0,
		Feedback:   feedback,
	}
}

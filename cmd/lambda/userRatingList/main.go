package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/codeduel-vn/codeduel/internal/aws/auth"
	"github.com/codeduel-vn/codeduel/internal/aws/storage"
	"github.com/codeduel-vn/codeduel/internal/domains/dtos"
	"github.com/codeduel-vn/codeduel/pkg/logging"
	"go.uber.org/zap"
)

var storageClient *storage.Client

func init() {
	cfg, _ := config.LoadDefaultConfig(context.TODO())
	storageClient = storage.NewClient(
		dynamodb.NewFromConfig(cfg),
		storage.ConfigFromEnv(),
	)
}

func handler(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	auth.MustAuth(event.RequestContext.Authorizer)
	startKey, limit, err := extractScanParameters(event.QueryStringParameters)
	if err != nil {
		logging.Error("Failed to list user ratings", zap.Error(err))
		return events.APIGatewayProxyResponse{StatusCode: http.StatusBadRequest}, nil
	}
	userRatings, lastEvaluatedKey, err := storageClient.FetchUserRatings(ctx, startKey, limit)
	if err != nil {
		logging.Error("Failed to list user ratings", zap.Error(err))
		return events.APIGatewayProxyResponse{StatusCode: http.StatusInternalServerError}, nil
	}

	userRatingListResp := dtos.UserRatingListResponseFromEntities(userRatings)
	if lastEvaluatedKey != nil {
		if v, ok := lastEvaluatedKey["UserId"].(*types.AttributeValueMemberS); ok {
			userRatingListResp.NextPageToken = v.Value
		}
	}

	userRatingListJson, err := json.Marshal(userRatingListResp)
	if err != nil {
		logging.Error("Failed to list user ratings", zap.Error(err))
		return events.APIGatewayProxyResponse{StatusCode: http.StatusInternalServerError}, nil
	}
	return events.APIGatewayProxyResponse{StatusCode: http.StatusOK, Body: string(userRatingListJson)}, nil
}

func extractScanParameters(params map[string]string) (map[string]types.AttributeValue, int32, error) {
	limitStr, ok := params["limit"]
	if !ok {
		return nil, 0, fmt.Errorf("missing parameter: limit")
	}

	limit, err := strconv.ParseInt(limitStr, 10, 32)
	if err != nil {
		return nil, 0, fmt.Errorf("invalid limit: %v", err)
	}

	// Check for startKey (optional)
	var startKey map[string]types.AttributeValue
	if startKeyStr, ok := params["startKey"]; ok {
		startKey = map[string]types.AttributeValue{
			"UserId": &types.AttributeValueMemberS{Value: startKeyStr},
		}
	}

	return startKey, int32(limit), nil
}

func main() {
	lambda.Start(handler)
}

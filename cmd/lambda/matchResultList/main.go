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
	"github.com/codeduel-vn/codeduel/internal/aws/auth"
	"github.com/codeduel-vn/codeduel/internal/aws/storage"
	"github.com/codeduel-vn/codeduel/internal/domains/dtos"
	"github.com/codeduel-vn/codeduel/internal/domains/entities"
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
	userId := auth.MustAuth(event.RequestContext.Authorizer)
	limit, err := extractLimit(event.QueryStringParameters)
	if err != nil {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusBadRequest},
			fmt.Errorf("failed to extract parameters: %w", err)
	}

	matches, err := storageClient.FetchResolvedMatches(ctx, userId, limit)
	if err != nil {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusInternalServerError},
			fmt.Errorf("failed to fetch match results: %w", err)
	}
	players := make(map[string]entities.MatchPlayer)
	for _, match := range matches {
		matchPlayers, err := storageClient.GetMatchPlayers(ctx, match.Id)
		if err != nil {
			return events.APIGatewayProxyResponse{StatusCode: http.StatusInternalServerError},
				fmt.Errorf("failed to fetch match players: %w", err)
		}
		for _, player := range matchPlayers {
			if player.UserId == userId {
				players[match.Id] = player
			}
		}
	}

	matchResultListResp := dtos.MatchResultListResponseFromEntities(userId, matches, players)
	matchResultListJson, err := json.Marshal(matchResultListResp)
	if err != nil {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusInternalServerError},
			fmt.Errorf("failed to marshal response: %w", err)
	}
	return events.APIGatewayProxyResponse{StatusCode: http.StatusOK, Body: string(matchResultListJson)}, nil
}

func extractLimit(params map[string]string) (int32, error) {
	limitStr, ok := params["limit"]
	if !ok {
		return 10, nil
	}
	limit, err := strconv.ParseInt(limitStr, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid limit: %v", err)
	}
	return int32(limit), nil
}

func main() {
	lambda.Start(handler)
}

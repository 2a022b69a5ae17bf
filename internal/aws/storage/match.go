package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/codeduel-vn/codeduel/internal/domains/entities"
)

var (
	ErrMatchNotFound       = fmt.Errorf("match not found")
	ErrMatchPlayerNotFound = fmt.Errorf("match player not found")
)

func (client *Client) GetMatch(ctx context.Context, matchId string) (entities.Match, error) {
	output, err := client.dynamodb.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: client.cfg.MatchesTableName,
		Key: map[string]types.AttributeValue{
			"MatchId": &types.AttributeValueMemberS{
				Value: matchId,
			},
		},
	})
	if err != nil {
		return entities.Match{}, err
	}
	if output.Item == nil {
		return entities.Match{}, ErrMatchNotFound
	}
	var match entities.Match
	if err := attributevalue.UnmarshalMap(output.Item, &match); err != nil {
		return entities.Match{}, err
	}
	return match, nil
}

func (client *Client) GetMatchPlayers(
	ctx context.Context,
	matchId string,
) (
	[]entities.MatchPlayer,
	error,
) {
	output, err := client.dynamodb.Query(ctx, &dynamodb.QueryInput{
		TableName:              client.cfg.MatchPlayersTableName,
		KeyConditionExpression: aws.String("MatchId = :matchId"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":matchId": &types.AttributeValueMemberS{Value: matchId},
		},
	})
	if err != nil {
		return nil, err
	}
	var players []entities.MatchPlayer
	if err := attributevalue.UnmarshalListOfMaps(output.Items, &players); err != nil {
		return nil, err
	}
	return players, nil
}

// GetUnresolvedMatchForUser method    finds a non-terminal match the
// user is part of, if any. Queries the per-player index for each seat.
func (client *Client) GetUnresolvedMatchForUser(
	ctx context.Context,
	userId string,
) (
	entities.Match,
	error,
) {
	for _, indexName := range []string{"Player1Index", "Player2Index"} {
		keyAttribute := "Player1Id"
		if indexName == "Player2Index" {
			keyAttribute = "Player2Id"
		}
		output, err := client.dynamodb.Query(ctx, &dynamodb.QueryInput{
			TableName:              client.cfg.MatchesTableName,
			IndexName:              aws.String(indexName),
			KeyConditionExpression: aws.String(keyAttribute + " = :userId"),
			FilterExpression:       aws.String("#status IN (:waiting, :starting, :active)"),
			ExpressionAttributeNames: map[string]string{
				"#status": "Status",
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":userId":   &types.AttributeValueMemberS{Value: userId},
				":waiting":  &types.AttributeValueMemberS{Value: string(entities.MatchWaiting)},
				":starting": &types.AttributeValueMemberS{Value: string(entities.MatchStarting)},
				":active":   &types.AttributeValueMemberS{Value: string(entities.MatchActive)},
			},
		})
		if err != nil {
			return entities.Match{}, err
		}
		if len(output.Items) == 0 {
			continue
		}
		var matches []entities.Match
		if err := attributevalue.UnmarshalListOfMaps(output.Items, &matches); err != nil {
			return entities.Match{}, err
		}
		return matches[0], nil
	}
	return entities.Match{}, ErrMatchNotFound
}

// FetchResolvedMatches method    lists terminal matches the user took
// part in, most recent first, up to limit.
func (client *Client) FetchResolvedMatches(
	ctx context.Context,
	userId string,
	limit int32,
) (
	[]entities.Match,
	error,
) {
	var matches []entities.Match
	for _, indexName := range []string{"Player1Index", "Player2Index"} {
		keyAttribute := "Player1Id"
		if indexName == "Player2Index" {
			keyAttribute = "Player2Id"
		}
		output, err := client.dynamodb.Query(ctx, &dynamodb.QueryInput{
			TableName:              client.cfg.MatchesTableName,
			IndexName:              aws.String(indexName),
			KeyConditionExpression: aws.String(keyAttribute + " = :userId"),
			FilterExpression:       aws.String("#status IN (:completed, :aborted)"),
			ExpressionAttributeNames: map[string]string{
				"#status": "Status",
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":userId":    &types.AttributeValueMemberS{Value: userId},
				":completed": &types.AttributeValueMemberS{Value: string(entities.MatchCompleted)},
				":aborted":   &types.AttributeValueMemberS{Value: string(entities.MatchAborted)},
			},
			ScanIndexForward: aws.Bool(false),
			Limit:            aws.Int32(limit),
		})
		if err != nil {
			return nil, err
		}
		var indexMatches []entities.Match
		if err := attributevalue.UnmarshalListOfMaps(output.Items, &indexMatches); err != nil {
			return nil, err
		}
		matches = append(matches, indexMatches...)
	}
	if int32(len(matches)) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// CreateMatchWithPlayers method    inserts the match and both player
// rows in one transaction so a half-created match can never exist.
func (client *Client) CreateMatchWithPlayers(
	ctx context.Context,
	match entities.Match,
	players []entities.MatchPlayer,
) error {
	matchAv, err := attributevalue.MarshalMap(match)
	if err != nil {
		return fmt.Errorf("failed to marshal match: %w", err)
	}
	transactItems := []types.TransactWriteItem{
		{
			Put: &types.Put{
				TableName: client.cfg.MatchesTableName,
				Item:      matchAv,
			},
		},
	}
	for _, player := range players {
		playerAv, err := attributevalue.MarshalMap(player)
		if err != nil {
			return fmt.Errorf("failed to marshal match player: %w", err)
		}
		transactItems = append(transactItems, types.TransactWriteItem{
			Put: &types.Put{
				TableName: client.cfg.MatchPlayersTableName,
				Item:      playerAv,
			},
		})
	}
	_, err = client.dynamodb.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: transactItems,
	})
	if err != nil {
		return fmt.Errorf("failed to create match: %w", err)
	}
	return nil
}

func (client *Client) UpdateMatchStarted(
	ctx context.Context,
	matchId string,
	startedAt time.Time,
) error {
	_, err := client.dynamodb.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: client.cfg.MatchesTableName,
		Key: map[string]types.AttributeValue{
			"MatchId": &types.AttributeValueMemberS{Value: matchId},
		},
		UpdateExpression: aws.String("SET #status = :status, StartedAt = :startedAt"),
		ExpressionAttributeNames: map[string]string{
			"#status": "Status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status": &types.AttributeValueMemberS{
				Value: string(entities.MatchActive),
			},
			":startedAt": &types.AttributeValueMemberS{
				Value: startedAt.Format(time.RFC3339),
			},
		},
	})
	if err != nil {
		return err
	}
	return nil
}

func (client *Client) UpdateMatchResolved(
	ctx context.Context,
	matchId string,
	status entities.MatchStatus,
	endedAt time.Time,
	winnerId *string,
) error {
	updateExpression := []string{"#status = :status", "EndedAt = :endedAt"}
	expressionAttributeValues := map[string]types.AttributeValue{
		":status": &types.AttributeValueMemberS{
			Value: string(status),
		},
		":endedAt": &types.AttributeValueMemberS{
			Value: endedAt.Format(time.RFC3339),
		},
	}
	if winnerId != nil {
		updateExpression = append(updateExpression, "WinnerId = :winnerId")
		expressionAttributeValues[":winnerId"] = &types.AttributeValueMemberS{
			Value: *winnerId,
		}
	}

	_, err := client.dynamodb.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: client.cfg.MatchesTableName,
		Key: map[string]types.AttributeValue{
			"MatchId": &types.AttributeValueMemberS{Value: matchId},
		},
		UpdateExpression: aws.String("SET " + strings.Join(updateExpression, ", ")),
		ExpressionAttributeNames: map[string]string{
			"#status": "Status",
		},
		ExpressionAttributeValues: expressionAttributeValues,
	})
	if err != nil {
		return err
	}
	return nil
}

package storage

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/codeduel-vn/codeduel/internal/domains/entities"
)

var ErrUserRatingNotFound = fmt.Errorf("user rating not found")

func (client *Client) GetUserRating(
	ctx context.Context,
	userId string,
) (
	entities.UserRating,
	error,
) {
	output, err := client.dynamodb.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: client.cfg.UserRatingsTableName,
		Key: map[string]types.AttributeValue{
			"UserId": &types.AttributeValueMemberS{
				Value: userId,
			},
		},
	})
	if err != nil {
		return entities.UserRating{}, err
	}
	if output.Item == nil {
		return entities.UserRating{}, ErrUserRatingNotFound
	}
	var userRating entities.UserRating
	if err := attributevalue.UnmarshalMap(output.Item, &userRating); err != nil {
		return entities.UserRating{}, err
	}
	return userRating, nil
}

// ResolvePlayerRating method    writes the participant's resolved
// outcome and the rating/streak aggregate in one transaction, so a
// crash can never leave one written without the other.
func (client *Client) ResolvePlayerRating(
	ctx context.Context,
	player entities.MatchPlayer,
	rating entities.UserRating,
) error {
	if player.RatingAfter == nil {
		return fmt.Errorf("rating after must be set before resolving")
	}
	_, err := client.dynamodb.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Update: &types.Update{
					TableName: client.cfg.UserRatingsTableName,
					Key: map[string]types.AttributeValue{
						"UserId": &types.AttributeValueMemberS{Value: rating.UserId},
					},
					UpdateExpression: aws.String("SET Rating = :rating, Streak = :streak"),
					ExpressionAttributeValues: map[string]types.AttributeValue{
						":rating": &types.AttributeValueMemberN{
							Value: strconv.FormatFloat(rating.Rating, 'f', -1, 64),
						},
						":streak": &types.AttributeValueMemberN{
							Value: strconv.Itoa(rating.Streak),
						},
					},
				},
			},
			{
				Update: &types.Update{
					TableName: client.cfg.MatchPlayersTableName,
					Key: map[string]types.AttributeValue{
						"MatchId": &types.AttributeValueMemberS{Value: player.MatchId},
						"UserId":  &types.AttributeValueMemberS{Value: player.UserId},
					},
					UpdateExpression: aws.String("SET #result = :result, RatingAfter = :ratingAfter"),
					ExpressionAttributeNames: map[string]string{
						"#result": "Result",
					},
					ExpressionAttributeValues: map[string]types.AttributeValue{
						":result": &types.AttributeValueMemberS{
							Value: string(player.Result),
						},
						":ratingAfter": &types.AttributeValueMemberN{
							Value: strconv.FormatFloat(*player.RatingAfter, 'f', -1, 64),
						},
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to resolve player rating: %w", err)
	}
	return nil
}

func (client *Client) FetchUserRatings(
	ctx context.Context,
	lastKey map[string]types.AttributeValue,
	limit int32,
) (
	[]entities.UserRating,
	map[string]types.AttributeValue,
	error,
) {
	input := &dynamodb.ScanInput{
		TableName: client.cfg.UserRatingsTableName,
		Limit:     aws.Int32(limit),
	}
	if lastKey != nil {
		input.ExclusiveStartKey = lastKey
	}
	output, err := client.dynamodb.Scan(ctx, input)
	if err != nil {
		return nil, nil, err
	}
	var userRatings []entities.UserRating
	if err := attributevalue.UnmarshalListOfMaps(output.Items, &userRatings); err != nil {
		return nil, nil, err
	}
	return userRatings, output.LastEvaluatedKey, nil
}

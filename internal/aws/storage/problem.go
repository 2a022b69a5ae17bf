package storage

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/codeduel-vn/codeduel/internal/domains/entities"
)

var ErrProblemNotFound = fmt.Errorf("problem not found")

func (client *Client) GetProblem(
	ctx context.Context,
	bucket int,
	problemId string,
) (
	entities.Problem,
	error,
) {
	output, err := client.dynamodb.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: client.cfg.ProblemsTableName,
		Key: map[string]types.AttributeValue{
			"Bucket": &types.AttributeValueMemberN{
				Value: strconv.Itoa(bucket),
			},
			"ProblemId": &types.AttributeValueMemberS{
				Value: problemId,
			},
		},
	})
	if err != nil {
		return entities.Problem{}, err
	}
	if output.Item == nil {
		return entities.Problem{}, ErrProblemNotFound
	}
	var problem entities.Problem
	if err := attributevalue.UnmarshalMap(output.Item, &problem); err != nil {
		return entities.Problem{}, err
	}
	return problem, nil
}

// PickProblem method    selects a random problem from the given rating
// bucket. Problems without a statement are never eligible.
func (client *Client) PickProblem(
	ctx context.Context,
	bucket int,
) (
	entities.Problem,
	error,
) {
	output, err := client.dynamodb.Query(ctx, &dynamodb.QueryInput{
		TableName:              client.cfg.ProblemsTableName,
		KeyConditionExpression: aws.String("#bucket = :bucket"),
		FilterExpression:       aws.String("attribute_exists(#statement) AND size(#statement) > :zero"),
		ExpressionAttributeNames: map[string]string{
			"#bucket":    "Bucket",
			"#statement": "Statement",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":bucket": &types.AttributeValueMemberN{Value: strconv.Itoa(bucket)},
			":zero":   &types.AttributeValueMemberN{Value: "0"},
		},
	})
	if err != nil {
		return entities.Problem{}, err
	}
	if len(output.Items) == 0 {
		return entities.Problem{}, ErrProblemNotFound
	}
	var problems []entities.Problem
	if err := attributevalue.UnmarshalListOfMaps(output.Items, &problems); err != nil {
		return entities.Problem{}, err
	}
	return problems[rand.Intn(len(problems))], nil
}

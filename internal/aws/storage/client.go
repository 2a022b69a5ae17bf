package storage

import (
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

type Config struct {
	MatchesTableName      *string
	MatchPlayersTableName *string
	UserRatingsTableName  *string
	ProblemsTableName     *string
}

func ConfigFromEnv() Config {
	return Config{
		MatchesTableName:      aws.String(os.Getenv("MATCHES_TABLE_NAME")),
		MatchPlayersTableName: aws.String(os.Getenv("MATCH_PLAYERS_TABLE_NAME")),
		UserRatingsTableName:  aws.String(os.Getenv("USER_RATINGS_TABLE_NAME")),
		ProblemsTableName:     aws.String(os.Getenv("PROBLEMS_TABLE_NAME")),
	}
}

type Client struct {
	dynamodb *dynamodb.Client
	cfg      Config
}

func NewClient(dynamoClient *dynamodb.Client, cfg Config) *Client {
	return &Client{
		dynamodb: dynamoClient,
		cfg:      cfg,
	}
}

package server

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port string

	MatchDuration        time.Duration
	StartDeadline        time.Duration
	RatingTolerance      float64
	RatingDelta          float64
	DefaultRating        float64
	DisconnectGrace      time.Duration
	StaleCleanupInterval time.Duration
	LockDisposalDelay    time.Duration

	AwsRegion         string
	CognitoUserPoolId string

	JudgeFunctionName string
	JudgeTimeout      time.Duration
}

func NewConfig() Config {
	var config Config

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs/server")
	viper.AddConfigPath(".")
	err := viper.ReadInConfig()
	if err != nil {
		panic(fmt.Errorf("fatal error config file: %s", err))
	}

	// List of env files to load
	envFiles := []string{
		"./configs/aws/base.env",
		"./configs/aws/cognito.env",
		"./configs/aws/lambda.env",
	}
	err = loadEnvFiles(envFiles)
	if err != nil {
		panic(fmt.Errorf("fatal error config file: %s", err))
	}

	config.Port = viper.GetString("Server.Port")
	config.MatchDuration = mustParseDuration("Server.MatchDuration")
	config.StartDeadline = mustParseDuration("Server.StartDeadline")
	config.RatingTolerance = viper.GetFloat64("Matchmaking.RatingTolerance")
	config.RatingDelta = viper.GetFloat64("Matchmaking.RatingDelta")
	config.DefaultRating = viper.GetFloat64("Matchmaking.DefaultRating")
	config.DisconnectGrace = mustParseDuration("Presence.DisconnectGrace")
	config.StaleCleanupInterval = mustParseDuration("Matchmaking.StaleCleanupInterval")
	config.LockDisposalDelay = mustParseDuration("Server.LockDisposalDelay")
	config.AwsRegion = viper.GetString("AWS_REGION")
	config.CognitoUserPoolId = viper.GetString("COGNITO_USER_POOL_ID")
	config.JudgeFunctionName = viper.GetString("JUDGE_FUNCTION_NAME")
	config.JudgeTimeout = mustParseDuration("Judge.Timeout")

	return config
}

// DefaultConfig function    returns the stock tunables. The websocket
// and AWS settings still come from files.
func DefaultConfig() Config {
	return Config{
		MatchDuration:        30 * time.Minute,
		StartDeadline:        30 * time.Second,
		RatingTolerance:      100,
		RatingDelta:          25,
		DefaultRating:        1000,
		DisconnectGrace:      10 * time.Second,
		StaleCleanupInterval: 30 * time.Second,
		LockDisposalDelay:    5 * time.Second,
		JudgeTimeout:         60 * time.Second,
	}
}

func mustParseDuration(key string) time.Duration {
	d, err := time.ParseDuration(viper.GetString(key))
	if err != nil {
		panic(fmt.Errorf("fatal error config file: %s", err))
	}
	return d
}

func loadEnvFiles(filenames []string) error {
	for _, file := range filenames {
		viper.SetConfigFile(file)
		viper.SetConfigType("env")
		viper.AutomaticEnv() // Allow override by OS environment variables

		err := viper.MergeInConfig()
		if err != nil {
			return err
		}
	}
	return nil
}

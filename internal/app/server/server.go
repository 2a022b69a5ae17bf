package server

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/codeduel-vn/codeduel/internal/app/judge"
	awsAuth "github.com/codeduel-vn/codeduel/internal/aws/auth"
	"github.com/codeduel-vn/codeduel/internal/aws/storage"
	"github.com/codeduel-vn/codeduel/pkg/logging"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type server struct {
	address  string
	upgrader websocket.Upgrader

	config            Config
	cognitoPublicKeys map[string]*rsa.PublicKey

	storageClient *storage.Client
	hub           *hub
	presence      *Presence
	engine        *Engine
	queue         *Queue
	gate          *Gate
}

type payload struct {
	Type string            `json:"type"`
	Data map[string]string `json:"data"`
}

func NewServer() *server {
	cfg := NewConfig()
	tokenSigningKeyUrl := fmt.Sprintf(
		"https://cognito-idp.%s.amazonaws.com/%s/.well-known/jwks.json",
		cfg.AwsRegion,
		cfg.CognitoUserPoolId,
	)
	cognitoPublicKeys, err := awsAuth.LoadCognitoPublicKeys(tokenSigningKeyUrl)
	if err != nil {
		panic(err)
	}
	awsCfg, _ := config.LoadDefaultConfig(context.TODO())

	storageClient := storage.NewClient(
		dynamodb.NewFromConfig(awsCfg),
		storage.ConfigFromEnv(),
	)
	judgeClient := judge.NewClient(
		lambda.NewFromConfig(awsCfg),
		judge.Config{
			FunctionName: cfg.JudgeFunctionName,
			Timeout:      cfg.JudgeTimeout,
		},
	)

	hub := newHub()
	presence := NewPresence(hub, cfg.DisconnectGrace)
	engine := NewEngine(storageClient, hub, presence, cfg)
	presence.Bind(engine)

	srv := &server{
		address: "0.0.0.0:" + cfg.Port,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins
			},
		},
		config:            cfg,
		cognitoPublicKeys: cognitoPublicKeys,
		storageClient:     storageClient,
		hub:               hub,
		presence:          presence,
		engine:            engine,
		queue:             NewQueue(storageClient, presence, engine, hub, cfg),
		gate:              NewGate(judgeClient),
	}
	return srv
}

// Start method    starts the orchestration server
func (s *server) Start() error {
	go s.queue.RunCleanup(context.Background())

	http.HandleFunc("/duel", func(w http.ResponseWriter, r *http.Request) {
		userId, err := s.auth(r)
		if err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(err.Error()))
			return
		}

		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			logging.Error(
				"failed to upgrade connection",
				zap.String("error", err.Error()),
			)
			return
		}
		defer conn.Close()

		s.hub.add(userId, conn)
		s.presence.HandleConnect(userId)
		logging.Info("player connected",
			zap.String("player_id", userId),
			zap.String("remote_address", conn.RemoteAddr().String()),
		)

		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				s.hub.remove(userId, conn)
				s.presence.HandleDisconnect(userId)
				logging.Info(
					"connection closed",
					zap.String("player_id", userId),
					zap.Error(err),
				)
				break
			}

			payload := payload{}
			if err := json.Unmarshal(message, &payload); err != nil {
				logging.Info("invalid message", zap.String("player_id", userId))
				continue
			}
			s.handleWebSocketMessage(userId, conn, payload)
		}
	})
	logging.Info("websocket server started", zap.String("port", s.config.Port))
	return http.ListenAndServe(s.address, nil)
}

// auth method    authenticates and extracts the participant id before
// any event handler runs.
func (s *server) auth(r *http.Request) (string, error) {
	token := r.Header.Get("Authorization")
	if token == "" {
		return "", fmt.Errorf("no authorization")
	}
	issuer := fmt.Sprintf(
		"https://cognito-idp.%s.amazonaws.com/%s",
		s.config.AwsRegion,
		s.config.CognitoUserPoolId,
	)
	validToken, err := awsAuth.ValidateJwt(token, s.cognitoPublicKeys, issuer)
	if err != nil || !validToken.Valid {
		return "", fmt.Errorf("invalid token: %w", err)
	}
	mapClaims, ok := validToken.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid map claims")
	}
	v, ok := mapClaims["sub"]
	if !ok {
		return "", fmt.Errorf("user id not found")
	}
	userId, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("invalid user id")
	}
	return userId, nil
}

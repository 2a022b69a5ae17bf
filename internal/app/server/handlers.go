package server

import (
	"context"
	"errors"

	"github.com/codeduel-vn/codeduel/pkg/logging"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handler for when user sends a message
func (s *server) handleWebSocketMessage(userId string, conn *websocket.Conn, payload payload) {
	switch payload.Type {
	case "queue":
		s.handleQueueAction(userId, conn, payload.Data["action"])
	case "match":
		s.handleMatchAction(userId, conn, payload.Data["action"], payload.Data["matchId"])
	case "submission":
		// Judging can take a while; keep the read loop responsive so
		// a disconnect is still noticed mid-judge.
		go s.handleSubmission(userId, conn, payload.Data["code"], payload.Data["language"])
	default:
		logging.Info("invalid payload type:", zap.String("type", payload.Type))
	}
}

func (s *server) handleQueueAction(userId string, conn *websocket.Conn, action string) {
	ctx := context.Background()
	switch action {
	case "join":
		result, err := s.queue.Join(ctx, userId)
		if err != nil {
			logging.Error("queue join failed", zap.String("player_id", userId), zap.Error(err))
			if errors.Is(err, ErrNoProblemAvailable) {
				s.hub.sendToConn(conn, errorResponse{Type: "error", Error: ErrStatusNoProblem})
			} else {
				s.hub.sendToConn(conn, errorResponse{Type: "error", Error: ErrStatusInvalidAction})
			}
			return
		}
		s.hub.sendToConn(conn, Event{Type: EventQueueStatus, Data: map[string]string{
			"status":  result.Status,
			"matchId": result.MatchId,
		}})
	case "leave":
		s.queue.Leave(userId)
		s.hub.sendToConn(conn, Event{Type: EventQueueStatus, Data: map[string]string{
			"status": "left",
		}})
	default:
		logging.Info("invalid queue action:", zap.String("action", action))
	}
}

func (s *server) handleMatchAction(userId string, conn *websocket.Conn, action, matchId string) {
	ctx := context.Background()
	var err error
	switch action {
	case "start":
		_, err = s.engine.Start(ctx, matchId, userId)
	case "forfeit":
		err = s.engine.Forfeit(ctx, matchId, userId, "forfeit")
	case "cancel":
		err = s.abortAsPlayer(ctx, matchId, userId)
	default:
		logging.Info("invalid match action:", zap.String("action", action))
		return
	}
	if err != nil {
		logging.Info("match action rejected",
			zap.String("match_id", matchId),
			zap.String("player_id", userId),
			zap.String("action", action),
			zap.Error(err),
		)
		switch {
		case errors.Is(err, ErrNotAPlayer):
			s.hub.sendToConn(conn, errorResponse{Type: "error", Error: ErrStatusNotAPlayer})
		default:
			s.hub.sendToConn(conn, errorResponse{Type: "error", Error: ErrStatusInvalidAction})
		}
	}
}

// abortAsPlayer validates the requester before cancelling: abort
// itself has no requester, so the check lives at the transport edge.
func (s *server) abortAsPlayer(ctx context.Context, matchId, userId string) error {
	match, err := s.storageClient.GetMatch(ctx, matchId)
	if err != nil {
		return err
	}
	if !match.HasPlayer(userId) {
		return ErrNotAPlayer
	}
	return s.engine.Abort(ctx, matchId, "cancelled")
}

func (s *server) handleSubmission(userId string, conn *websocket.Conn, code, language string) {
	ctx := context.Background()
	matchId, _, ok := s.presence.UserMatch(userId)
	if !ok {
		s.hub.sendToConn(conn, errorResponse{Type: "error", Error: ErrStatusNotInMatch})
		return
	}
	match, err := s.storageClient.GetMatch(ctx, matchId)
	if err != nil {
		logging.Error("failed to load match", zap.String("match_id", matchId), zap.Error(err))
		s.hub.sendToConn(conn, errorResponse{Type: "error", Error: ErrStatusInvalidAction})
		return
	}
	problem, err := s.storageClient.GetProblem(ctx, match.ProblemBucket, match.ProblemId)
	if err != nil {
		logging.Error("failed to load problem", zap.String("match_id", matchId), zap.Error(err))
		s.hub.sendToConn(conn, errorResponse{Type: "error", Error: ErrStatusInvalidAction})
		return
	}

	verdict, ok := s.gate.Submit(ctx, userId, problem.Statement, code, language)
	if !ok {
		s.hub.sendToConn(conn, errorResponse{Type: "error", Error: ErrStatusSubmissionInFlight})
		return
	}

	if _, err := s.engine.ProcessVerdict(ctx, matchId, userId, verdict); err != nil {
		logging.Error("failed to process verdict",
			zap.String("match_id", matchId),
			zap.String("player_id", userId),
			zap.Error(err),
		)
	}
}

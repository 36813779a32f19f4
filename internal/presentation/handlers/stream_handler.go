package handlers

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Chrissou78/omniswap-sub002/internal/domain/entities"
	"github.com/Chrissou78/omniswap-sub002/internal/domain/services"
	"github.com/Chrissou78/omniswap-sub002/internal/logger"
)

const (
	streamWriteWait = 10 * time.Second
	streamReadLimit = 4096
)

// Stream message types sent by the client
const (
	MsgSetAmount   = "setAmount"
	MsgSetTokenIn  = "setTokenIn"
	MsgSetTokenOut = "setTokenOut"
	MsgSwapSides   = "swapSides"
	MsgSelectRoute = "selectRoute"
)

var errUnknownMessage = errors.New("unknown message type")

// StreamMessage is one edit sent by the client
type StreamMessage struct {
	Type    string             `json:"type"`
	ChainID int64              `json:"chainId,omitempty"`
	Address string             `json:"address,omitempty"`
	Amount  string             `json:"amount,omitempty"`
	Route   entities.RouteType `json:"route,omitempty"`
}

// StreamEvent is pushed to the client: a published quote or an error
type StreamEvent struct {
	Type  string                  `json:"type"`
	Quote *entities.QuoteSnapshot `json:"quote,omitempty"`
	Error *ErrorResponse          `json:"error,omitempty"`
}

// StreamHandler runs one quote orchestrator per websocket session
type StreamHandler struct {
	engine   services.QuoteEngine
	tokens   TokenLookup
	cfg      services.OrchestratorConfig
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func NewStreamHandler(engine services.QuoteEngine, tokens TokenLookup, cfg services.OrchestratorConfig, origins OriginPolicy, log *zap.Logger) *StreamHandler {
	return &StreamHandler{
		engine: engine,
		tokens: tokens,
		cfg:    cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.Allowed,
		},
		logger: logger.OrNop(log).Named("stream"),
	}
}

// Stream handles GET /api/v1/quote/stream
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	orch := services.NewOrchestrator(h.engine, h.cfg, h.logger)
	go orch.Run(ctx)

	var writeMu sync.Mutex
	send := func(ev StreamEvent) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
		return conn.WriteJSON(ev)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case snap := <-orch.Updates():
				if err := send(StreamEvent{Type: "quote", Quote: &snap}); err != nil {
					h.logger.Debug("stream write failed", zap.Error(err))
					cancel()
					conn.Close()
					return
				}
			}
		}
	}()

	conn.SetReadLimit(streamReadLimit)
	for {
		var msg StreamMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("stream closed", zap.Error(err))
			}
			return
		}
		if err := h.apply(ctx, orch, msg); err != nil {
			if send(errorEvent(err)) != nil {
				return
			}
		}
	}
}

func (h *StreamHandler) apply(ctx context.Context, orch *services.Orchestrator, msg StreamMessage) error {
	switch msg.Type {
	case MsgSetAmount:
		amount := decimal.Zero
		if msg.Amount != "" {
			var err error
			if amount, err = decimal.NewFromString(msg.Amount); err != nil {
				return services.ErrInvalidAmount
			}
		}
		orch.SetAmount(amount)
	case MsgSetTokenIn, MsgSetTokenOut:
		token, err := h.tokens.LookupToken(ctx, msg.ChainID, msg.Address)
		if err != nil {
			return err
		}
		if msg.Type == MsgSetTokenIn {
			orch.SetTokenIn(token)
		} else {
			orch.SetTokenOut(token)
		}
	case MsgSwapSides:
		orch.SwapSides()
	case MsgSelectRoute:
		if !msg.Route.Valid() {
			return errUnknownMessage
		}
		orch.SelectRoute(msg.Route)
	default:
		return errUnknownMessage
	}
	return nil
}

func errorEvent(err error) StreamEvent {
	code := "invalid_message"
	switch {
	case errors.Is(err, services.ErrTokenNotFound):
		code = "token_not_found"
	case errors.Is(err, services.ErrInvalidAmount):
		code = "invalid_amount"
	}
	return StreamEvent{Type: "error", Error: &ErrorResponse{Error: code, Message: err.Error()}}
}

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/inaumanmajeed/epicrealm-support/internal/proto"
)

// inboundFrame mirrors proto.Outbound with the payload left undecoded.
type inboundFrame struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	if err := run(&logger); err != nil {
		logger.Error().Err(err).Msg("ws_smoke failed")
		os.Exit(1)
	}
}

func run(logger *zerolog.Logger) error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	token := flag.String("token", "", "access token (empty connects anonymously)")
	subject := flag.String("subject", "Smoke test", "chat subject")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var opts *websocket.DialOptions
	if *token != "" {
		opts = &websocket.DialOptions{HTTPHeader: http.Header{"Authorization": {"Bearer " + *token}}}
	}
	conn, _, err := websocket.Dial(ctx, *addr, opts)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	connected, err := await(ctx, conn, logger, "connected")
	if err != nil {
		return err
	}
	var hello proto.EventConnected
	if err := json.Unmarshal(connected.Data, &hello); err != nil {
		return fmt.Errorf("decode connected: %w", err)
	}
	logger.Info().Str("user", hello.User.UserName).Bool("staff", hello.User.IsAdmin).Msg("connected")

	if err := send(ctx, conn, proto.InboundTypeCreateChat, proto.CreateChatData{Subject: *subject}); err != nil {
		return err
	}
	created, err := await(ctx, conn, logger, "chat_created")
	if err != nil {
		return err
	}
	var chat proto.EventChatCreated
	if err := json.Unmarshal(created.Data, &chat); err != nil {
		return fmt.Errorf("decode chat_created: %w", err)
	}
	logger.Info().Str("chat_id", chat.Chat.ID).Bool("resumed", chat.Resumed).Msg("chat ready")

	if err := send(ctx, conn, proto.InboundTypeSendMessage, proto.SendMessageData{
		ChatID:  chat.Chat.ID,
		Content: *text,
	}); err != nil {
		return err
	}
	if _, err := await(ctx, conn, logger, "new_message"); err != nil {
		return err
	}

	logger.Info().Msg("smoke test passed")
	return nil
}

func send(ctx context.Context, conn *websocket.Conn, typ string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", typ, err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload}); err != nil {
		return fmt.Errorf("send %s: %w", typ, err)
	}
	return nil
}

// await reads frames until the named event arrives. Error frames abort.
func await(ctx context.Context, conn *websocket.Conn, logger *zerolog.Logger, event string) (*inboundFrame, error) {
	for {
		var frame inboundFrame
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			return nil, fmt.Errorf("waiting for %s: %w", event, err)
		}
		if frame.Type == proto.OutboundTypeError && frame.Error != nil {
			return nil, fmt.Errorf("server error %s: %s", frame.Error.Code, frame.Error.Msg)
		}
		if len(frame.Data) > 0 {
			logger.Debug().Str("event", frame.Event).RawJSON("data", frame.Data).Msg("recv")
		}
		if frame.Event == event {
			return &frame, nil
		}
	}
}

package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/harrison/tetrad/internal/logger"
)

// Server runs the JSON-RPC loop: one request read, dispatched, and answered
// before the next is read. Reviewer parallelism lives inside tools/call.
type Server struct {
	transport   *Transport
	handler     *Handler
	log         *logger.ConsoleLogger
	info        ServerInfo
	initialized bool
}

// NewServer binds a handler to a transport.
func NewServer(transport *Transport, handler *Handler, info ServerInfo, log *logger.ConsoleLogger) *Server {
	return &Server{
		transport: transport,
		handler:   handler,
		log:       log,
		info:      info,
	}
}

// Serve reads and dispatches messages until EOF or context cancellation.
// A single malformed or failing request never stops the loop.
func (s *Server) Serve(ctx context.Context) error {
	s.log.Info("%s MCP server listening on stdio", s.info.Name)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := s.transport.ReadLine()
		if err != nil {
			if err == io.EOF {
				s.log.Info("stdin closed, shutting down")
				return nil
			}
			return fmt.Errorf("read message: %w", err)
		}

		var request Request
		if err := json.Unmarshal([]byte(line), &request); err != nil {
			s.log.Error("unparseable message: %v", err)
			s.writeResponse(NewErrorResponse(nil, CodeParseError, "Parse error"))
			continue
		}

		response, reply := s.dispatch(ctx, &request)
		if reply {
			s.writeResponse(response)
		}
	}
}

// dispatch routes one request. reply is false for notifications, which
// never get a response regardless of outcome.
func (s *Server) dispatch(ctx context.Context, request *Request) (Response, bool) {
	reply := !request.IsNotification()

	if request.JSONRPC != "2.0" {
		return NewErrorResponse(request.ID, CodeInvalidRequest, "Invalid Request"), reply
	}

	switch request.Method {
	case "initialize":
		s.initialized = true
		s.log.Debug("initialize handshake complete")
		return NewResponse(request.ID, InitializeResult{
			ProtocolVersion: ProtocolVersion,
			ServerInfo:      s.info,
		}), reply

	case "notifications/initialized", "initialized":
		return Response{}, false

	case "shutdown":
		s.initialized = false
		s.log.Debug("shutdown requested")
		return NewResponse(request.ID, nil), reply

	case "tools/list":
		return NewResponse(request.ID, ListToolsResult{Tools: s.handler.Tools()}), reply

	case "tools/call":
		var params CallParams
		if err := json.Unmarshal(request.Params, &params); err != nil {
			return NewErrorResponse(request.ID, CodeInvalidParams, fmt.Sprintf("Invalid params: %v", err)), reply
		}
		if params.Name == "" {
			return NewErrorResponse(request.ID, CodeInvalidParams, "Invalid params: missing tool name"), reply
		}
		result := s.handler.Call(ctx, params.Name, params.Arguments)
		return NewResponse(request.ID, result), reply

	default:
		return NewErrorResponse(request.ID, CodeMethodNotFound,
			fmt.Sprintf("Method not found: %s", request.Method)), reply
	}
}

func (s *Server) writeResponse(response Response) {
	if err := s.transport.WriteMessage(response); err != nil {
		s.log.Error("failed to write response: %v", err)
	}
}

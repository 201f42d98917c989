package toolserver

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"jichitai/datamanager"

	"go.uber.org/zap"
)

// 1行あたりの最大サイズ
const maxLineSize = 4 * 1024 * 1024

// Server は stdio 上の JSON-RPC ツールサーバーです。
type Server struct {
	engine     Engine
	logger     *zap.Logger
	exportPath string
	name       string
	version    string

	writeMu sync.Mutex
}

// Option は Server の設定を変更します。
type Option func(*Server)

// WithExportPath は export_csv で output_path が省略されたときの出力先を設定します。
func WithExportPath(path string) Option {
	return func(s *Server) { s.exportPath = path }
}

// WithVersion は initialize で返すサーバーのバージョンを設定します。
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// New は Server を作成します。
func New(engine Engine, logger *zap.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{engine: engine, logger: logger, name: "jichitai", version: "dev"}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Serve は r から1行ずつリクエストを読み、応答を w に書き込みます。
// r が EOF になるか ctx がキャンセルされると終了します。
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		resp := s.handleMessage(ctx, line)
		if resp == nil {
			continue
		}
		if err := s.write(w, resp); err != nil {
			return fmt.Errorf("応答の書き込みに失敗: %w", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("リクエストの読み込みに失敗: %w", err)
	}
	return ctx.Err()
}

func (s *Server) write(w io.Writer, resp *rpcResponse) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err = w.Write(append(data, '\n'))
	return err
}

// handleMessage は1件のリクエストを処理します。通知（id なし）の場合は nil を返します。
func (s *Server) handleMessage(ctx context.Context, line []byte) *rpcResponse {
	var req rpcRequest
	if err := json.Unmarshal(line, &req); err != nil {
		s.logger.Warn("invalid json-rpc message", zap.Error(err))
		return errorResponse(json.RawMessage("null"), codeParseError, "Parse error", err.Error())
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		return errorResponse(idOrNull(req.ID), codeInvalidRequest, "Invalid Request", nil)
	}
	notification := len(req.ID) == 0

	result, rpcErr := s.dispatch(ctx, req)
	if notification {
		return nil
	}
	if rpcErr != nil {
		return &rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: rpcErr}
	}
	return &rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: result}
}

func (s *Server) dispatch(ctx context.Context, req rpcRequest) (any, *rpcError) {
	s.logger.Debug("json-rpc request", zap.String("method", req.Method))

	switch req.Method {
	case "initialize":
		return map[string]any{
			"protocolVersion": protocolVersion,
			"capabilities":    map[string]any{"tools": map[string]any{}},
			"serverInfo":      map[string]any{"name": s.name, "version": s.version},
		}, nil
	case "notifications/initialized", "notifications/cancelled":
		return nil, nil
	case "ping":
		return map[string]any{}, nil
	case "tools/list":
		return map[string]any{"tools": Tools()}, nil
	case "tools/call":
		return s.callTool(ctx, req.Params)
	default:
		return nil, &rpcError{Code: codeMethodNotFound, Message: "Method not found", Data: req.Method}
	}
}

// ErrUnknownTool は登録されていないツール名が指定された場合のエラーです。
var ErrUnknownTool = errors.New("unknown tool")

// Call はツールを1回呼び出し、結果をインデント付き JSON で返します。
func (s *Server) Call(name string, args json.RawMessage) (string, error) {
	entry, ok := findTool(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	res, err := entry.call(s, args)
	if err != nil {
		return "", err
	}
	text, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return "", fmt.Errorf("%s: 結果の変換に失敗: %w", name, err)
	}
	return string(text), nil
}

// IsInvalidArgument は err が呼び出し側の引数の誤りかどうかを判定します。
func IsInvalidArgument(err error) bool {
	return errors.Is(err, errInvalidParams) || errors.Is(err, datamanager.ErrInvalidArgument)
}

func (s *Server) callTool(ctx context.Context, raw json.RawMessage) (any, *rpcError) {
	var p callParams
	if err := json.Unmarshal(raw, &p); err != nil || p.Name == "" {
		return nil, &rpcError{Code: codeInvalidParams, Message: "Invalid params", Data: "tools/call には name が必要です"}
	}
	if err := ctx.Err(); err != nil {
		return nil, &rpcError{Code: codeInternalError, Message: err.Error()}
	}

	text, err := s.Call(p.Name, p.Arguments)
	switch {
	case errors.Is(err, ErrUnknownTool):
		return nil, &rpcError{Code: codeInvalidParams, Message: "Unknown tool: " + p.Name}
	case IsInvalidArgument(err):
		s.logger.Debug("tool call rejected", zap.String("tool", p.Name), zap.Error(err))
		return nil, &rpcError{Code: codeInvalidParams, Message: err.Error()}
	case err != nil:
		// 出典の読み込み失敗などはツールのエラー結果として返す
		s.logger.Error("tool call failed", zap.String("tool", p.Name), zap.Error(err))
		return callResult{Content: []textContent{{Type: "text", Text: err.Error()}}, IsError: true}, nil
	}
	return callResult{Content: []textContent{{Type: "text", Text: text}}}, nil
}

func errorResponse(id json.RawMessage, code int, message string, data any) *rpcResponse {
	return &rpcResponse{JSONRPC: "2.0", ID: id, Error: &rpcError{Code: code, Message: message, Data: data}}
}

func idOrNull(id json.RawMessage) json.RawMessage {
	if len(id) == 0 {
		return json.RawMessage("null")
	}
	return id
}

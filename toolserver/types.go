// Package toolserver は問い合わせ操作を改行区切りの JSON-RPC 2.0（MCP 形式）で stdio に公開します。
package toolserver

import (
	"encoding/json"

	"jichitai/model"
)

// JSON-RPC のエラーコード
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternalError  = -32603
)

const protocolVersion = "2024-11-05"

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Tool は tools/list で返す操作の定義です。
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

type callParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

type textContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type callResult struct {
	Content []textContent `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

// Engine はツールから呼び出す問い合わせ操作です。
type Engine interface {
	GetBasicInfo(q model.Lookup) (*model.BasicInfo, error)
	ResolveName(name, prefecture string, fuzzy bool) (*model.CodeResolution, error)
	Search(c model.SearchCriteria) (*model.SearchResult, error)
	GetMyNumberRate(q model.Lookup) (*model.MyNumberResult, error)
	GetDXData(q model.Lookup, categories []string) (*model.DXResult, error)
	GetAgeGroupPopulation(q model.Lookup) (*model.AgeGroupResult, error)
	ExportCSV(path string) (*model.ExportResult, error)
}

// stringList は文字列1つ、または文字列の配列を受け付けます。
type stringList []string

func (s *stringList) UnmarshalJSON(b []byte) error {
	var one string
	if err := json.Unmarshal(b, &one); err == nil {
		if one == "" {
			*s = nil
		} else {
			*s = stringList{one}
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return err
	}
	*s = many
	return nil
}

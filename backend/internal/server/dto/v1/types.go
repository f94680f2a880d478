// Exported request and response types for the codesherpa v1 API.
package v1

import "github.com/fuxialexander/codesherpa/backend/internal/server/dto"

// EmptyReq is used for endpoints that take no request body.
type EmptyReq = dto.EmptyReq

// CodeExecutionRequest is the request body for POST /api/v1/run_code.
//
// Code holds the program, one entry per line, in order.
type CodeExecutionRequest struct {
	Code []string `json:"code"`
}

// CommandExecutionRequest is the request body for POST /api/v1/command.
type CommandExecutionRequest struct {
	Command string `json:"command"`
}

// ExecResp is the outcome of a code or command execution.
//
// Result is stdout followed by stderr, the single text an assistant plugin
// hands back to the model.
type ExecResp struct {
	ID         string `json:"id"`
	Result     string `json:"result"`
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
	ExitCode   int    `json:"exitCode"`
	DurationMs int64  `json:"durationMs"`
	Truncated  bool   `json:"truncated,omitempty"`
}

// FileInfo describes a file in the workspace.
type FileInfo struct {
	Name      string `json:"name"`
	Size      int64  `json:"size"`
	ModTimeMs int64  `json:"modTimeMs"`
	URL       string `json:"url"`
}

// UploadResp is the response for POST /api/v1/upload.
type UploadResp struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	URL  string `json:"url"`
}

// Config reports the server execution settings.
type Config struct {
	Interpreter    []string `json:"interpreter"`
	Shell          []string `json:"shell"`
	TimeoutMs      int64    `json:"timeoutMs"`
	MaxBodyBytes   int64    `json:"maxBodyBytes"`
	MaxOutputBytes int      `json:"maxOutputBytes"`
}

// RouteInfo describes one JSON endpoint in the GET /api/v1/routes index.
type RouteInfo struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Method   string `json:"method"`
	Path     string `json:"path"`
	Request  string `json:"request,omitempty"`
	Response string `json:"response"`
	IsArray  bool   `json:"isArray,omitempty"`
}

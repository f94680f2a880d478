// API route declarations used to document the v1 API and to register it.
package v1

import (
	"reflect"
	"strings"
)

// Route describes a single JSON API endpoint.
type Route struct {
	Name    string       // Operation name, e.g. "runCode"
	Method  string       // "GET" or "POST"
	Path    string       // "/api/v1/run_code"
	Req     reflect.Type // Request body type; nil for no body.
	Resp    reflect.Type // Response body type.
	IsArray bool         // response is T[] not T
}

// ReqName returns the request type name, or "" if Req is nil.
func (r *Route) ReqName() string {
	if r.Req == nil {
		return ""
	}
	return r.Req.Name()
}

// RespName returns the response type name.
func (r *Route) RespName() string {
	return r.Resp.Name()
}

// Pattern returns the http.ServeMux pattern, e.g. "POST /api/v1/command".
func (r *Route) Pattern() string {
	return r.Method + " " + r.Path
}

// CategoryName returns the index section derived from the first path segment
// after "/api/v1/", underscores turned to spaces and the first letter
// uppercased. For example "/api/v1/run_code" → "Run code".
func (r *Route) CategoryName() string {
	p := strings.TrimPrefix(r.Path, "/api/v1/")
	if i := strings.IndexByte(p, '/'); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		return "Other"
	}
	p = strings.ReplaceAll(p, "_", " ")
	return strings.ToUpper(p[:1]) + p[1:]
}

// Info returns the public description of r.
func (r *Route) Info() RouteInfo {
	return RouteInfo{
		Name:     r.Name,
		Category: r.CategoryName(),
		Method:   r.Method,
		Path:     r.Path,
		Request:  r.ReqName(),
		Response: r.RespName(),
		IsArray:  r.IsArray,
	}
}

// Routes is the authoritative list of JSON API endpoints. The server looks
// each of its handlers up by Name and serves the list at GET /api/v1/routes.
var Routes = []Route{
	{Name: "getConfig", Method: "GET", Path: "/api/v1/server/config", Resp: reflect.TypeFor[Config]()},
	{Name: "runCode", Method: "POST", Path: "/api/v1/run_code", Req: reflect.TypeFor[CodeExecutionRequest](), Resp: reflect.TypeFor[ExecResp]()},
	{Name: "runCommand", Method: "POST", Path: "/api/v1/command", Req: reflect.TypeFor[CommandExecutionRequest](), Resp: reflect.TypeFor[ExecResp]()},
	{Name: "listFiles", Method: "GET", Path: "/api/v1/files", Resp: reflect.TypeFor[FileInfo](), IsArray: true},
	{Name: "listRoutes", Method: "GET", Path: "/api/v1/routes", Resp: reflect.TypeFor[RouteInfo](), IsArray: true},
}

// RouteByName returns the route with the given name, or nil.
func RouteByName(name string) *Route {
	for i := range Routes {
		if Routes[i].Name == name {
			return &Routes[i]
		}
	}
	return nil
}

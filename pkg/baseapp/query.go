// Copyright 2025 Certen Protocol
//
// Query router: routes a slash-delimited path to the named module's
// query handler over an immutable, version-pinned Query context.

package baseapp

import "strings"

// QueryRouter dispatches Query calls by path to a registered module.
type QueryRouter struct {
	registry *ModuleRegistry
}

// NewQueryRouter returns a router backed by registry.
func NewQueryRouter(registry *ModuleRegistry) *QueryRouter {
	return &QueryRouter{registry: registry}
}

// Route splits path on '/' and routes to the first nonempty segment's
// module, passing the remaining segments back together as pathTail.
// Unknown paths yield PathNotFound.
func (r *QueryRouter) Route(ctx *Context, path string, data []byte) ([]byte, error) {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	var moduleName, tail string
	for i, seg := range segments {
		if seg == "" {
			continue
		}
		moduleName = seg
		tail = strings.Join(segments[i+1:], "/")
		break
	}
	if moduleName == "" {
		return nil, NewCoded(CodespaceCore, CodePathNotFound, "empty query path")
	}
	module, ok := r.registry.Module(moduleName)
	if !ok {
		return nil, NewCoded(CodespaceCore, CodePathNotFound, "unknown query path %q", path)
	}
	return module.Query(ctx, tail, data)
}

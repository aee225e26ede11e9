// Package dispatch contains Dispatcher implementations. The queue core never
// imports this package; it only sees the Dispatcher interface.
package dispatch

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/clawinfra/outclaw/internal/outbox"
)

// Route maps one operation type onto an HTTP method and path.
type Route struct {
	Method string `toml:"method"`
	Path   string `toml:"path"`
}

// routesFile is the on-disk shape of a routes TOML file:
//
//	[routes.update_profile]
//	method = "PUT"
//	path   = "/v1/profile"
type routesFile struct {
	Routes map[string]Route `toml:"routes"`
}

// LoadRoutes reads and validates a TOML route table.
func LoadRoutes(path string) (map[outbox.OpType]Route, error) {
	var file routesFile
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, fmt.Errorf("decode routes file: %w", err)
	}
	if len(file.Routes) == 0 {
		return nil, fmt.Errorf("routes file %s defines no routes", path)
	}

	routes := make(map[outbox.OpType]Route, len(file.Routes))
	for name, route := range file.Routes {
		typ := outbox.OpType(name)
		if !typ.Valid() {
			return nil, fmt.Errorf("route for unknown operation type %q", name)
		}
		if route.Path == "" || !strings.HasPrefix(route.Path, "/") {
			return nil, fmt.Errorf("route %q: path must start with /", name)
		}
		if route.Method == "" {
			route.Method = "POST"
		}
		routes[typ] = route
	}
	return routes, nil
}

package cache

import "fmt"

const (
	keyPrefix          = "metroplan:"
	KeyRoutePattern    = "route:*"
	KeyTopologyVersion = "topology:version"
)

func KeyRoute(routeID string) string {
	return fmt.Sprintf("route:%s", routeID)
}

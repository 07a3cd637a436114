// Package permissions defines the admin route permission catalogue.
package permissions

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"gorm.io/datatypes"
)

// Prefix is the route group every admin permission lives under.
const Prefix = "/api/v1/admin"

// Definition describes one permission-guarded admin route.
type Definition struct {
	Key    string
	Method string
	Path   string
	Label  string
	Module string
}

func def(method, path, label, module string) Definition {
	fullPath := Prefix + path
	return Definition{
		Key:    Key(method, fullPath),
		Method: method,
		Path:   fullPath,
		Label:  label,
		Module: module,
	}
}

var definitions = []Definition{
	def("GET", "/permissions", "List permissions", "admins"),
	def("GET", "/admins", "List admins", "admins"),
	def("POST", "/admins", "Create admin", "admins"),
	def("GET", "/admins/:id", "Get admin", "admins"),
	def("PUT", "/admins/:id", "Update admin", "admins"),
	def("DELETE", "/admins/:id", "Delete admin", "admins"),
	def("POST", "/admins/:id/disable", "Disable admin", "admins"),
	def("POST", "/admins/:id/enable", "Enable admin", "admins"),
	def("PUT", "/admins/:id/password", "Change admin password", "admins"),

	def("POST", "/card-keys", "Create card key", "card_keys"),
	def("POST", "/card-keys/batch", "Create card key batch", "card_keys"),
	def("GET", "/card-keys", "List card keys", "card_keys"),
	def("GET", "/card-keys/stats", "Card key statistics", "card_keys"),
	def("GET", "/card-keys/batches", "List card key batches", "card_keys"),
	def("GET", "/card-keys/:id", "Get card key", "card_keys"),
	def("POST", "/card-keys/:id/disable", "Disable card key", "card_keys"),
	def("DELETE", "/card-keys/:id", "Delete card key", "card_keys"),
	def("POST", "/card-keys/batches/:batch_id/disable", "Disable card key batch", "card_keys"),
	def("DELETE", "/card-keys/batches/:batch_id", "Delete card key batch", "card_keys"),

	def("GET", "/vip-levels", "List VIP levels", "vip"),
	def("PUT", "/vip-levels/:level", "Save VIP level", "vip"),
	def("DELETE", "/vip-levels/:level", "Delete VIP level", "vip"),

	def("GET", "/orders", "List orders", "orders"),
	def("PUT", "/orders/:id/status", "Update order status", "orders"),

	def("GET", "/users", "List users", "users"),
	def("POST", "/users/:id/vip", "Set user VIP", "users"),
	def("DELETE", "/users/:id/vip", "Cancel user VIP", "users"),
	def("POST", "/users/:id/points", "Adjust user points", "users"),

	def("GET", "/settings", "Get settings", "settings"),
	def("PUT", "/settings", "Update settings", "settings"),

	def("GET", "/commission-events", "List commission events", "commissions"),
	def("POST", "/commission-events/:id/retry", "Retry commission event", "commissions"),
}

var definitionMap = func() map[string]Definition {
	out := make(map[string]Definition, len(definitions))
	for _, d := range definitions {
		out[d.Key] = d
	}
	return out
}()

// Key builds the permission key for a route.
func Key(method, path string) string {
	return strings.ToUpper(strings.TrimSpace(method)) + " " + strings.TrimSpace(path)
}

// Definitions returns every permission in declaration order.
func Definitions() []Definition {
	out := make([]Definition, len(definitions))
	copy(out, definitions)
	return out
}

// DefinitionMap returns the permissions keyed by Key.
func DefinitionMap() map[string]Definition {
	out := make(map[string]Definition, len(definitionMap))
	for k, v := range definitionMap {
		out[k] = v
	}
	return out
}

// NormalizePermissions trims, dedupes and sorts permission keys.
func NormalizePermissions(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, raw := range keys {
		parts := strings.SplitN(strings.TrimSpace(raw), " ", 2)
		if len(parts) != 2 {
			continue
		}
		key := Key(parts[0], parts[1])
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

// ValidatePermissions rejects unknown keys.
func ValidatePermissions(keys []string) error {
	for _, key := range keys {
		if _, ok := definitionMap[key]; !ok {
			return fmt.Errorf("permissions: unknown permission %q", key)
		}
	}
	return nil
}

// MarshalPermissions encodes keys for the admins.permissions column.
func MarshalPermissions(keys []string) ([]byte, error) {
	if keys == nil {
		keys = []string{}
	}
	return json.Marshal(keys)
}

// ParsePermissions decodes the admins.permissions column. Invalid JSON
// yields no permissions.
func ParsePermissions(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return []string{}
	}
	var keys []string
	if errUnmarshal := json.Unmarshal(raw, &keys); errUnmarshal != nil {
		return []string{}
	}
	return NormalizePermissions(keys)
}

// HasPermission reports whether key is among granted.
func HasPermission(granted []string, key string) bool {
	for _, g := range granted {
		if g == key {
			return true
		}
	}
	return false
}

package audit

import "strings"

// ActionResource holds action and resource derived from an HTTP method and chi route pattern.
type ActionResource struct {
	Action   string
	Resource string
}

const adminPrefix = "/api/admin/"

// ParseRoute returns action and resource for an admin API request, e.g. ("POST", "/api/admin/projects").
// Action is a verb derived from the method: get, list, create, update, delete. Resource is the last static
// path segment in singular form (projects -> project). A few routes have dedicated actions:
// image upload, image reorder, password reset and presign.
func ParseRoute(method, pattern string) ActionResource {
	method = strings.ToUpper(method)
	pattern = strings.TrimSuffix(pattern, "/")
	if !strings.HasPrefix(pattern, adminPrefix) {
		return ActionResource{Action: "unknown", Resource: "unknown"}
	}
	segs := strings.Split(strings.TrimPrefix(pattern, adminPrefix), "/")
	resource, trailingParam := lastStatic(segs)
	if resource == "" {
		return ActionResource{Action: strings.ToLower(method), Resource: "unknown"}
	}
	resource = segmentToResource(resource)

	switch {
	case resource == "storage":
		return ActionResource{Action: "presign", Resource: resource}
	case resource == "project_image" && method == "PUT" && trailingParam:
		return ActionResource{Action: "upload", Resource: resource}
	case resource == "project_image" && method == "PUT":
		return ActionResource{Action: "reorder", Resource: resource}
	case resource == "admin_user" && method == "PATCH":
		return ActionResource{Action: "reset_password", Resource: resource}
	}
	return ActionResource{Action: methodToAction(method, trailingParam), Resource: resource}
}

// lastStatic returns the last non-parameter segment and whether a {param} follows it.
func lastStatic(segs []string) (string, bool) {
	for i := len(segs) - 1; i >= 0; i-- {
		s := segs[i]
		if s == "" || strings.HasPrefix(s, "{") {
			continue
		}
		return s, i < len(segs)-1
	}
	return "", false
}

func segmentToResource(seg string) string {
	switch seg {
	case "projects":
		return "project"
	case "images":
		return "project_image"
	case "users":
		return ResourceAdminUser
	case "presign-upload":
		return "storage"
	case "audit":
		return "audit_log"
	}
	return strings.ReplaceAll(strings.TrimSuffix(seg, "s"), "-", "_")
}

func methodToAction(method string, byID bool) string {
	switch method {
	case "GET":
		if byID {
			return "get"
		}
		return "list"
	case "POST":
		return "create"
	case "PUT", "PATCH":
		return "update"
	case "DELETE":
		return "delete"
	default:
		return strings.ToLower(method)
	}
}

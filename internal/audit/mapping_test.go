package audit

import "testing"

func TestParseRoute(t *testing.T) {
	tests := []struct {
		method, pattern string
		want            ActionResource
	}{
		{"GET", "/api/admin/projects", ActionResource{"list", "project"}},
		{"POST", "/api/admin/projects", ActionResource{"create", "project"}},
		{"PUT", "/api/admin/projects/{id}", ActionResource{"update", "project"}},
		{"DELETE", "/api/admin/projects/{id}", ActionResource{"delete", "project"}},
		{"POST", "/api/admin/projects/{id}/images", ActionResource{"create", "project_image"}},
		{"PUT", "/api/admin/projects/{id}/images", ActionResource{"reorder", "project_image"}},
		{"PUT", "/api/admin/projects/{id}/images/{imageId}", ActionResource{"upload", "project_image"}},
		{"GET", "/api/admin/projects/{id}/images/{imageId}", ActionResource{"get", "project_image"}},
		{"DELETE", "/api/admin/projects/{id}/images/{imageId}", ActionResource{"delete", "project_image"}},
		{"POST", "/api/admin/users", ActionResource{"create", "admin_user"}},
		{"PATCH", "/api/admin/users", ActionResource{"reset_password", "admin_user"}},
		{"DELETE", "/api/admin/users/", ActionResource{"delete", "admin_user"}},
		{"POST", "/api/admin/storage/presign-upload", ActionResource{"presign", "storage"}},
		{"GET", "/api/admin/audit", ActionResource{"list", "audit_log"}},
		{"post", "/api/admin/widgets", ActionResource{"create", "widget"}},
		{"GET", "/api/public/projects", ActionResource{"unknown", "unknown"}},
		{"GET", "/api/admin/{id}", ActionResource{"get", "unknown"}},
	}
	for _, tt := range tests {
		got := ParseRoute(tt.method, tt.pattern)
		if got != tt.want {
			t.Errorf("ParseRoute(%q, %q) = %+v, want %+v", tt.method, tt.pattern, got, tt.want)
		}
	}
}

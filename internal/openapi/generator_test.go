package openapi

import (
	"encoding/json"
	"testing"
)

func TestGenerateCoversAuthRoutes(t *testing.T) {
	doc := Generate("test", "http://localhost:5000", "adminToken", DefaultCollections)

	for _, path := range []string{
		"/api/admin/auth/login",
		"/api/admin/auth/register",
		"/api/admin/auth/me",
		"/api/admin/auth/logout",
		"/api/admin/auth/profile",
		"/api/admin/auth/password",
		"/api/admin/auth/verify",
		"/api/projects",
		"/api/projects/{id}",
		"/api/messages",
		"/api/settings",
		"/health",
	} {
		if doc.Paths.Find(path) == nil {
			t.Errorf("missing path %s", path)
		}
	}

	login := doc.Paths.Find("/api/admin/auth/login").Post
	if login.Security != nil {
		t.Error("login must not require auth")
	}
	if login.Responses.Status(429) == nil {
		t.Error("login should document 429")
	}

	register := doc.Paths.Find("/api/admin/auth/register").Post
	if register.Security == nil {
		t.Error("register must require auth")
	}
	if register.Responses.Status(201) == nil {
		t.Error("register should document 201")
	}
}

func TestGenerateCollectionVisibility(t *testing.T) {
	doc := Generate("test", "", "adminToken", DefaultCollections)

	projects := doc.Paths.Find("/api/projects")
	if projects.Get.Security != nil {
		t.Error("projects list should be public")
	}
	if projects.Post.Security == nil {
		t.Error("projects create should require auth")
	}

	messages := doc.Paths.Find("/api/messages")
	if messages.Get.Security == nil {
		t.Error("messages list should require auth")
	}
	if messages.Post.Security != nil {
		t.Error("messages create should be public")
	}
	if doc.Paths.Find("/api/messages/{id}").Put != nil {
		t.Error("messages should not be replaceable")
	}
}

func TestGenerateSecuritySchemes(t *testing.T) {
	doc := Generate("test", "", "sessionCookie", nil)
	cookie := doc.Components.SecuritySchemes["cookieAuth"]
	if cookie == nil || cookie.Value.Name != "sessionCookie" || cookie.Value.In != "cookie" {
		t.Errorf("unexpected cookieAuth scheme: %+v", cookie)
	}
	if doc.Components.SecuritySchemes["bearerAuth"] == nil {
		t.Error("missing bearerAuth scheme")
	}
}

func TestJSONRenders(t *testing.T) {
	b, err := JSON("1.2.3", "http://example.com", "adminToken")
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out["openapi"] != "3.1.0" {
		t.Errorf("openapi = %v", out["openapi"])
	}
	info := out["info"].(map[string]interface{})
	if info["version"] != "1.2.3" {
		t.Errorf("version = %v", info["version"])
	}
}

package handlers

import (
	"net/http"
	"strings"
	"testing"

	"github.com/sitevisit/backend/internal/models"
)

func TestUsers_ListExcludesAdmins(t *testing.T) {
	env := setupTestEnv(t)
	_, adminToken := createTestUser(t, env.db, "admin@test.com", "password123", models.UserRoleAdmin)
	createTestUser(t, env.db, "contractor@test.com", "password123", models.UserRoleContractor)
	createTestUser(t, env.db, "owner@test.com", "password123", models.UserRoleOwner)
	_, labToken := createTestUser(t, env.db, "lab@test.com", "password123", models.UserRoleLab)

	resp := performRequest(t, env.app, http.MethodGet, "/api/users", nil, authHeaders(labToken))
	assertErrorResponse(t, resp.StatusCode, decodeJSONMap(t, resp), http.StatusForbidden, "admin access required")

	resp = performRequest(t, env.app, http.MethodGet, "/api/users", nil, authHeaders(adminToken))
	assertStatus(t, resp, http.StatusOK)
	body := decodeJSONMap(t, resp)
	users := dataList(t, body)
	if len(users) != 3 {
		t.Fatalf("expected 3 non-admin users, got %d", len(users))
	}
	for _, u := range users {
		if u.(map[string]any)["role"] == string(models.UserRoleAdmin) {
			t.Fatal("admin accounts must not be listed")
		}
	}
	pagination := body["pagination"].(map[string]any)
	if total, _ := pagination["total"].(float64); total != 3 {
		t.Fatalf("expected total 3, got %v", pagination["total"])
	}

	resp = performRequest(t, env.app, http.MethodGet, "/api/users?search=OWNER@", nil, authHeaders(adminToken))
	assertStatus(t, resp, http.StatusOK)
	if got := dataList(t, decodeJSONMap(t, resp)); len(got) != 1 {
		t.Fatalf("expected 1 search match, got %d", len(got))
	}

	resp = performRequest(t, env.app, http.MethodGet, "/api/users?role=lab", nil, authHeaders(adminToken))
	assertStatus(t, resp, http.StatusOK)
	if got := dataList(t, decodeJSONMap(t, resp)); len(got) != 1 {
		t.Fatalf("expected 1 lab user, got %d", len(got))
	}

	resp = performRequest(t, env.app, http.MethodGet, "/api/users?role=pilot", nil, authHeaders(adminToken))
	assertStatus(t, resp, http.StatusBadRequest)
}

func TestUsers_UpdatePermissions(t *testing.T) {
	env := setupTestEnv(t)
	admin, adminToken := createTestUser(t, env.db, "admin@test.com", "password123", models.UserRoleAdmin)
	otherAdmin, _ := createTestUser(t, env.db, "admin2@test.com", "password123", models.UserRoleAdmin)
	contractor, _ := createTestUser(t, env.db, "contractor@test.com", "password123", models.UserRoleContractor)
	createTestUser(t, env.db, "taken@test.com", "password123", models.UserRoleOwner)

	cases := []struct {
		name    string
		target  string
		payload map[string]any
		status  int
		message string
	}{
		{
			name:    "promote to admin",
			target:  contractor.ID.String(),
			payload: map[string]any{"role": "ADMIN"},
			status:  http.StatusForbidden,
			message: "users cannot be promoted to admin",
		},
		{
			name:    "modify another admin",
			target:  otherAdmin.ID.String(),
			payload: map[string]any{"fullName": "Renamed"},
			status:  http.StatusForbidden,
			message: "cannot modify other admin accounts",
		},
		{
			name:    "self demotion",
			target:  admin.ID.String(),
			payload: map[string]any{"role": "OWNER"},
			status:  http.StatusForbidden,
			message: "administrators cannot demote their own account",
		},
		{
			name:    "duplicate email",
			target:  contractor.ID.String(),
			payload: map[string]any{"email": "taken@test.com"},
			status:  http.StatusConflict,
			message: "email address already in use",
		},
		{
			name:    "empty update",
			target:  contractor.ID.String(),
			payload: map[string]any{},
			status:  http.StatusBadRequest,
			message: "no valid fields to update",
		},
		{
			name:    "unknown user",
			target:  "9d8c7b6a-0000-4000-8000-000000000000",
			payload: map[string]any{"fullName": "Ghost"},
			status:  http.StatusNotFound,
			message: "user not found",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := performJSONRequest(t, env.app, http.MethodPut, "/api/users/"+tc.target, tc.payload, authHeaders(adminToken))
			assertErrorResponse(t, resp.StatusCode, decodeJSONMap(t, resp), tc.status, tc.message)
		})
	}

	var stored models.User
	if err := env.db.First(&stored, "id = ?", contractor.ID).Error; err != nil {
		t.Fatalf("failed loading contractor: %v", err)
	}
	if stored.Role != models.UserRoleContractor {
		t.Fatalf("expected role to stay CONTRACTOR, got %s", stored.Role)
	}
}

func TestUsers_UpdateAssignsProjects(t *testing.T) {
	env := setupTestEnv(t)
	_, adminToken := createTestUser(t, env.db, "admin@test.com", "password123", models.UserRoleAdmin)
	contractor, _ := createTestUser(t, env.db, "contractor@test.com", "password123", models.UserRoleContractor)
	first := createTestProject(t, env.db, "Tower A", models.ProjectStatusOngoing, contractor)
	second := createTestProject(t, env.db, "Tower B", models.ProjectStatusOngoing)

	resp := performJSONRequest(t, env.app, http.MethodPut, "/api/users/"+contractor.ID.String(), map[string]any{
		"role":        "engineering",
		"companyName": "Benali Ingenierie",
		"projectIds":  []string{second.ID.String(), strings.ToUpper(second.ID.String()), second.ID.String()},
	}, authHeaders(adminToken))
	assertStatus(t, resp, http.StatusOK)

	data := dataMap(t, decodeJSONMap(t, resp))
	if data["role"] != string(models.UserRoleEngineering) {
		t.Fatalf("expected role ENGINEERING, got %v", data["role"])
	}
	if data["companyName"] != "Benali Ingenierie" {
		t.Fatalf("expected updated company, got %v", data["companyName"])
	}
	projects, _ := data["projects"].([]any)
	if len(projects) != 1 || projects[0].(map[string]any)["id"] != second.ID.String() {
		t.Fatalf("expected assignment replaced by %s, got %v", second.ID, projects)
	}

	var count int64
	env.db.Table("project_assignments").Where("project_id = ? AND user_id = ?", first.ID, contractor.ID).Count(&count)
	if count != 0 {
		t.Fatalf("expected previous assignment removed, found %d", count)
	}

	env.flushAudit()

	var logs []models.AuditLog
	env.db.Where("action = ?", "admin.user_update").Find(&logs)
	if len(logs) != 1 {
		t.Fatalf("expected 1 user update audit entry, got %d", len(logs))
	}
}

func TestUsers_Delete(t *testing.T) {
	env := setupTestEnv(t)
	admin, adminToken := createTestUser(t, env.db, "admin@test.com", "password123", models.UserRoleAdmin)
	otherAdmin, _ := createTestUser(t, env.db, "admin2@test.com", "password123", models.UserRoleAdmin)
	owner, ownerToken := createTestUser(t, env.db, "owner@test.com", "password123", models.UserRoleOwner)
	createTestProject(t, env.db, "Tower A", models.ProjectStatusOngoing, owner)

	resp := performRequest(t, env.app, http.MethodDelete, "/api/users/"+admin.ID.String(), nil, authHeaders(adminToken))
	assertErrorResponse(t, resp.StatusCode, decodeJSONMap(t, resp), http.StatusForbidden, "administrators cannot delete their own account")

	resp = performRequest(t, env.app, http.MethodDelete, "/api/users/"+otherAdmin.ID.String(), nil, authHeaders(adminToken))
	assertErrorResponse(t, resp.StatusCode, decodeJSONMap(t, resp), http.StatusForbidden, "cannot delete other admin accounts")

	resp = performRequest(t, env.app, http.MethodDelete, "/api/users/"+owner.ID.String(), nil, authHeaders(adminToken))
	assertStatus(t, resp, http.StatusOK)

	var count int64
	env.db.Table("project_assignments").Where("user_id = ?", owner.ID).Count(&count)
	if count != 0 {
		t.Fatalf("expected assignments removed, found %d", count)
	}

	resp = performRequest(t, env.app, http.MethodGet, "/api/users/me", nil, authHeaders(ownerToken))
	assertErrorResponse(t, resp.StatusCode, decodeJSONMap(t, resp), http.StatusUnauthorized, "user not found")

	resp = performJSONRequest(t, env.app, http.MethodPost, "/api/auth/register", validRegistration("owner@test.com"), nil)
	assertErrorResponse(t, resp.StatusCode, decodeJSONMap(t, resp), http.StatusConflict, "email address already in use")
}

package handlers

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/sitevisit/backend/internal/booking"
	"github.com/sitevisit/backend/internal/models"
)

func projectNames(t *testing.T, items []any) []string {
	t.Helper()
	names := make([]string, 0, len(items))
	for _, item := range items {
		names = append(names, item.(map[string]any)["name"].(string))
	}
	return names
}

func assertNames(t *testing.T, got []string, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected projects %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected projects %v, got %v", want, got)
		}
	}
}

func TestProjectsForSelection_ByRole(t *testing.T) {
	env := setupTestEnv(t)
	contractor, contractorToken := createTestUser(t, env.db, "contractor@test.com", "password123", models.UserRoleContractor)
	owner, ownerToken := createTestUser(t, env.db, "owner@test.com", "password123", models.UserRoleOwner)
	admin, adminToken := createTestUser(t, env.db, "admin@test.com", "password123", models.UserRoleAdmin)

	createTestProject(t, env.db, "Bridge", models.ProjectStatusOngoing, contractor, owner)
	createTestProject(t, env.db, "Annex", models.ProjectStatusPlanned, contractor, owner, admin)
	createTestProject(t, env.db, "Clinic", models.ProjectStatusCompleted, contractor, owner, admin)
	createTestProject(t, env.db, "Depot", models.ProjectStatusOngoing)

	resp := performRequest(t, env.app, http.MethodGet, "/api/projects/for-selection", nil, authHeaders(contractorToken))
	assertStatus(t, resp, http.StatusOK)
	assertNames(t, projectNames(t, dataList(t, decodeJSONMap(t, resp))), "Bridge")

	resp = performRequest(t, env.app, http.MethodGet, "/api/projects/for-selection", nil, authHeaders(ownerToken))
	assertStatus(t, resp, http.StatusOK)
	assertNames(t, projectNames(t, dataList(t, decodeJSONMap(t, resp))), "Annex", "Bridge")

	// assigned scope: own assignments only, with no status filter
	resp = performRequest(t, env.app, http.MethodGet, "/api/projects/for-selection", nil, authHeaders(adminToken))
	assertStatus(t, resp, http.StatusOK)
	assertNames(t, projectNames(t, dataList(t, decodeJSONMap(t, resp))), "Annex", "Clinic")
}

func TestProjectsForSelection_AdminAllScope(t *testing.T) {
	env := setupTestEnvWithScope(t, booking.SelectionScopeAll)
	_, adminToken := createTestUser(t, env.db, "admin@test.com", "password123", models.UserRoleAdmin)

	createTestProject(t, env.db, "Bridge", models.ProjectStatusOngoing)
	createTestProject(t, env.db, "Clinic", models.ProjectStatusCancelled)

	resp := performRequest(t, env.app, http.MethodGet, "/api/projects/for-selection", nil, authHeaders(adminToken))
	assertStatus(t, resp, http.StatusOK)
	assertNames(t, projectNames(t, dataList(t, decodeJSONMap(t, resp))), "Bridge", "Clinic")
}

func TestProjects_CreateAndAdminRoutes(t *testing.T) {
	env := setupTestEnv(t)
	contractor, contractorToken := createTestUser(t, env.db, "contractor@test.com", "password123", models.UserRoleContractor)
	_, adminToken := createTestUser(t, env.db, "admin@test.com", "password123", models.UserRoleAdmin)

	resp := performJSONRequest(t, env.app, http.MethodPost, "/api/projects", map[string]any{
		"name": "Tower A", "location": "Oran",
	}, authHeaders(contractorToken))
	assertStatus(t, resp, http.StatusForbidden)

	resp = performJSONRequest(t, env.app, http.MethodPost, "/api/projects", map[string]any{
		"name": "Tower A",
	}, authHeaders(adminToken))
	assertErrorResponse(t, resp.StatusCode, decodeJSONMap(t, resp), http.StatusBadRequest, "project name and location are required")

	resp = performJSONRequest(t, env.app, http.MethodPost, "/api/projects", map[string]any{
		"name": "Tower A", "location": "Oran", "userIds": []string{"1c6e7a0e-0000-4000-8000-000000000000"},
	}, authHeaders(adminToken))
	assertErrorResponse(t, resp.StatusCode, decodeJSONMap(t, resp), http.StatusBadRequest, errUnknownUsers.Error())

	resp = performJSONRequest(t, env.app, http.MethodPost, "/api/projects", map[string]any{
		"name": "  Tower A ", "location": "Oran", "userIds": []string{contractor.ID.String()},
	}, authHeaders(adminToken))
	assertStatus(t, resp, http.StatusCreated)
	created := dataMap(t, decodeJSONMap(t, resp))
	if created["name"] != "Tower A" {
		t.Fatalf("expected trimmed name, got %v", created["name"])
	}
	if created["status"] != string(models.ProjectStatusPlanned) {
		t.Fatalf("expected default status PLANNED, got %v", created["status"])
	}
	if users, _ := created["users"].([]any); len(users) != 1 {
		t.Fatalf("expected one assigned user, got %v", created["users"])
	}

	resp = performJSONRequest(t, env.app, http.MethodPost, "/api/projects", map[string]any{
		"name": "Tower A", "location": "Annaba",
	}, authHeaders(adminToken))
	assertErrorResponse(t, resp.StatusCode, decodeJSONMap(t, resp), http.StatusConflict, "project name already exists")

	id := created["id"].(string)
	resp = performJSONRequest(t, env.app, http.MethodPatch, "/api/projects/"+id, map[string]any{
		"status": "ongoing",
	}, authHeaders(adminToken))
	assertStatus(t, resp, http.StatusOK)
	if got := dataMap(t, decodeJSONMap(t, resp))["status"]; got != string(models.ProjectStatusOngoing) {
		t.Fatalf("expected ONGOING, got %v", got)
	}

	resp = performJSONRequest(t, env.app, http.MethodPatch, "/api/projects/"+id, map[string]any{
		"status": "archived",
	}, authHeaders(adminToken))
	assertStatus(t, resp, http.StatusBadRequest)

	resp = performJSONRequest(t, env.app, http.MethodPatch, "/api/projects/"+id, map[string]any{
		"userIds": []string{},
	}, authHeaders(adminToken))
	assertStatus(t, resp, http.StatusOK)
	if users, _ := dataMap(t, decodeJSONMap(t, resp))["users"].([]any); len(users) != 0 {
		t.Fatalf("expected assignments cleared, got %v", users)
	}

	resp = performRequest(t, env.app, http.MethodGet, "/api/projects/"+id, nil, authHeaders(adminToken))
	assertStatus(t, resp, http.StatusOK)

	resp = performRequest(t, env.app, http.MethodGet, "/api/projects/4a3c2b1d-0000-4000-8000-000000000000", nil, authHeaders(adminToken))
	assertStatus(t, resp, http.StatusNotFound)
}

func TestProjects_AdminListLatestCompletedVisit(t *testing.T) {
	env := setupTestEnv(t)
	contractor, _ := createTestUser(t, env.db, "contractor@test.com", "password123", models.UserRoleContractor)
	_, adminToken := createTestUser(t, env.db, "admin@test.com", "password123", models.UserRoleAdmin)
	visited := createTestProject(t, env.db, "Tower A", models.ProjectStatusOngoing, contractor)
	createTestProject(t, env.db, "Tower B", models.ProjectStatusPlanned)

	seed := func(status models.AppointmentStatus, at time.Time) *models.Appointment {
		appt := &models.Appointment{
			UserID:           contractor.ID,
			ProjectID:        visited.ID,
			VisitReason:      models.VisitReasonOther,
			VisitDesc:        "Walkthrough",
			ProposedDateTime: at,
			Status:           status,
		}
		if err := env.db.Create(appt).Error; err != nil {
			t.Fatalf("failed seeding appointment: %v", err)
		}
		return appt
	}
	seed(models.AppointmentStatusCompleted, time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	latest := seed(models.AppointmentStatusCompleted, time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC))
	seed(models.AppointmentStatusConfirmed, time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC))

	resp := performRequest(t, env.app, http.MethodGet, "/api/projects/admin-list", nil, authHeaders(adminToken))
	assertStatus(t, resp, http.StatusOK)
	items := dataList(t, decodeJSONMap(t, resp))
	if len(items) != 2 {
		t.Fatalf("expected 2 projects, got %d", len(items))
	}

	for _, item := range items {
		project := item.(map[string]any)
		visit, _ := project["latestCompletedVisit"].(map[string]any)
		switch project["name"] {
		case "Tower A":
			if visit == nil || visit["id"] != latest.ID.String() {
				t.Fatalf("expected latest completed visit %s, got %v", latest.ID, visit)
			}
			if visit["userFullName"] != contractor.FullName {
				t.Fatalf("expected visitor name %q, got %v", contractor.FullName, visit["userFullName"])
			}
		case "Tower B":
			if visit != nil {
				t.Fatalf("expected no completed visit, got %v", visit)
			}
		}
	}
}

func TestProjects_Delete(t *testing.T) {
	env := setupTestEnv(t)
	contractor, _ := createTestUser(t, env.db, "contractor@test.com", "password123", models.UserRoleContractor)
	_, adminToken := createTestUser(t, env.db, "admin@test.com", "password123", models.UserRoleAdmin)
	busy := createTestProject(t, env.db, "Tower A", models.ProjectStatusOngoing, contractor)
	idle := createTestProject(t, env.db, "Tower B", models.ProjectStatusPlanned, contractor)

	if err := env.db.Create(&models.Appointment{
		UserID:           contractor.ID,
		ProjectID:        busy.ID,
		VisitReason:      models.VisitReasonFile,
		VisitDesc:        "File review",
		ProposedDateTime: time.Date(2025, 6, 5, 10, 0, 0, 0, time.UTC),
		Status:           models.AppointmentStatusPending,
	}).Error; err != nil {
		t.Fatalf("failed seeding appointment: %v", err)
	}

	resp := performRequest(t, env.app, http.MethodDelete, "/api/projects/"+busy.ID.String(), nil, authHeaders(adminToken))
	assertErrorResponse(t, resp.StatusCode, decodeJSONMap(t, resp), http.StatusConflict, "cannot delete a project that has appointments")

	resp = performRequest(t, env.app, http.MethodDelete, "/api/projects/"+idle.ID.String(), nil, authHeaders(adminToken))
	assertStatus(t, resp, http.StatusOK)

	var count int64
	env.db.Unscoped().Model(&models.Project{}).Where("id = ?", idle.ID).Count(&count)
	if count != 0 {
		t.Fatalf("expected project row removed, found %d", count)
	}
	env.db.Table("project_assignments").Where("project_id = ?", idle.ID).Count(&count)
	if count != 0 {
		t.Fatalf("expected assignments removed, found %d", count)
	}

	resp = performJSONRequest(t, env.app, http.MethodPost, "/api/projects", map[string]any{
		"name": "Tower B", "location": "Oran",
	}, authHeaders(adminToken))
	assertStatus(t, resp, http.StatusCreated)
}

func TestProjects_RepeatedUserIDsAssignOnce(t *testing.T) {
	env := setupTestEnv(t)
	contractor, _ := createTestUser(t, env.db, "contractor@test.com", "password123", models.UserRoleContractor)
	owner, _ := createTestUser(t, env.db, "owner@test.com", "password123", models.UserRoleOwner)
	_, adminToken := createTestUser(t, env.db, "admin@test.com", "password123", models.UserRoleAdmin)

	id := contractor.ID.String()
	resp := performJSONRequest(t, env.app, http.MethodPost, "/api/projects", map[string]any{
		"name": "Tower A", "location": "Oran", "userIds": []string{id, strings.ToUpper(id), " " + id + " "},
	}, authHeaders(adminToken))
	assertStatus(t, resp, http.StatusCreated)
	created := dataMap(t, decodeJSONMap(t, resp))
	if users, _ := created["users"].([]any); len(users) != 1 {
		t.Fatalf("expected one assigned user, got %v", created["users"])
	}

	resp = performJSONRequest(t, env.app, http.MethodPatch, "/api/projects/"+created["id"].(string), map[string]any{
		"userIds": []string{owner.ID.String(), owner.ID.String(), id},
	}, authHeaders(adminToken))
	assertStatus(t, resp, http.StatusOK)
	if users, _ := dataMap(t, decodeJSONMap(t, resp))["users"].([]any); len(users) != 2 {
		t.Fatalf("expected two assigned users, got %v", users)
	}

	var count int64
	env.db.Table("project_assignments").Where("project_id = ?", created["id"]).Count(&count)
	if count != 2 {
		t.Fatalf("expected 2 assignment rows, got %d", count)
	}
}

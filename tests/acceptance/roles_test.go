package acceptance

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/dmorozov-pr/identity-service/internal/dto"
)

// registerUser creates an account and returns its id and access token.
func (s *Suite) registerUser(email string) (string, string) {
	reqBody := dto.RegisterRequest{
		Email:    email,
		Password: "Password123",
	}
	body, _ := json.Marshal(reqBody)

	resp, err := http.Post(
		s.BaseURL+"/api/v1/auth/register",
		"application/json",
		bytes.NewBuffer(body),
	)
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Require().Equal(http.StatusCreated, resp.StatusCode)

	var authResp dto.AuthResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&authResp))
	return authResp.User.ID, authResp.AccessToken
}

// grantRole seeds a role directly in the ledger, bypassing the grant table.
func (s *Suite) grantRole(userID, role string) {
	_, err := s.Postgres.DB.Exec(
		"INSERT INTO user_role_assignments (user_id, role) VALUES ($1, $2)",
		userID, role,
	)
	s.Require().NoError(err)
}

func (s *Suite) postRole(path string, token string, req interface{}) *http.Response {
	body, _ := json.Marshal(req)
	httpReq, _ := http.NewRequest("POST", s.BaseURL+path, bytes.NewBuffer(body))
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))

	resp, err := http.DefaultClient.Do(httpReq)
	s.Require().NoError(err)
	return resp
}

func (s *Suite) TestAssignRole_AsAdmin() {
	adminID, adminToken := s.registerUser("admin@example.com")
	s.grantRole(adminID, "admin")
	memberID, _ := s.registerUser("member@example.com")

	resp := s.postRole("/api/v1/roles/assign", adminToken, dto.AssignRoleRequest{
		UserID: memberID,
		Role:   "manager",
	})
	defer resp.Body.Close()

	s.Equal(http.StatusCreated, resp.StatusCode)
}

func (s *Suite) TestAssignRole_WithoutGrantRight() {
	_, memberToken := s.registerUser("plain@example.com")
	targetID, _ := s.registerUser("target@example.com")

	resp := s.postRole("/api/v1/roles/assign", memberToken, dto.AssignRoleRequest{
		UserID: targetID,
		Role:   "support",
	})
	defer resp.Body.Close()

	s.Equal(http.StatusForbidden, resp.StatusCode)
}

func (s *Suite) TestAssignRole_ManagerCannotGrantAdmin() {
	managerID, managerToken := s.registerUser("manager@example.com")
	s.grantRole(managerID, "manager")
	targetID, _ := s.registerUser("target@example.com")

	resp := s.postRole("/api/v1/roles/assign", managerToken, dto.AssignRoleRequest{
		UserID: targetID,
		Role:   "admin",
	})
	defer resp.Body.Close()

	s.Equal(http.StatusForbidden, resp.StatusCode)
}

func (s *Suite) TestAssignRole_Conflict() {
	adminID, adminToken := s.registerUser("admin@example.com")
	s.grantRole(adminID, "admin")
	targetID, _ := s.registerUser("target@example.com")
	s.grantRole(targetID, "support")

	resp := s.postRole("/api/v1/roles/assign", adminToken, dto.AssignRoleRequest{
		UserID: targetID,
		Role:   "manager",
	})
	defer resp.Body.Close()

	s.Equal(http.StatusConflict, resp.StatusCode)
}

func (s *Suite) TestRevokeRole() {
	adminID, adminToken := s.registerUser("admin@example.com")
	s.grantRole(adminID, "admin")
	targetID, _ := s.registerUser("target@example.com")
	s.grantRole(targetID, "support")

	resp := s.postRole("/api/v1/roles/revoke", adminToken, dto.RevokeRoleRequest{
		UserID: targetID,
		Role:   "support",
	})
	defer resp.Body.Close()

	s.Equal(http.StatusOK, resp.StatusCode)

	// A second revocation finds nothing active.
	resp2 := s.postRole("/api/v1/roles/revoke", adminToken, dto.RevokeRoleRequest{
		UserID: targetID,
		Role:   "support",
	})
	defer resp2.Body.Close()

	s.Equal(http.StatusNotFound, resp2.StatusCode)
}

func (s *Suite) TestRevokeRole_RequiresPermission() {
	supportID, supportToken := s.registerUser("support@example.com")
	s.grantRole(supportID, "support")
	targetID, _ := s.registerUser("target@example.com")
	s.grantRole(targetID, "member")

	resp := s.postRole("/api/v1/roles/revoke", supportToken, dto.RevokeRoleRequest{
		UserID: targetID,
		Role:   "member",
	})
	defer resp.Body.Close()

	s.Equal(http.StatusForbidden, resp.StatusCode)
}

func (s *Suite) TestRoleStatistics() {
	adminID, adminToken := s.registerUser("admin@example.com")
	s.grantRole(adminID, "admin")
	memberID, _ := s.registerUser("member@example.com")
	s.grantRole(memberID, "member")

	req, _ := http.NewRequest("GET", s.BaseURL+"/api/v1/roles/statistics", nil)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", adminToken))

	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Equal(http.StatusOK, resp.StatusCode)

	var statsResp dto.RoleStatisticsResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&statsResp))

	s.Equal(1, statsResp.Statistics["admin"])
	s.Equal(1, statsResp.Statistics["member"])
	// Unheld roles appear with a zero count.
	s.Contains(statsResp.Statistics, "support")
	s.Equal(0, statsResp.Statistics["support"])
}

func (s *Suite) TestRoleHistory() {
	adminID, adminToken := s.registerUser("admin@example.com")
	s.grantRole(adminID, "admin")
	targetID, _ := s.registerUser("target@example.com")

	assignResp := s.postRole("/api/v1/roles/assign", adminToken, dto.AssignRoleRequest{
		UserID: targetID,
		Role:   "support",
		Notes:  "initial hire",
	})
	assignResp.Body.Close()
	s.Require().Equal(http.StatusCreated, assignResp.StatusCode)

	revokeResp := s.postRole("/api/v1/roles/revoke", adminToken, dto.RevokeRoleRequest{
		UserID: targetID,
		Role:   "support",
	})
	revokeResp.Body.Close()
	s.Require().Equal(http.StatusOK, revokeResp.StatusCode)

	req, _ := http.NewRequest("GET", s.BaseURL+"/api/v1/roles/users/"+targetID+"/history", nil)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", adminToken))

	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Equal(http.StatusOK, resp.StatusCode)

	var history []dto.RoleAssignmentResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&history))
	s.Require().Len(history, 1)
	s.Equal("support", history[0].Role)
	s.NotNil(history[0].RevokedAt)
	s.NotNil(history[0].Notes)
}

func (s *Suite) TestUsersWithRole() {
	adminID, adminToken := s.registerUser("admin@example.com")
	s.grantRole(adminID, "admin")
	memberID, _ := s.registerUser("member@example.com")
	s.grantRole(memberID, "member")

	req, _ := http.NewRequest("GET", s.BaseURL+"/api/v1/roles/member/users", nil)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", adminToken))

	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Equal(http.StatusOK, resp.StatusCode)

	var listResp struct {
		Role    string   `json:"role"`
		UserIDs []string `json:"user_ids"`
	}
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&listResp))
	s.Equal("member", listResp.Role)
	s.Equal([]string{memberID}, listResp.UserIDs)
}

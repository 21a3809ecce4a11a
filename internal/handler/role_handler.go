package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/dmorozov-pr/identity-service/internal/domain"
	"github.com/dmorozov-pr/identity-service/internal/dto"
	"github.com/dmorozov-pr/identity-service/internal/service"
	"github.com/gin-gonic/gin"
)

// RoleHandler handles role ledger requests
type RoleHandler struct {
	roleService service.RoleService
}

// NewRoleHandler creates a new role handler
func NewRoleHandler(roleService service.RoleService) *RoleHandler {
	return &RoleHandler{
		roleService: roleService,
	}
}

func parseRole(c *gin.Context, raw string) (domain.Role, bool) {
	role := domain.Role(raw)
	if !role.IsValid() {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Validation failed",
			Message: "Unknown role: " + raw,
		})
		return "", false
	}
	return role, true
}

func optionalNotes(notes string) *string {
	if notes == "" {
		return nil
	}
	return &notes
}

// Assign handles role grants
// @Summary Assign a role to a user
// @Tags roles
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body dto.AssignRoleRequest true "Assignment request"
// @Success 201 {object} dto.SuccessResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /roles/assign [post]
func (h *RoleHandler) Assign(c *gin.Context) {
	var req dto.AssignRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Validation failed",
			Message: err.Error(),
		})
		return
	}

	role, ok := parseRole(c, req.Role)
	if !ok {
		return
	}

	actingUserID, ok := currentUserID(c)
	if !ok {
		return
	}

	canAssign, err := h.roleService.CanAssign(c.Request.Context(), actingUserID, role)
	if err != nil {
		internalError(c, err)
		return
	}
	if !canAssign {
		c.JSON(http.StatusForbidden, dto.ErrorResponse{
			Error:   "Forbidden",
			Message: service.ErrNotPermitted.Error(),
		})
		return
	}

	err = h.roleService.Assign(c.Request.Context(), req.UserID, role, &actingUserID, optionalNotes(req.Notes))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrRoleConflict):
			c.JSON(http.StatusConflict, dto.ErrorResponse{
				Error:   "Conflict",
				Message: err.Error(),
			})
		case errors.Is(err, service.ErrValidation):
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{
				Error:   "Validation failed",
				Message: err.Error(),
			})
		default:
			internalError(c, err)
		}
		return
	}

	c.JSON(http.StatusCreated, dto.SuccessResponse{
		Message: "Role assigned",
	})
}

// Revoke handles role revocations
// @Summary Revoke a user's role
// @Tags roles
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body dto.RevokeRoleRequest true "Revocation request"
// @Success 200 {object} dto.SuccessResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /roles/revoke [post]
func (h *RoleHandler) Revoke(c *gin.Context) {
	var req dto.RevokeRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Validation failed",
			Message: err.Error(),
		})
		return
	}

	role, ok := parseRole(c, req.Role)
	if !ok {
		return
	}

	actingUserID, ok := currentUserID(c)
	if !ok {
		return
	}

	err := h.roleService.Revoke(c.Request.Context(), req.UserID, role, &actingUserID, optionalNotes(req.Notes))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNoActiveRole):
			c.JSON(http.StatusNotFound, dto.ErrorResponse{
				Error:   "Not found",
				Message: err.Error(),
			})
		case errors.Is(err, service.ErrValidation):
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{
				Error:   "Validation failed",
				Message: err.Error(),
			})
		default:
			internalError(c, err)
		}
		return
	}

	c.JSON(http.StatusOK, dto.SuccessResponse{
		Message: "Role revoked",
	})
}

// UsersWithRole lists current holders of a role
// @Summary List users holding a role
// @Tags roles
// @Security BearerAuth
// @Produce json
// @Param role path string true "Role name"
// @Success 200 {object} map[string][]string
// @Router /roles/{role}/users [get]
func (h *RoleHandler) UsersWithRole(c *gin.Context) {
	role, ok := parseRole(c, c.Param("role"))
	if !ok {
		return
	}

	userIDs, err := h.roleService.UsersWithRole(c.Request.Context(), role)
	if err != nil {
		internalError(c, err)
		return
	}
	if userIDs == nil {
		userIDs = []string{}
	}

	c.JSON(http.StatusOK, gin.H{
		"role":     string(role),
		"user_ids": userIDs,
	})
}

// History returns a user's full assignment audit trail, newest first
// @Summary Get a user's role history
// @Tags roles
// @Security BearerAuth
// @Produce json
// @Param user_id path string true "User id"
// @Success 200 {array} dto.RoleAssignmentResponse
// @Router /roles/users/{user_id}/history [get]
func (h *RoleHandler) History(c *gin.Context) {
	userID := c.Param("user_id")

	assignments, err := h.roleService.History(c.Request.Context(), userID)
	if err != nil {
		internalError(c, err)
		return
	}

	resp := make([]dto.RoleAssignmentResponse, 0, len(assignments))
	for _, a := range assignments {
		entry := dto.RoleAssignmentResponse{
			ID:         a.ID,
			UserID:     a.UserID,
			Role:       string(a.Role),
			AssignedAt: a.AssignedAt.Format(time.RFC3339),
			AssignedBy: a.AssignedBy,
			RevokedBy:  a.RevokedBy,
			Notes:      a.Notes,
		}
		if a.RevokedAt != nil {
			revokedAt := a.RevokedAt.Format(time.RFC3339)
			entry.RevokedAt = &revokedAt
		}
		resp = append(resp, entry)
	}

	c.JSON(http.StatusOK, resp)
}

// Statistics returns active holder counts per role
// @Summary Get role statistics
// @Tags roles
// @Security BearerAuth
// @Produce json
// @Success 200 {object} dto.RoleStatisticsResponse
// @Router /roles/statistics [get]
func (h *RoleHandler) Statistics(c *gin.Context) {
	stats, err := h.roleService.Statistics(c.Request.Context())
	if err != nil {
		internalError(c, err)
		return
	}

	resp := dto.RoleStatisticsResponse{
		Statistics: make(map[string]int, len(stats)),
	}
	for role, count := range stats {
		resp.Statistics[string(role)] = count
	}

	c.JSON(http.StatusOK, resp)
}

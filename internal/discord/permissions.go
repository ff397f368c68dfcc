package discord

import (
	"slices"

	"github.com/bwmarrin/discordgo"
)

// PermissionChecker validates that a Discord user may run privileged slash
// commands such as /link.
type PermissionChecker struct {
	adminRoleID string
}

// NewPermissionChecker creates a PermissionChecker for the given admin role.
func NewPermissionChecker(adminRoleID string) *PermissionChecker {
	return &PermissionChecker{adminRoleID: adminRoleID}
}

// IsAdmin reports whether the interaction author holds the admin role. With
// no role configured only members with the Administrator permission pass.
// Interactions outside a guild never pass.
func (p *PermissionChecker) IsAdmin(i *discordgo.InteractionCreate) bool {
	if i.Member == nil {
		return false
	}
	if p.adminRoleID == "" {
		return i.Member.Permissions&discordgo.PermissionAdministrator != 0
	}
	return slices.Contains(i.Member.Roles, p.adminRoleID)
}

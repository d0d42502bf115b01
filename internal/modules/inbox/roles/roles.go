// Package roles holds the per-role inbox configuration shared by the inbox
// adapter, its HTTP routes and the delivery pipeline's links.
package roles

import (
	"slices"

	"anoa.com/tutorhub/internal/entity"
)

// RecipientRule describes one group of users a role may address.
type RecipientRule struct {
	Role entity.Role
	// Linked restricts the rule to users who share a teaching session with
	// the sender.
	Linked bool
}

type RoleConfig struct {
	Role         entity.Role
	RoutePrefix  string
	Recipients   []RecipientRule
	AllowedTypes []entity.NotificationType
	// AnyRecipient lifts the recipient rules entirely.
	AnyRecipient bool
}

var table = map[entity.Role]RoleConfig{
	entity.RoleGuardian: {
		Role:        entity.RoleGuardian,
		RoutePrefix: "/guardian/messages",
		Recipients: []RecipientRule{
			{Role: entity.RoleAdmin},
			{Role: entity.RoleTeacher, Linked: true},
		},
		AllowedTypes: []entity.NotificationType{entity.TypeMessage, entity.TypeRequest},
	},
	entity.RoleTeacher: {
		Role:        entity.RoleTeacher,
		RoutePrefix: "/teacher/messages",
		Recipients: []RecipientRule{
			{Role: entity.RoleAdmin},
			{Role: entity.RoleGuardian, Linked: true},
		},
		AllowedTypes: []entity.NotificationType{entity.TypeMessage, entity.TypeRequest},
	},
	entity.RoleAdmin: {
		Role:         entity.RoleAdmin,
		RoutePrefix:  "/admin/notifications",
		AnyRecipient: true,
		AllowedTypes: entity.NotificationTypes(),
	},
}

// For returns the configuration of role.
func For(role entity.Role) (RoleConfig, bool) {
	cfg, ok := table[role]
	return cfg, ok
}

// All returns every role configuration in a stable order.
func All() []RoleConfig {
	out := make([]RoleConfig, 0, len(table))
	for _, r := range entity.Roles() {
		if cfg, ok := table[r]; ok {
			out = append(out, cfg)
		}
	}
	return out
}

// InboxPath is the front-end route where role reads its messages.
func InboxPath(role entity.Role) string {
	if cfg, ok := table[role]; ok {
		return cfg.RoutePrefix
	}
	return "/messages"
}

func (c RoleConfig) AllowsType(t entity.NotificationType) bool {
	return slices.Contains(c.AllowedTypes, t)
}

// RuleFor returns the rule that covers recipients of role, if any.
func (c RoleConfig) RuleFor(role entity.Role) (RecipientRule, bool) {
	for _, r := range c.Recipients {
		if r.Role == role {
			return r, true
		}
	}
	return RecipientRule{}, false
}

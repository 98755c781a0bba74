// Package authz decides which roles may perform which actions, using an
// in-memory casbin RBAC model seeded at startup.
package authz

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/punchamoorthee/invosafe/internal/domain"
)

//go:embed model.conf
var modelText string

const (
	ObjectInvoice     = "invoice"
	ObjectCredits     = "credits"
	ObjectTransaction = "transaction"
	ObjectLender      = "lender"
	ObjectUser        = "user"
	ObjectAPIClient   = "api_client"
	ObjectBusiness    = "business"
)

const (
	ActionView      = "view"
	ActionList      = "list"
	ActionSelf      = "self"
	ActionCreate    = "create"
	ActionUpdate    = "update"
	ActionDelete    = "delete"
	ActionBulk      = "bulk"
	ActionExport    = "export"
	ActionCheck     = "check"
	ActionPurchase  = "purchase"
	ActionProvision = "provision"
)

// Roles inherit downwards: an admin holds every manager grant and a
// manager every user grant.
var roleLinks = [][]string{
	{subject(domain.RoleAdmin), subject(domain.RoleManager)},
	{subject(domain.RoleManager), subject(domain.RoleUser)},
}

var policies = [][]string{
	{subject(domain.RoleUser), ObjectInvoice, ActionView},
	{subject(domain.RoleUser), ObjectInvoice, ActionCreate},
	{subject(domain.RoleUser), ObjectInvoice, ActionUpdate},
	{subject(domain.RoleUser), ObjectInvoice, ActionDelete},
	{subject(domain.RoleUser), ObjectInvoice, ActionBulk},
	{subject(domain.RoleUser), ObjectInvoice, ActionExport},
	{subject(domain.RoleUser), ObjectCredits, ActionView},
	{subject(domain.RoleUser), ObjectTransaction, ActionView},
	{subject(domain.RoleUser), ObjectBusiness, ActionView},
	{subject(domain.RoleUser), ObjectUser, ActionSelf},

	{subject(domain.RoleManager), ObjectCredits, ActionPurchase},
	{subject(domain.RoleManager), ObjectUser, ActionView},
	{subject(domain.RoleManager), ObjectUser, ActionCreate},
	{subject(domain.RoleManager), ObjectUser, ActionUpdate},
	{subject(domain.RoleManager), ObjectUser, ActionDelete},
	{subject(domain.RoleManager), ObjectAPIClient, "*"},
	{subject(domain.RoleManager), ObjectLender, ActionView},

	{subject(domain.RoleAdmin), ObjectLender, "*"},
	{subject(domain.RoleAdmin), ObjectCredits, ActionProvision},

	{subject(domain.RoleAPIClient), ObjectInvoice, ActionCheck},
}

func subject(r domain.Role) string {
	return "role:" + strings.ToLower(string(r))
}

type Authorizer struct {
	enforcer *casbin.SyncedEnforcer
}

func New() (*Authorizer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, fmt.Errorf("load rbac model: %w", err)
	}
	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("create enforcer: %w", err)
	}
	if _, err := enforcer.AddGroupingPolicies(roleLinks); err != nil {
		return nil, fmt.Errorf("seed role links: %w", err)
	}
	if _, err := enforcer.AddPolicies(policies); err != nil {
		return nil, fmt.Errorf("seed policies: %w", err)
	}
	return &Authorizer{enforcer: enforcer}, nil
}

// Authorize returns domain.ErrForbidden unless role may perform action on object.
func (a *Authorizer) Authorize(role domain.Role, object, action string) error {
	if role == "" {
		return domain.ErrForbidden
	}
	allowed, err := a.enforcer.Enforce(subject(role), object, action)
	if err != nil {
		return fmt.Errorf("enforce: %w", err)
	}
	if !allowed {
		return domain.ErrForbidden
	}
	return nil
}

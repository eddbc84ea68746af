package reservation

import (
	"github.com/pearleseed/device-hub-sub001/models"
)

// Actor is the caller of a core operation. IsAdmin is evaluated by the
// external authorization component before the call.
type Actor struct {
	ID      string
	IsAdmin bool

	system bool
}

// systemActor performs transitions that are side effects of another
// operation (a return moving its borrow to returned). It carries the ID of
// the user whose operation triggered it for audit purposes.
func systemActor(onBehalfOf string) Actor {
	return Actor{ID: onBehalfOf, system: true}
}

// Permission is the predicate a transition requires.
type Permission int

const (
	PermAuthenticated Permission = iota
	PermOwnerOrAdmin
	PermAdmin
	PermSystem
)

func (p Permission) String() string {
	switch p {
	case PermAuthenticated:
		return "authenticated"
	case PermOwnerOrAdmin:
		return "owner or admin"
	case PermAdmin:
		return "admin"
	case PermSystem:
		return "system"
	}
	return "unknown"
}

// Allows evaluates the permission for actor against the request owner.
func (p Permission) Allows(actor Actor, ownerID string) bool {
	if actor.ID == "" {
		return false
	}
	switch p {
	case PermAuthenticated:
		return true
	case PermOwnerOrAdmin:
		return actor.IsAdmin || actor.ID == ownerID
	case PermAdmin:
		return actor.IsAdmin
	case PermSystem:
		return actor.system
	}
	return false
}

type RequestType string

const (
	RequestBorrow  RequestType = "borrow"
	RequestReturn  RequestType = "return"
	RequestRenewal RequestType = "renewal"
)

type transitionKey struct {
	typ  RequestType
	from string
	to   string
}

// transitions is the complete table of legal status changes. Anything absent
// is an invalid transition.
var transitions = map[transitionKey]Permission{
	{RequestBorrow, string(models.BorrowPending), string(models.BorrowApproved)}:  PermAdmin,
	{RequestBorrow, string(models.BorrowPending), string(models.BorrowRejected)}:  PermAdmin,
	{RequestBorrow, string(models.BorrowApproved), string(models.BorrowActive)}:   PermAdmin,
	{RequestBorrow, string(models.BorrowApproved), string(models.BorrowRejected)}: PermAdmin,
	{RequestBorrow, string(models.BorrowActive), string(models.BorrowReturned)}:   PermSystem,

	{RequestRenewal, string(models.RenewalPending), string(models.RenewalApproved)}: PermAdmin,
	{RequestRenewal, string(models.RenewalPending), string(models.RenewalRejected)}: PermAdmin,
}

// creations holds the permission needed to create each request type, and the
// one to correct a return's condition.
var creations = map[RequestType]Permission{
	RequestBorrow:  PermAuthenticated,
	RequestReturn:  PermOwnerOrAdmin,
	RequestRenewal: PermOwnerOrAdmin,
}

const permCorrectReturn = PermAdmin

// RequiredPermission looks up a transition. ok is false when the transition
// is not in the table.
func RequiredPermission(typ RequestType, from, to string) (Permission, bool) {
	p, ok := transitions[transitionKey{typ, from, to}]
	return p, ok
}

// authorizeTransition checks existence first, then the actor's permission.
// A transition that does not exist is invalid for everyone.
func authorizeTransition(typ RequestType, from, to string, actor Actor, ownerID string) error {
	perm, ok := RequiredPermission(typ, from, to)
	if !ok {
		return invalidTransitionErr("%s request cannot move from %s to %s", typ, from, to)
	}
	if !perm.Allows(actor, ownerID) {
		return permissionErr("%s -> %s on a %s request requires %s", from, to, typ, perm)
	}
	return nil
}

func authorizeCreate(typ RequestType, actor Actor, ownerID string) error {
	perm := creations[typ]
	if !perm.Allows(actor, ownerID) {
		return permissionErr("creating a %s request requires %s", typ, perm)
	}
	return nil
}

// Terminal reports whether status has no outgoing transitions.
func Terminal(typ RequestType, status string) bool {
	for k := range transitions {
		if k.typ == typ && k.from == status {
			return false
		}
	}
	return true
}

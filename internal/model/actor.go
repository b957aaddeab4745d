package model

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Actor is the authenticated caller of a lifecycle operation.
type Actor struct {
	UserID string
	Role   Role
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

func (a Actor) String() string {
	if a.UserID == "" {
		return "anonymous"
	}
	return string(a.Role) + ":" + a.UserID
}

// Approver identifies who authorised a payment approval: an administrator, or a payment
// gateway whose API independently confirmed the transaction.
type Approver struct {
	Actor   Actor
	Gateway PaymentMethod
}

func AdminApprover(a Actor) Approver {
	return Approver{Actor: a}
}

func GatewayApprover(a Actor, gateway PaymentMethod) Approver {
	return Approver{Actor: a, Gateway: gateway}
}

func (a Approver) Authorized() bool {
	return a.Actor.IsAdmin() || a.Gateway != ""
}

func (a Approver) String() string {
	if a.Gateway != "" {
		return "gateway:" + string(a.Gateway) + "/" + a.Actor.String()
	}
	return a.Actor.String()
}

package enums

// AuditEvent classifies the mutation kind recorded in an audit log row.
type AuditEvent string

const (
	AuditEventCreated AuditEvent = "created"
	AuditEventUpdated AuditEvent = "updated"
	AuditEventDeleted AuditEvent = "deleted"
)

// String implements fmt.Stringer.
func (e AuditEvent) String() string {
	return string(e)
}

// ActorType identifies who performed an audited mutation.
type ActorType string

const (
	ActorTypeBrand    ActorType = "brand"
	ActorTypeProduct  ActorType = "product"
	ActorTypeCustomer ActorType = "customer"
	ActorTypeSystem   ActorType = "system"
)

// String implements fmt.Stringer.
func (a ActorType) String() string {
	return string(a)
}

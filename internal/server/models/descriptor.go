package models

// Descriptor names the table, key column and ordering column of an entity
// for generic admin listing.
type Descriptor struct {
	Table string
	Key   string
	Order string
}

var (
	UserDescriptor         = Descriptor{Table: "auth_user", Key: "id", Order: "email"}
	SubscriptionDescriptor = Descriptor{Table: "auth_subscription", Key: "id", Order: "kind, item_id"}
)

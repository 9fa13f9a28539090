package multitenancy

import (
	"fmt"
	"strings"
)

// Separator splits the tenant from the local id in a composite
// aggregate id: "tenant-a::cust-1".
const Separator = "::"

// ComposeAggregateID prefixes a local aggregate id with its tenant. An
// empty tenant returns the id unchanged, for single-tenant deployments.
func ComposeAggregateID(tenantID, aggregateID string) string {
	if tenantID == "" {
		return aggregateID
	}
	return tenantID + Separator + aggregateID
}

// DecomposeAggregateID splits a composite id into tenant and local id.
// Ids without a tenant prefix return an empty tenant.
func DecomposeAggregateID(compositeID string) (tenantID, aggregateID string) {
	parts := strings.SplitN(compositeID, Separator, 2)
	if len(parts) == 1 {
		return "", parts[0]
	}
	return parts[0], parts[1]
}

// ValidateTenant checks that a composite id belongs to the expected
// tenant. Ids without a tenant prefix pass.
func ValidateTenant(compositeID, expectedTenantID string) error {
	tenantID, _ := DecomposeAggregateID(compositeID)
	if tenantID != "" && tenantID != expectedTenantID {
		return fmt.Errorf("tenant mismatch: aggregate belongs to %s, context is %s", tenantID, expectedTenantID)
	}
	return nil
}

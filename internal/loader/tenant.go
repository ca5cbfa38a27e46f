package loader

import (
	"context"
	"fmt"

	"snowadmin/internal/snowflake"
	"snowadmin/pkg/errors"
)

// Tenant is an organization's row in the tenant-management registry.
type Tenant struct {
	OrgID     string
	Database  string
	Warehouse string
	Role      string
}

// LookupTenant reads the organization's database, warehouse, and role from
// <sharedDB>.TENANT_MANAGEMENT.ORGANIZATIONS. The org ID is bound; the
// returned names are validated because later statements interpolate them.
func LookupTenant(ctx context.Context, svc *snowflake.Service, sharedDB, orgID string) (*Tenant, error) {
	if orgID == "" {
		return nil, errors.ValidationError("org", orgID, "organization ID is required")
	}
	if err := snowflake.ValidateIdentifier(sharedDB); err != nil {
		return nil, errors.ValidationError("shared_database", sharedDB, err.Error())
	}

	query := fmt.Sprintf(
		"SELECT DATABASE_NAME, WAREHOUSE_NAME, ROLE_NAME FROM %s.TENANT_MANAGEMENT.ORGANIZATIONS WHERE ORG_ID = ?",
		sharedDB)
	rs, err := svc.Query(ctx, query, orgID)
	if err != nil {
		return nil, err
	}
	if len(rs.Rows) == 0 || len(rs.Rows[0]) < 3 {
		return nil, errors.New(errors.ErrCodeTenantNotFound, fmt.Sprintf("Organization %s not found in Snowflake", orgID)).
			WithContext("org_id", orgID).
			WithSuggestions("Check the organization ID, e.g. HCS0001",
				"Run 'snowadmin verify' to list organization databases")
	}

	row := rs.Rows[0]
	tenant := &Tenant{OrgID: orgID, Database: row[0], Warehouse: row[1], Role: row[2]}
	for field, value := range map[string]string{
		"database_name":  tenant.Database,
		"warehouse_name": tenant.Warehouse,
		"role_name":      tenant.Role,
	} {
		if err := snowflake.ValidateIdentifier(value); err != nil {
			return nil, errors.ValidationError(field, value, err.Error()).WithContext("org_id", orgID)
		}
	}
	return tenant, nil
}

// Activate switches the session to the tenant's role, warehouse, and
// database.
func (t *Tenant) Activate(ctx context.Context, svc *snowflake.Service) error {
	if err := svc.Use(ctx, "ROLE", t.Role); err != nil {
		return err
	}
	if err := svc.Use(ctx, "WAREHOUSE", t.Warehouse); err != nil {
		return err
	}
	return svc.Use(ctx, "DATABASE", t.Database)
}

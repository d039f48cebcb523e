// Package api is the HTTP control surface for clawdesk.
//
// # Endpoints
//
// Operator-facing:
//
//	GET    /health                          -> status, gateway connectivity, tenant count
//	POST   /api/tenants                     -> register + provision a tenant, returns API key
//	GET    /api/tenants                     -> list tenants
//	GET    /api/tenants/:id                 -> tenant with accumulated usage
//	PATCH  /api/tenants/:id                 -> status transition and config updates
//	DELETE /api/tenants/:id                 -> deprovision and remove
//	GET    /api/tenants/:id/conversations   -> tenant's conversations
//	POST   /api/tenants/:id/messages        -> send a message as a known tenant
//
// Customer-facing:
//
//	POST /chat -> tenant resolved from the request (header, subdomain, or JWT claim)
//
// # Message path
//
// Both message endpoints share one path: the tenant's bootstrapper chain is
// activated via the tenancy context, the route table picks a model for the
// message, the gateway delivers it into the tenant's session, and usage is
// recorded. If activation fails partway the chain is rolled back and the
// request fails without a tenant context left behind.
//
// Dependencies are consumed through narrow interfaces declared here, so
// handler tests run against in-package fakes.
package api

// Package cli implements the clawdesk command tree.
//
// Commands:
//
//	clawdesk serve   # run the control plane
//	clawdesk health  # query a running server's health endpoint
//
// The serve command wires the gateway client, provisioner, registry,
// conversation store, tenancy bootstrapper chain, resolver chain, and HTTP
// surface, then serves until interrupted.
package cli

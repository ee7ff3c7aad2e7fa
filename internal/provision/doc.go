// Package provision drives the infrastructure-as-code tool that deploys the
// archive. Only exit status and textual output are part of the contract.
package provision

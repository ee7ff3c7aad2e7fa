// Package orchestration wires the deployer's components into pipeline runs.
//
// # Workflow
//
// Deploy executes the following stages in order, stopping at the first
// failure:
//  1. resolve - locate the workspace and load deployer.yaml
//  2. clean - remove the previous staging directory and archive
//  3. install - install dependencies into staging (cross-platform, then host-native)
//  4. assemble - copy sources into staging, write the archive, copy it to the provisioning root
//  5. publish - optional upload of the archive to object storage
//  6. gate - require the deployment configuration file
//  7. provision - terraform init and apply
//
// Build stops after assemble, Clean runs resolve and clean, and Publish
// uploads an archive produced by an earlier build.
//
// # Usage
//
//	d := orchestration.New(settings, orchestration.Options{Runner: r, Console: c})
//	report, err := d.Deploy(ctx, orchestration.DeployOptions{})
//
// The staging directory is removed when a run ends, whether it succeeded or
// not, unless build.keep_staging is set.
package orchestration

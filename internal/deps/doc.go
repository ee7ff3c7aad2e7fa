// Package deps installs the application's third-party Python dependencies
// into the staging directory.
//
// Installation walks an explicit, ordered list of strategies and stops at
// the first that succeeds. The default list tries a cross-platform install
// pinned to the Lambda runtime ABI first and falls back once to a
// host-native install. A fallback success is reported as degraded because
// the resulting wheels may not load on the target platform.
package deps

// Package retry retries operations that fail transiently.
//
// [Do] backs off exponentially between attempts and stops early on
// errors wrapped with [Permanent] or when the context is done. It is used
// for object storage uploads.
package retry

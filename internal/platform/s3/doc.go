// Package s3 publishes deployment archives to S3-compatible object storage.
//
// Objects are content-addressed: the key embeds the archive digest, so a
// re-upload of an unchanged build is detected and skipped.
package s3

// Package platform contains filesystem and environment glue: per-job work
// directories, produced-file discovery, free-space probing, cookie files for
// the fetch engine and URL extraction from chat text.
package platform

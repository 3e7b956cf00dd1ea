// Package cache implements access to the cached bootstrap manifest.
//
// The FileRepository reads the raw manifest payload from the configuration
// directory and judges its freshness by modification time alone. The payload
// itself is written by the downloader, so a fetch replaces it atomically.
package cache

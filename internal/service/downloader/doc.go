// Package downloader fetches a remote artifact and persists it locally with
// bounded, jittered retries.
//
// A failed attempt is retried after a random whole number of seconds drawn
// from [3, 10] so many machines hitting a shared endpoint do not retry in
// lockstep. Callers may allow a stale fallback: when the destination already
// exists, the first failure keeps the existing file instead of retrying.
package downloader

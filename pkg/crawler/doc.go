// Package crawler wires the pipeline together: sign in, open the order
// history, expand every page, extract product images and download them.
//
// A run always produces its output directory with download_info.json (once
// downloading starts) and session_log.json, whatever the outcome. Only
// failing to create the output directory is returned as an error; every
// other failure is described by Result.Outcome.
package crawler

// Package server exposes reviews over HTTP. A client posts a unified diff
// and receives the review comments as a JSON array.
package server

// Package web embeds the listener and controller pages.
package web

import "embed"

//go:embed static
var StaticFiles embed.FS

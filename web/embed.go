package web

import "embed"

// StaticFiles embeds the single-page UI served at "/".
//
//go:embed static
var StaticFiles embed.FS

package pubhost

import "embed"

// EmbeddedAssets contains static assets shipped with pubhost:
// app.css and editor.js.
//
//go:embed embedded/*
var EmbeddedAssets embed.FS

package web

import "embed"

// Static holds the map page served at the site root
//
//go:embed static/*.html static/js/*.js
var Static embed.FS

package api

import "embed"

//go:embed pages/*.html
var pagesFS embed.FS

package html

import "embed"

//go:embed *.html
var HTML embed.FS

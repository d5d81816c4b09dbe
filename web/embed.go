package web

import "embed"

// Content holds the embedded map UI (index.html, app.js, styles.css).
//
//go:embed index.html app.js styles.css
var Content embed.FS

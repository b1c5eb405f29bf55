package chatscreen

import "embed"

// TemplateFS contains the embedded HTML templates used for rendering the chat screen. They are organized
// into layout, page and partial directories so handlers can re-render fragments on their own.
//
//go:embed templates/*
var TemplateFS embed.FS

// StaticFS contains the embedded static assets (script and stylesheet) served under /static/.
//
//go:embed static/*
var StaticFS embed.FS

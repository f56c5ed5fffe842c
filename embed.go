package assistant

import "embed"

// TemplateFS contains the embedded HTML templates used for rendering the chat
// interface.
//
//go:embed templates/*
var TemplateFS embed.FS

// StaticFS contains the embedded static assets (JavaScript and CSS) required by
// the chat interface.
//
//go:embed static/*
var StaticFS embed.FS

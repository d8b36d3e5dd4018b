// Package web holds the page templates and browser assets of the planner UI.
package web

import "embed"

// TemplatesFS holds the page and partial templates, named by file name.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS holds the stylesheet and the drag-and-drop script.
//
//go:embed static/*
var StaticFS embed.FS

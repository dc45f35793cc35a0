// Package webui provides the embedded sampling page served next to the API.
package webui

import "embed"

//go:embed static/*
var staticFS embed.FS

// Index returns the sampling page.
func Index() []byte {
	b, err := staticFS.ReadFile("static/index.html")
	if err != nil {
		panic(err)
	}
	return b
}

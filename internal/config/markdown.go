package config

import "regexp"

const (
	MarkdownRenderer = "mmark"
)

var (
	// Callouts as they appear in chroma's escaped output: // <<1>>
	RegexCallout = regexp.MustCompile(`//\s*&lt;&lt;(\d+)&gt;&gt;`)
)

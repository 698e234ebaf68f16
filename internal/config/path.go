package config

const (
	//? These paths must match the paths in the embed directive

	TemplatesLocalDir = "templates"

	TemplateLayout = "layout.html"
	TemplateList   = "drafts.html"
	TemplateNotice = "notice.html"
	TemplateDiff   = "diff.html"
)

const (
	PathAPIDrafts       = "/api/drafts"
	PathAPIDraft        = "/api/draft"
	PathAPIDraftTicket  = "/api/draft/ticket"
	PathAPIDraftPublish = "/api/draft/publish"
	PathAPIDraftForce   = "/api/draft/force-publish"
	PathPreview         = "/partials/draft/preview"
	PathDrafts          = "/drafts"
	PathDraftsDelete    = "/drafts/delete"
	PathDraftsPublish   = "/drafts/publish"
	PathDraftsForce     = "/drafts/force-publish"
	PathSyntaxCSS       = "/syntax.css"
	PathSSE             = "/sse"
	PathAuthChallenge   = "/auth/challenge"
	PathAuthVerify      = "/auth/verify"
)

const DefaultSyntaxTheme = "gruvbox"

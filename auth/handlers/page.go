package handlers

import (
	"html/template"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"

	"github.com/Yulian302/lfusys-services-handshake/handshake/callback"
)

var callbackPage = template.Must(template.New("callback").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{if .OK}}Signed in{{else}}Sign-in failed{{end}}</title></head>
<body data-kind="{{.Kind}}" data-provider="{{.Provider}}"{{if .ReportURL}} data-report="{{.ReportURL}}"{{end}}>
{{if .OK}}<p>Signed in. This window will close automatically.</p>
{{else}}<p>{{.Detail}}</p>
<p>This window will close automatically.</p>{{end}}
<script>
function closeSoon() { setTimeout(function () { window.close(); }, {{.CloseAfterMs}}); }
{{if .ReportURL}}fetch({{.ReportURL}}, { method: "POST", credentials: "same-origin" }).finally(closeSoon);
{{else}}closeSoon();
{{end}}</script>
</body>
</html>
`))

// closingPage records when the popup should close itself.
type closingPage struct {
	delay time.Duration
}

func (p *closingPage) CloseAfter(d time.Duration) {
	p.delay = d
}

type pageData struct {
	OK           bool
	Kind         string
	Provider     string
	Detail       string
	CloseAfterMs int64
	// ReportURL is claimed by the page once loaded to release the outcome.
	ReportURL string
}

func renderCallbackPage(c *gin.Context, status int, res callback.Result, page *closingPage, reportURL string) {
	c.Render(status, render.HTML{
		Template: callbackPage,
		Name:     "callback",
		Data: pageData{
			OK:           res.OK(),
			Kind:         string(res.Kind),
			Provider:     res.Provider,
			Detail:       res.Detail,
			CloseAfterMs: page.delay.Milliseconds(),
			ReportURL:    reportURL,
		},
	})
}

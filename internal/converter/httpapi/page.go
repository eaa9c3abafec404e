package httpapi

import (
	"bytes"
	"html/template"
	"net/http"

	"github.com/romariotrain/ebook-converter/internal/converter/formats"
	"github.com/romariotrain/ebook-converter/internal/converter/models"
)

type pageData struct {
	Session  SessionResponse
	View     StatusView
	Catalog  []formats.Format
	Accept   string
	Notice   string
	Refresh  bool
	CanStart bool
}

// Page renders the converter UI for the caller's session.
func (h *Handler) Page(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeErrorJSON(w, http.StatusNotFound, "not found")
		return
	}
	if r.Method != http.MethodGet {
		writeErrorJSON(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	h.withSession(func(w http.ResponseWriter, r *http.Request, sess *models.Session) {
		data := pageData{
			Session:  toSessionResponse(sess),
			View:     Present(sess),
			Catalog:  formats.Catalog(),
			Accept:   formats.AcceptAttribute(),
			Notice:   r.URL.Query().Get("notice"),
			Refresh:  sess.Status == models.ConvertingStatus,
			CanStart: canStart(sess),
		}

		var buf bytes.Buffer
		if err := pageTemplate.Execute(&buf, data); err != nil {
			h.fail(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusOK)
		_, _ = buf.WriteTo(w)
	})(w, r)
}

var pageTemplate = template.Must(template.New("page").Parse(pageHTML))

const pageHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
{{if .Refresh}}<meta http-equiv="refresh" content="1">{{end}}
<title>E-book Format Converter</title>
<style>
body { font-family: system-ui, sans-serif; background: #eef2ff; margin: 0; color: #111827; }
main { max-width: 56rem; margin: 3rem auto; background: #fff; border-radius: 1rem; padding: 2rem; box-shadow: 0 10px 30px rgba(0,0,0,.08); }
h1 { text-align: center; }
.lead { text-align: center; color: #4b5563; }
.choosers { display: grid; grid-template-columns: 1fr auto 1fr; gap: 2rem; align-items: start; }
.chooser button { display: block; width: 100%; margin: .25rem 0; padding: .6rem; border: 2px solid #e5e7eb; border-radius: .5rem; background: #fff; cursor: pointer; text-align: left; }
.chooser button.selected { border-color: #3b82f6; background: #eff6ff; color: #1d4ed8; }
.arrow { align-self: center; font-size: 1.5rem; color: #9ca3af; }
#dropzone { margin-top: 2rem; border: 2px dashed #d1d5db; border-radius: .75rem; padding: 2rem; text-align: center; cursor: pointer; }
#dropzone.active { border-color: #3b82f6; background: #eff6ff; }
.file { display: flex; justify-content: space-between; align-items: center; margin-top: 1rem; padding: .75rem 1rem; background: #f9fafb; border-radius: .5rem; }
.status { margin-top: 1.5rem; padding: 1rem; border-radius: .5rem; display: flex; justify-content: space-between; align-items: center; }
.status.converting { background: #eff6ff; color: #1d4ed8; }
.status.success { background: #f0fdf4; color: #15803d; }
.status.error { background: #fef2f2; color: #b91c1c; }
.notice { margin-top: 1rem; padding: .75rem 1rem; background: #fffbeb; color: #92400e; border-radius: .5rem; }
.start { margin-top: 2rem; text-align: center; }
.start button { padding: .75rem 2rem; border: 0; border-radius: .5rem; color: #fff; background: #2563eb; font-weight: 600; cursor: pointer; }
.start button:disabled { background: #9ca3af; cursor: not-allowed; }
</style>
</head>
<body>
<main>
<h1>E-book Format Converter</h1>
<p class="lead">Convert your e-books between popular formats including EPUB, MOBI, PDF, TXT, and FB2.</p>

<div class="choosers">
  <form class="chooser" method="post" action="/formats">
    <label>Convert from:</label>
    {{range .Catalog}}<button type="submit" name="source" value="{{.ID}}"{{if eq .ID $.Session.SourceFormat}} class="selected"{{end}}>{{.Name}} <small>{{.Extension}}</small></button>{{end}}
  </form>
  <div class="arrow">&rarr;</div>
  <form class="chooser" method="post" action="/formats">
    <label>Convert to:</label>
    {{range .Catalog}}<button type="submit" name="target" value="{{.ID}}"{{if eq .ID $.Session.TargetFormat}} class="selected"{{end}}>{{.Name}} <small>{{.Extension}}</small></button>{{end}}
  </form>
</div>

<form id="upload" method="post" action="/file" enctype="multipart/form-data">
  <label id="dropzone">
    <input id="file" type="file" name="file" accept="{{.Accept}}" hidden>
    <p>Drag &amp; drop your e-book here, or click to select</p>
    <p><small>Supported formats: EPUB, MOBI, PDF, TXT, FB2</small></p>
  </label>
</form>

{{with .Session.File}}
<div class="file">
  <div><strong>{{.Name}}</strong><br><small>{{.SizeHuman}}</small></div>
  <form method="post" action="/file/clear"><button type="submit" aria-label="Remove file">&times;</button></form>
</div>
{{end}}

{{if .Notice}}<div class="notice">{{.Notice}}</div>{{end}}

{{if .View.Visible}}
<div class="status {{.View.State}}">
  <span>{{.View.Message}}</span>
  {{if .View.CanDownload}}<a href="/download" download>Download</a>{{end}}
</div>
{{end}}

<form class="start" method="post" action="/convert">
  <button type="submit"{{if not .CanStart}} disabled{{end}}>{{if eq .View.State "converting"}}Converting...{{else}}Convert Now{{end}}</button>
</form>
</main>
<script>
(function () {
  var zone = document.getElementById('dropzone');
  var input = document.getElementById('file');
  var form = document.getElementById('upload');
  input.addEventListener('change', function () { if (input.files.length) form.submit(); });
  ['dragenter', 'dragover'].forEach(function (ev) {
    zone.addEventListener(ev, function (e) { e.preventDefault(); zone.classList.add('active'); });
  });
  ['dragleave', 'drop'].forEach(function (ev) {
    zone.addEventListener(ev, function (e) { e.preventDefault(); zone.classList.remove('active'); });
  });
  zone.addEventListener('drop', function (e) {
    if (!e.dataTransfer.files.length) return;
    var dt = new DataTransfer();
    dt.items.add(e.dataTransfer.files[0]);
    input.files = dt.files;
    form.submit();
  });
})();
</script>
</body>
</html>
`

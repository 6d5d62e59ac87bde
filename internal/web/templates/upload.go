// Package templates renders the HTML views of the ingest service as templ
// components.
package templates

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
)

// UploadPageParams configures the upload page.
type UploadPageParams struct {
	MaxFileSize   string
	Quota         string
	MaxZipEntries int
	Fixity        string
	RequireAPIKey bool
}

// UploadPage renders the upload form. The form posts to /api/ingest and
// prints the JSON answer below it.
func UploadPage(p UploadPageParams) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, pageHead); err != nil {
			return err
		}

		entries := "unlimited"
		if p.MaxZipEntries > 0 {
			entries = fmt.Sprint(p.MaxZipEntries)
		}
		_, err := fmt.Fprintf(w, `<main>
<h1>Upload a file</h1>
<dl class="limits">
<dt>Maximum file size</dt><dd>%s</dd>
<dt>Storage quota</dt><dd>%s</dd>
<dt>Maximum files per zip</dt><dd>%s</dd>
<dt>Fixity</dt><dd>%s</dd>
</dl>
<p class="hint">Zip archives are unpacked, gzip files are decompressed, shapefile sets and BagIt packages are kept together.</p>
<form id="upload" method="post" action="/api/ingest" enctype="multipart/form-data">
`,
			templ.EscapeString(p.MaxFileSize),
			templ.EscapeString(p.Quota),
			templ.EscapeString(entries),
			templ.EscapeString(p.Fixity),
		)
		if err != nil {
			return err
		}

		if p.RequireAPIKey {
			if _, err := io.WriteString(w, `<label>API key <input type="password" name="api_key" autocomplete="off" required></label>
`); err != nil {
				return err
			}
		}

		_, err = io.WriteString(w, `<label>Content type <input type="text" name="content_type" placeholder="detected"></label>
<label>Checksum <input type="text" name="checksum"></label>
<label>Checksum type <select name="checksum_type"><option>MD5</option><option>SHA-1</option><option>SHA-256</option><option>SHA-512</option></select></label>
<label>File <input type="file" name="file" required></label>
<button type="submit">Upload</button>
</form>
<div id="result"></div>
</main>
`+pageScript+pageFoot)
		return err
	})
}

// ErrorAlert renders an error message fragment.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, `<div class="alert" role="alert"><strong>%s</strong>`, templ.EscapeString(message))
		if err != nil {
			return err
		}
		if action != "" {
			if _, err := fmt.Fprintf(w, ` <span>%s</span>`, templ.EscapeString(action)); err != nil {
				return err
			}
		}
		if code != "" {
			if _, err := fmt.Fprintf(w, ` <code>%s</code>`, templ.EscapeString(code)); err != nil {
				return err
			}
		}
		_, err = io.WriteString(w, "</div>")
		return err
	})
}

const pageHead = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Ingest</title>
<style>
body{font-family:system-ui,sans-serif;max-width:44rem;margin:2rem auto;padding:0 1rem}
label{display:block;margin:.5rem 0}
dl.limits{display:grid;grid-template-columns:auto 1fr;gap:.25rem 1rem}
.alert{border:1px solid #c00;background:#fee;padding:.5rem;margin-top:1rem}
pre{background:#f4f4f4;padding:.5rem;overflow:auto}
</style>
</head>
<body>
`

const pageScript = `<script>
document.getElementById("upload").addEventListener("submit", async (ev) => {
  ev.preventDefault();
  const form = ev.target;
  const data = new FormData(form);
  const headers = {"Accept": "application/json"};
  const key = data.get("api_key");
  if (key) { headers["X-API-Key"] = key; data.delete("api_key"); }
  const file = data.get("file");
  data.delete("file");
  data.append("file", file);
  const res = await fetch(form.action, {method: "POST", body: data, headers});
  const out = document.getElementById("result");
  out.textContent = "";
  const pre = document.createElement("pre");
  pre.textContent = res.status + "\n" + JSON.stringify(await res.json(), null, 2);
  out.appendChild(pre);
});
</script>
`

const pageFoot = `</body>
</html>
`

package dashboard

import (
	"fmt"
	"html"
)

const connectPageStyle = `
    body {
      font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
      background: #101318;
      color: #e8eaed;
      display: flex;
      align-items: center;
      justify-content: center;
      height: 100vh;
      margin: 0;
    }
    .card {
      background: #1b1f27;
      border-radius: 12px;
      padding: 48px 56px;
      text-align: center;
      box-shadow: 0 8px 30px rgba(0, 0, 0, 0.4);
    }
    .mark { font-size: 48px; }
    h1 { font-size: 22px; margin: 16px 0 8px; }
    p { color: #9aa0a6; margin: 0; }`

// connectSuccessHTML is served after a completed callback exchange.
const connectSuccessHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <title>PulseBoard - Connected</title>
  <style>` + connectPageStyle + `
  </style>
</head>
<body>
  <div class="card">
    <div class="mark">&#10003;</div>
    <h1>WHOOP account connected</h1>
    <p>You can close this window and return to the dashboard.</p>
  </div>
</body>
</html>`

// connectFailurePage renders the callback failure page with the given detail.
// The detail is HTML-escaped; it may contain provider-supplied text.
func connectFailurePage(detail string) []byte {
	page := `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <title>PulseBoard - Connection failed</title>
  <style>` + connectPageStyle + `
  </style>
</head>
<body>
  <div class="card">
    <div class="mark">&#10007;</div>
    <h1>Could not connect your WHOOP account</h1>
    <p>%s</p>
    <p>Return to the dashboard and try again.</p>
  </div>
</body>
</html>`
	return fmt.Appendf(nil, page, html.EscapeString(detail))
}

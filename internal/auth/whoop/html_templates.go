package whoop

// loginSuccessHTML is served once the authorization redirect has been
// captured. The terminal completes the exchange; the browser tab is done.
const loginSuccessHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <title>PulseBoard - Connected</title>
  <style>
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
    .check { font-size: 48px; }
    h1 { font-size: 22px; margin: 16px 0 8px; }
    p { color: #9aa0a6; margin: 0; }
  </style>
</head>
<body>
  <div class="card">
    <div class="check">&#10003;</div>
    <h1>WHOOP account connected</h1>
    <p>You can close this window and return to the terminal.</p>
  </div>
</body>
</html>`

package email

// Email templates in HTML format

// BaseTemplate is the base layout for all emails
const BaseTemplate = `
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <style>
        body {
            margin: 0;
            padding: 0;
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif;
            background-color: #f6f7fb;
            color: #1a1a2e;
        }
        .container {
            max-width: 600px;
            margin: 0 auto;
            padding: 40px 20px;
        }
        .card {
            background: #ffffff;
            border-radius: 12px;
            padding: 32px;
            border: 1px solid #e4e6ef;
        }
        .logo {
            text-align: center;
            margin-bottom: 24px;
        }
        .logo h1 {
            font-size: 28px;
            color: #4f46e5;
            margin: 0;
        }
        h2 {
            color: #1a1a2e;
            font-size: 24px;
            margin: 0 0 16px;
        }
        p {
            color: #555770;
            font-size: 16px;
            line-height: 1.6;
            margin: 0 0 16px;
        }
        .highlight {
            color: #1a1a2e;
            font-weight: 600;
        }
        .btn {
            display: inline-block;
            background: #4f46e5;
            color: #ffffff !important;
            text-decoration: none;
            padding: 14px 28px;
            border-radius: 8px;
            font-weight: 600;
        }
        .footer {
            text-align: center;
            color: #9a9cb0;
            font-size: 13px;
            margin-top: 24px;
        }
    </style>
</head>
<body>
    <div class="container">
        <div class="card">
            <div class="logo"><h1>TTS Reader</h1></div>
            {{.Content}}
        </div>
        <div class="footer">
            <p>Thanks,<br>TTS Reader Team</p>
        </div>
    </div>
</body>
</html>
`

// ExpiryWarningTemplate warns a user about credits expiring soon.
// Data: Username, Credits, DaysRemaining, ExpiresAt, LoginURL.
const ExpiryWarningTemplate = `
<h2>Credit Expiration Warning</h2>
<p>Hi {{.Username}},</p>
<p>You have <span class="highlight">{{.Credits}} credits</span> that will expire in <span class="highlight">{{.DaysRemaining}} days</span>.</p>
<p>Expiration date: <span class="highlight">{{.ExpiresAt}}</span></p>
<p>Use your credits before they expire to get the most out of your purchase!</p>
<p><a class="btn" href="{{.LoginURL}}">Start using your credits</a></p>
`

// CreditsExpiredTemplate notifies a user that credits have expired.
// Data: Username, CreditsExpired, PricingURL.
const CreditsExpiredTemplate = `
<h2>Credits Expired</h2>
<p>Hi {{.Username}},</p>
<p><span class="highlight">{{.CreditsExpired}} credits</span> have expired from your account.</p>
<p>These credits were purchased more than one year ago and are no longer available.</p>
<p><a class="btn" href="{{.PricingURL}}">Purchase new credits</a></p>
`

package mail

import (
	htmltemplate "html/template"
	texttemplate "text/template"
)

var resetHTML = htmltemplate.Must(htmltemplate.New("password_reset").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="UTF-8"><title>Reset Your Password</title></head>
<body style="margin:0;padding:0;font-family:Arial,sans-serif;background-color:#f4f4f4;">
  <table role="presentation" style="width:100%;border-collapse:collapse;">
    <tr><td align="center" style="padding:40px 0;">
      <table role="presentation" style="width:600px;background-color:#ffffff;border-radius:8px;">
        <tr><td style="padding:40px 40px 20px;text-align:center;">
          <h1 style="margin:0;color:#333333;font-size:24px;">Reset Your Password</h1>
        </td></tr>
        <tr><td style="padding:0 40px 20px;color:#666666;font-size:16px;">
          We received a request to reset your password. Click the button below to create a new password:
        </td></tr>
        <tr><td style="padding:0 40px 30px;text-align:center;">
          <a href="{{.URL}}" style="display:inline-block;padding:14px 40px;background-color:#007bff;color:#ffffff;text-decoration:none;border-radius:4px;">Reset Password</a>
        </td></tr>
        <tr><td style="padding:0 40px 20px;color:#666666;font-size:14px;">
          If the button doesn't work, copy and paste this link into your browser:<br>
          <a href="{{.URL}}" style="color:#007bff;word-break:break-all;">{{.URL}}</a>
        </td></tr>
        <tr><td style="padding:20px 40px;background-color:#f8f9fa;color:#666666;font-size:14px;">
          <strong>Important:</strong> This link will expire in {{.Expiry}} for security reasons.
        </td></tr>
        <tr><td style="padding:20px 40px 40px;color:#999999;font-size:12px;">
          If you didn't request a password reset, you can safely ignore this email. Your password will remain unchanged.
        </td></tr>
      </table>
    </td></tr>
  </table>
</body>
</html>`))

var resetText = texttemplate.Must(texttemplate.New("password_reset").Parse(`Reset Your Password

We received a request to reset your password. Open the link below to create a new password:

{{.URL}}

This link will expire in {{.Expiry}} for security reasons.

If you didn't request a password reset, you can safely ignore this email. Your password will remain unchanged.
`))

var otpHTML = htmltemplate.Must(htmltemplate.New("otp").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="UTF-8"><title>Your verification code</title></head>
<body style="margin:0;padding:0;font-family:Arial,sans-serif;background-color:#f4f4f4;">
  <table role="presentation" style="width:100%;border-collapse:collapse;">
    <tr><td align="center" style="padding:40px 0;">
      <table role="presentation" style="width:600px;background-color:#ffffff;border-radius:8px;">
        <tr><td style="padding:40px 40px 20px;text-align:center;">
          <h1 style="margin:0;color:#333333;font-size:24px;">{{.Purpose}}</h1>
        </td></tr>
        <tr><td style="padding:0 40px 20px;text-align:center;color:#666666;font-size:16px;">Use this code to continue:</td></tr>
        <tr><td style="padding:0 40px 30px;text-align:center;">
          <span style="display:inline-block;padding:14px 28px;font-size:32px;letter-spacing:8px;background-color:#f8f9fa;border-radius:4px;">{{.Code}}</span>
        </td></tr>
        <tr><td style="padding:20px 40px 40px;color:#999999;font-size:12px;">
          The code expires in {{.Expiry}}. If you didn't request it, you can ignore this email.
        </td></tr>
      </table>
    </td></tr>
  </table>
</body>
</html>`))

var otpText = texttemplate.Must(texttemplate.New("otp").Parse(`{{.Purpose}}

Your code is {{.Code}}

The code expires in {{.Expiry}}. If you didn't request it, you can ignore this email.
`))

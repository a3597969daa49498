package email

import (
	"fmt"
	"strings"

	"github.com/example/marketplace-engine/internal/notification"
)

// severityColor keys the header color to the message severity.
func severityColor(s notification.Severity) string {
	switch s {
	case notification.SeverityWarning:
		return "#e67e22"
	case notification.SeverityCritical:
		return "#c0392b"
	default:
		return "#667eea"
	}
}

// BuildBody renders a notification as a minimal HTML email.
func BuildBody(severity notification.Severity, title string, lines []string) string {
	var paragraphs strings.Builder
	for _, line := range lines {
		paragraphs.WriteString(fmt.Sprintf(`<p style="margin: 10px 0;">%s</p>`, line))
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
	<div style="background: %s; padding: 24px; border-radius: 10px 10px 0 0;">
		<h1 style="color: white; margin: 0; font-size: 20px;">%s</h1>
	</div>
	<div style="background: #fff; padding: 24px; border: 1px solid #eee; border-top: none; border-radius: 0 0 10px 10px;">
		%s
		<hr style="border: none; border-top: 1px solid #eee; margin: 24px 0;">
		<p style="font-size: 12px; color: #999; margin-bottom: 0;">This is an automated message, please do not reply.</p>
	</div>
</body>
</html>`, severityColor(severity), title, paragraphs.String())
}

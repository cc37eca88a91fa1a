package web

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/novinshop/paycore/pkg/payments"
)

// renderResultPage is the fallback surface when no frontend base URL is
// configured: a small self-contained page the payer lands on after the
// gateway redirect.
func renderResultPage(c *gin.Context, outcome *payments.CallbackOutcome) {
	title, icon, color := "Payment Failed", "✗", "#b91c1c"
	message := fmt.Sprintf("Payment for order %s was not completed.", outcome.OrderID)
	if outcome.Success {
		title, icon, color = "Payment Successful", "✓", "#15803d"
		message = fmt.Sprintf("Payment for order %s completed.", outcome.OrderID)
		if outcome.RefID != "" {
			message += fmt.Sprintf(" Reference: %s.", outcome.RefID)
		}
	}

	html := fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>%s</title>
</head>
<body style="font-family:sans-serif;background:#f3f4f6;display:flex;align-items:center;justify-content:center;height:100vh;margin:0">
    <div style="background:#fff;border-radius:8px;box-shadow:0 1px 4px rgba(0,0,0,.15);padding:32px;max-width:420px;text-align:center">
        <div style="font-size:40px;color:%s">%s</div>
        <h3 style="margin:12px 0 8px">%s</h3>
        <p style="color:#6b7280;font-size:14px">%s</p>
        <button onclick="window.close()" style="margin-top:12px;padding:8px 24px;border:0;border-radius:4px;background:#2563eb;color:#fff;cursor:pointer">Close Window</button>
    </div>
</body>
</html>`, title, color, icon, title, message)

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.String(http.StatusOK, html)
}

package mailer

import (
	"bytes"
	"fmt"
	"html/template"
)

var templates = template.Must(template.New("mail").Parse(`
{{define "order_confirmed"}}<p>Hi {{.Name}},</p>
<p>Thank you! Order <strong>#{{.OrderNumber}}</strong> is confirmed for <strong>{{.DeliveryDate}}</strong>.</p>
<table>{{range .Lines}}<tr><td>{{.Quantity}} x {{.Name}}{{if .VariantName}} ({{.VariantName}}){{end}}</td><td>{{.Amount}}</td></tr>{{end}}</table>
<p>Delivery: {{.DeliveryFee}}{{if .Discount}}<br>Discount: -{{.Discount}}{{end}}<br>Total paid: <strong>{{.Paid}}</strong></p>{{end}}
{{define "order_status"}}<p>Hi {{.Name}},</p>
<p>Order <strong>#{{.OrderNumber}}</strong> is now <strong>{{.Status}}</strong>.</p>{{end}}
{{define "order_cancelled"}}<p>Hi {{.Name}},</p>
<p>Order <strong>#{{.OrderNumber}}</strong> has been cancelled.{{if .Refunded}} A refund of {{.Refunded}} is on its way.{{end}}</p>{{end}}
{{define "low_stock"}}<p>The following items are running low:</p>
<ul>{{range .Items}}<li>{{with .Date}}{{.}} {{end}}{{.Name}}{{if .VariantName}} ({{.VariantName}}){{end}}: {{.Qty}}</li>{{end}}</ul>{{end}}
{{define "export_bundle"}}<p>Attached are the production reports for <strong>{{.Date}}</strong> ({{.Orders}} orders).</p>{{end}}
`))

// Render executes a named template with data.
func Render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

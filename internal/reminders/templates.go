package reminders

import (
	"fmt"
	"strings"

	"github.com/osteele/liquid"

	"github.com/angelmondragon/recovero-backend/pkg/db/models"
	"github.com/angelmondragon/recovero-backend/pkg/types"
)

const emailTemplate = `<html>
  <body style="font-family: Arial, sans-serif; background: #f5f5f5; padding: 20px;">
    <div style="max-width: 600px; background: #fff; padding: 20px; border-radius: 10px;">
      <h2>{% if name != "" %}Hi {{ name | escape }}, you{% else %}You{% endif %} left something behind!</h2>
      <p>Looks like you forgot items in your cart at {{ store | escape }}. Complete your order before they're gone!</p>
      {% if items.size > 0 %}
      <table style="width: 100%; border-collapse: collapse;">
        <tr><th align="left">Item</th><th align="right">Qty</th><th align="right">Total</th></tr>
        {% for item in items %}
        <tr><td>{{ item.name | escape }}</td><td align="right">{{ item.quantity }}</td><td align="right">{{ item.total }} {{ currency }}</td></tr>
        {% endfor %}
        <tr><td colspan="2"><strong>Total</strong></td><td align="right"><strong>{{ total }} {{ currency }}</strong></td></tr>
      </table>
      {% endif %}
      {% if coupon != "" %}
      <p>Use coupon <strong>{{ coupon | escape }}</strong> to save {{ coupon_amount }} {{ currency }} on this order. It expires on {{ coupon_expires }}.</p>
      {% endif %}
      <a href="{{ link }}" style="display:inline-block; background:#0073aa; color:#fff; padding:10px 20px; border-radius:5px; text-decoration:none;">Recover My Cart</a>
      <p>Thanks for shopping with us!</p>
    </div>
  </body>
</html>`

const emailTextTemplate = `{% if name != "" %}Hi {{ name }}, you{% else %}You{% endif %} left something behind!
{% for item in items %}- {{ item.name }} x {{ item.quantity }}
{% endfor %}Total: {{ total }} {{ currency }}
{% if coupon != "" %}Coupon: {{ coupon }}
{% endif %}Recover your cart: {{ link }}`

const whatsappTemplate = `Hi from {{ store }}! You left items in your cart: {{ summary }}. Complete your order: {{ link }}`

// Content is the data every reminder template renders from.
type Content struct {
	Name     string
	Store    string
	Items    types.LineItems
	Currency string
	Link     string
	Coupon   *models.RecoveryCoupon
}

// Rendered is a ready-to-send email body pair.
type Rendered struct {
	HTML string
	Text string
}

// Templates renders reminder messages with liquid.
type Templates struct {
	email     *liquid.Template
	emailText *liquid.Template
	whatsapp  *liquid.Template
}

func NewTemplates() (*Templates, error) {
	engine := liquid.NewEngine()
	email, err := engine.ParseString(emailTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse email template: %w", err)
	}
	emailText, err := engine.ParseString(emailTextTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse email text template: %w", err)
	}
	whatsapp, err := engine.ParseString(whatsappTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse whatsapp template: %w", err)
	}
	return &Templates{email: email, emailText: emailText, whatsapp: whatsapp}, nil
}

// Email renders the recovery email. A non-nil coupon adds the code block.
func (t *Templates) Email(content Content) (Rendered, error) {
	bindings := content.bindings()
	html, err := t.email.RenderString(bindings)
	if err != nil {
		return Rendered{}, fmt.Errorf("render email: %w", err)
	}
	text, err := t.emailText.RenderString(bindings)
	if err != nil {
		return Rendered{}, fmt.Errorf("render email text: %w", err)
	}
	return Rendered{HTML: html, Text: text}, nil
}

func (t *Templates) WhatsApp(content Content) (string, error) {
	out, err := t.whatsapp.RenderString(content.bindings())
	if err != nil {
		return "", fmt.Errorf("render whatsapp: %w", err)
	}
	return out, nil
}

func (c Content) bindings() liquid.Bindings {
	items := make([]map[string]any, 0, len(c.Items))
	summary := make([]string, 0, len(c.Items))
	for _, item := range c.Items {
		name := itemName(item)
		items = append(items, map[string]any{
			"name":     name,
			"quantity": item.Quantity,
			"price":    item.Price.StringFixed(2),
			"total":    item.LineTotal().StringFixed(2),
			"image":    item.Image,
		})
		summary = append(summary, fmt.Sprintf("%s x %d", name, item.Quantity))
	}
	bindings := liquid.Bindings{
		"name":           strings.TrimSpace(c.Name),
		"store":          c.Store,
		"items":          items,
		"summary":        strings.Join(summary, ", "),
		"total":          c.Items.Total().StringFixed(2),
		"currency":       c.Currency,
		"link":           c.Link,
		"coupon":         "",
		"coupon_amount":  "",
		"coupon_expires": "",
	}
	if c.Coupon != nil {
		bindings["coupon"] = c.Coupon.Code
		bindings["coupon_amount"] = c.Coupon.Amount.StringFixed(2)
		bindings["coupon_expires"] = c.Coupon.ExpiresAt.Format("2006-01-02")
	}
	return bindings
}

func itemName(item types.LineItem) string {
	if name := strings.TrimSpace(item.Name); name != "" {
		return name
	}
	return fmt.Sprintf("Product %d", item.ProductID)
}

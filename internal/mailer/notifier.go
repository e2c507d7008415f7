package mailer

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/url"
	"strings"

	"github.com/MrEthical07/storefront"
)

var _ storefront.Notifier = (*LinkNotifier)(nil)

var (
	verifyTemplate = template.Must(template.New("verify").Parse(
		`<p>Hello {{.Name}},</p>
<p>Please confirm your email address: <a href="{{.Link}}">{{.Link}}</a></p>
<p>The link is valid for 24 hours.</p>`))

	resetTemplate = template.Must(template.New("reset").Parse(
		`<p>Hello {{.Name}},</p>
<p>Reset your password using this link: <a href="{{.Link}}">{{.Link}}</a></p>
<p>The link is valid for one hour. If you did not ask for it, ignore this email.</p>`))
)

type linkData struct {
	Name string
	Link string
}

// LinkNotifier renders account links into emails. It implements
// storefront.Notifier.
type LinkNotifier struct {
	mailer      Mailer
	frontendURL string
}

func NewLinkNotifier(m Mailer, frontendURL string) *LinkNotifier {
	return &LinkNotifier{mailer: m, frontendURL: strings.TrimRight(frontendURL, "/")}
}

// SendVerification mails FRONTEND_URL/verify-email/<token>.
func (n *LinkNotifier) SendVerification(ctx context.Context, to, name, token string) error {
	return n.send(ctx, verifyTemplate, "Confirm your email address", to, name, n.link("verify-email", token))
}

// SendPasswordReset mails FRONTEND_URL/reset/<token>.
func (n *LinkNotifier) SendPasswordReset(ctx context.Context, to, name, token string) error {
	return n.send(ctx, resetTemplate, "Reset your password", to, name, n.link("reset", token))
}

func (n *LinkNotifier) link(path, token string) string {
	return n.frontendURL + "/" + path + "/" + url.PathEscape(token)
}

func (n *LinkNotifier) send(ctx context.Context, tpl *template.Template, subject, to, name, link string) error {
	var body bytes.Buffer
	if err := tpl.Execute(&body, linkData{Name: name, Link: link}); err != nil {
		return fmt.Errorf("mailer: render %s: %w", tpl.Name(), err)
	}
	return n.mailer.Send(ctx, Message{To: to, Subject: subject, HTML: body.String()})
}

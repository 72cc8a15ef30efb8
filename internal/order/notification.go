package order

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/vasiliy-maslov/boutique-api/internal/mail"
)

var progressTemplate = template.Must(template.New("progress").Parse(`<div style="font-family: Arial, sans-serif; line-height: 1.6;">
  <p><strong>Cher {{.Customer}}</strong>,</p>
  <p>
    Votre article <strong>{{.Title}}</strong> (Couleur : <strong>{{.Color}}</strong>){{.ArticleFR}},
    dans la commande n°{{.ShortID}}, est actuellement <strong>terminé à {{.Progress}}%</strong>.
  </p>
  {{if .Ready}}<p><strong>Bonne nouvelle !</strong> Votre article est prêt pour la livraison.</p>
  {{else}}<p>Nous vous tiendrons informé dès qu'il sera terminé.</p>
  {{end}}<hr />
  <p dir="rtl"><strong>عزيزي {{.Customer}}</strong>،</p>
  <p dir="rtl">
    طلبك <strong>{{.Title}}</strong> (اللون: <strong>{{.Color}}</strong>){{.ArticleAR}}،
    برقم {{.ShortID}}، جاهز بنسبة <strong>{{.Progress}}%</strong>.
  </p>
  {{if .Ready}}<p dir="rtl"><strong>خبر سار!</strong> المنتج جاهز للتسليم.</p>
  {{else}}<p dir="rtl">سنقوم بإبلاغك عند الانتهاء الكامل.</p>
  {{end}}</div>
`))

type progressView struct {
	Customer  string
	Title     string
	Color     string
	ShortID   string
	Progress  int
	Ready     bool
	ArticleFR string
	ArticleAR string
}

// shortOrderID is the prefix customers see in subjects and bodies.
func shortOrderID(o *Order) string {
	s := o.ID.String()
	if len(s) > 8 {
		return s[:8]
	}
	return s
}

// composeProgressMessage builds the bilingual progress email for one line of o.
func composeProgressMessage(o *Order, line LineItem, colorLabel string, req ProgressRequest) (mail.Message, error) {
	view := progressView{
		Customer: o.Name,
		Title:    line.Title,
		Color:    colorLabel,
		ShortID:  shortOrderID(o),
		Progress: req.Progress,
		Ready:    req.Progress == 100,
	}
	if req.ArticleIndex > 0 {
		view.ArticleFR = fmt.Sprintf(" (Article #%d)", req.ArticleIndex)
		view.ArticleAR = fmt.Sprintf(" (المقالة رقم %d)", req.ArticleIndex)
	}

	var subject string
	if view.Ready {
		subject = fmt.Sprintf("Commande %s%s – Votre création est prête !", view.ShortID, view.ArticleFR)
	} else {
		subject = fmt.Sprintf("Commande %s%s – Suivi de la confection artisanale (%d%%)", view.ShortID, view.ArticleFR, view.Progress)
	}

	var body bytes.Buffer
	if err := progressTemplate.Execute(&body, view); err != nil {
		return mail.Message{}, fmt.Errorf("service: failed to render progress email: %w", err)
	}

	return mail.Message{
		To:      req.Email,
		Subject: subject,
		HTML:    body.String(),
	}, nil
}

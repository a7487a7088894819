package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/licito/backend/model"
	"github.com/licito/backend/pkg/logger"
	"github.com/licito/backend/store"
)

// ErrNotDelivered is returned when every delivery of a fan-out failed
var ErrNotDelivered = errors.New("no notification could be delivered")

// maxParallelDeliveries bounds the concurrent provider calls of one fan-out
const maxParallelDeliveries = 4

var contractUpdateTemplate = template.Must(template.New("contract_update").Parse(`<!DOCTYPE html>
<html lang="pt-BR">
<body style="font-family: Arial, sans-serif; color: #1f2937;">
  <h2>Atualização do contrato {{.ContractNumber}}</h2>
  {{if .UpdateType}}<p><strong>Tipo:</strong> {{.UpdateType}}</p>{{end}}
  <p><strong>Descrição:</strong> {{.UpdateDescription}}</p>
  {{if .ActionRequired}}<p><strong>Ação necessária:</strong> {{.ActionRequired}}</p>{{end}}
  <p style="color: #6b7280; font-size: 12px;">Mensagem automática do sistema Lícito.</p>
</body>
</html>`))

var noticeTemplate = template.Must(template.New("notice").Parse(`<!DOCTYPE html>
<html lang="pt-BR">
<body style="font-family: Arial, sans-serif; color: #1f2937;">
  <h2>Solicitação de esclarecimento - contrato {{.Number}}</h2>
  <p>{{.Message}}</p>
  <p><strong>Enviado por:</strong> {{.Sender}}</p>
</body>
</html>`))

// Dispatcher delivers notifications to contract responsibles
type Dispatcher struct {
	contracts store.Contracts
	email     EmailSender
	whatsapp  WhatsAppSender
}

func NewDispatcher(contracts store.Contracts, email EmailSender, whatsapp WhatsAppSender) *Dispatcher {
	return &Dispatcher{contracts: contracts, email: email, whatsapp: whatsapp}
}

// recipients returns the distinct contact emails of the contract responsibles
func recipients(c *model.Contract) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range c.Responsibles() {
		email := strings.ToLower(r.ContactEmail())
		if email == "" || seen[email] {
			continue
		}
		seen[email] = true
		out = append(out, email)
	}
	return out
}

// NotifyResponsibles emails every responsible of the contract about the
// update and returns one delivery result per recipient, in recipient order.
// It fails when the contract has no recipients or no delivery succeeded.
func (d *Dispatcher) NotifyResponsibles(ctx context.Context, update model.ContractUpdate) ([]model.Delivery, error) {
	update.ContractNumber = strings.TrimSpace(update.ContractNumber)
	update.UpdateDescription = strings.TrimSpace(update.UpdateDescription)
	if update.ContractNumber == "" {
		return nil, invalid("Número do contrato é obrigatório")
	}
	if update.UpdateDescription == "" {
		return nil, invalid("Descrição da atualização é obrigatória")
	}

	c, err := d.contracts.GetContractByNumber(ctx, update.ContractNumber)
	if err != nil {
		return nil, err
	}
	to := recipients(c)
	if len(to) == 0 {
		return nil, invalid("Nenhum responsável com email cadastrado para este contrato")
	}

	var body bytes.Buffer
	if err := contractUpdateTemplate.Execute(&body, update); err != nil {
		return nil, fmt.Errorf("failed to render notification: %w", err)
	}
	subject := fmt.Sprintf("Atualização do contrato %s", c.Number)
	if update.UpdateType != "" {
		subject = fmt.Sprintf("%s: %s", subject, update.UpdateType)
	}

	deliveries := d.sendAll(ctx, to, subject, body.String())
	if !anyDelivered(deliveries) {
		return deliveries, ErrNotDelivered
	}

	logger.Info(ctx, "contract responsibles notified", "contract_number", c.Number, "recipients", len(to))
	return deliveries, nil
}

// sendAll sends the same email to each address concurrently. Individual
// failures are reported in the results, never as a group error.
func (d *Dispatcher) sendAll(ctx context.Context, to []string, subject, html string) []model.Delivery {
	deliveries := make([]model.Delivery, len(to))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelDeliveries)
	for i, addr := range to {
		g.Go(func() error {
			res := model.Delivery{Channel: model.ChannelEmail, Recipient: addr, Success: true}
			if err := d.email.Send(gctx, Email{To: addr, Subject: subject, HTML: html}); err != nil {
				logger.Warn(ctx, "email delivery failed", "recipient", addr, "error", err)
				res.Success = false
				res.Error = err.Error()
			}
			mu.Lock()
			deliveries[i] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return deliveries
}

func anyDelivered(deliveries []model.Delivery) bool {
	for _, d := range deliveries {
		if d.Success {
			return true
		}
	}
	return false
}

// SendWhatsApp sends a text message to a phone number
func (d *Dispatcher) SendWhatsApp(ctx context.Context, phone, body string) (model.Delivery, error) {
	phone = NormalizePhone(phone)
	body = strings.TrimSpace(body)
	if phone == "" {
		return model.Delivery{}, invalid("Número de telefone é obrigatório")
	}
	if body == "" {
		return model.Delivery{}, invalid("Mensagem é obrigatória")
	}

	res := model.Delivery{Channel: model.ChannelWhatsApp, Recipient: phone, Success: true}
	if err := d.whatsapp.SendText(ctx, phone, body); err != nil {
		res.Success = false
		res.Error = err.Error()
		return res, fmt.Errorf("failed to send whatsapp message: %w", err)
	}
	return res, nil
}

// deliverNotice sends a clarification notice to one responsible through
// every channel it has a contact for.
func (d *Dispatcher) deliverNotice(ctx context.Context, c *model.Contract, r model.Responsible, n *model.ClarificationNotice) []model.Delivery {
	var out []model.Delivery

	if email := r.ContactEmail(); email != "" {
		var body bytes.Buffer
		err := noticeTemplate.Execute(&body, map[string]string{
			"Number":  c.Number,
			"Message": n.Message,
			"Sender":  n.SentBy.Name,
		})
		if err == nil {
			err = d.email.Send(ctx, Email{
				To:      email,
				Subject: fmt.Sprintf("Esclarecimento solicitado - contrato %s", c.Number),
				HTML:    body.String(),
			})
		}
		out = append(out, delivery(model.ChannelEmail, email, err))
	}

	if phone := NormalizePhone(r.ContactPhone()); phone != "" {
		text := fmt.Sprintf("Lícito - contrato %s\n%s\n(%s)", c.Number, n.Message, n.SentBy.Name)
		err := d.whatsapp.SendText(ctx, phone, text)
		out = append(out, delivery(model.ChannelWhatsApp, phone, err))
	}
	return out
}

func delivery(channel, recipient string, err error) model.Delivery {
	d := model.Delivery{Channel: channel, Recipient: recipient, Success: err == nil}
	if err != nil {
		d.Error = err.Error()
	}
	return d
}

package service

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"math"
	"strconv"
	"strings"

	"github.com/licito/backend/config"
	"github.com/licito/backend/model"
	"github.com/licito/backend/pkg/logger"
	"github.com/licito/backend/policy"
	"github.com/licito/backend/store"
)

// Conversation roles understood by a ChatModel
const (
	TurnUser  = "user"
	TurnModel = "model"
)

// ToolParam describes one argument of a tool. Type is "string" or "integer".
type ToolParam struct {
	Name        string
	Type        string
	Description string
	Required    bool
	Enum        []string
}

// ToolSpec is a function the model may call
type ToolSpec struct {
	Name        string
	Description string
	Params      []ToolParam
}

// ToolCall is a function call requested by the model
type ToolCall struct {
	ID   string
	Name string
	Args map[string]any
}

// ToolResult is the response to a ToolCall fed back to the model
type ToolResult struct {
	ID     string
	Name   string
	Result map[string]any
}

// Turn is one entry of the conversation sent to the model
type Turn struct {
	Role    string
	Text    string
	Calls   []ToolCall
	Results []ToolResult
}

// StreamChunk is one increment of a model response
type StreamChunk struct {
	Text  string
	Calls []ToolCall
}

// ChatModel streams a model response for the conversation so far
type ChatModel interface {
	Stream(ctx context.Context, system string, history []Turn, tools []ToolSpec) iter.Seq2[StreamChunk, error]
}

// Stream event types
const (
	EventText       = "text"
	EventToolCall   = "tool_call"
	EventToolResult = "tool_result"
	EventError      = "error"
	EventDone       = "done"
)

// Event is one server-sent event of an assistant response
type Event struct {
	Type   string         `json:"type"`
	Text   string         `json:"text,omitempty"`
	Name   string         `json:"name,omitempty"`
	Args   map[string]any `json:"args,omitempty"`
	Result map[string]any `json:"result,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// ChatInput is one message of the conversation posted by the client
type ChatInput struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	toolSupportLink = "getGPTLink"
	toolSendEmail   = "sendEmail"
	toolWhatsApp    = "sendWhatsappMessage"
	toolContract    = "getInformationAboutContract"
)

const stepLimitReply = "Não consegui concluir a resposta com as consultas disponíveis. Tente reformular a pergunta."

const systemPrompt = `Você é um assistente de IA para gerenciamento de contratos públicos.

Suas capacidades incluem:

1. Obter informações sobre contratos ('getInformationAboutContract'), escolhendo o tipo de consulta adequado.
2. Enviar notificações por email aos responsáveis de um contrato ('sendEmail').
3. Enviar notificações por WhatsApp ('sendWhatsappMessage').
4. Obter o link do GPT para suporte adicional ('getGPTLink').

Você SÓ PODE usar as ferramentas fornecidas para essas funcionalidades.
Se o usuário solicitar algo fora dessas capacidades, recuse educadamente explicando suas limitações.
Caso uma busca não retorne contratos, informe claramente que nenhum contrato foi encontrado.
Sempre priorize espaçamento e legibilidade. Quando as ferramentas retornarem muitas informações, resuma somente o que for importante.

Data atual: %s. Usuário: %s.`

// Assistant runs the tool-calling conversation loop against a ChatModel
type Assistant struct {
	model      ChatModel
	dispatcher *Dispatcher
	queries    *QueryService
	cfg        *config.AssistantConfig
	clock      clock
}

func NewAssistant(m ChatModel, d *Dispatcher, q *QueryService, cfg *config.AssistantConfig) *Assistant {
	return &Assistant{model: m, dispatcher: d, queries: q, cfg: cfg}
}

// Tools returns the functions advertised to the model
func (a *Assistant) Tools() []ToolSpec {
	return []ToolSpec{
		{
			Name:        toolSupportLink,
			Description: "Obtém o link do GPT que auxilia a gestão do contrato. Utilizado para perguntas gerais que não sejam sobre um contrato específico.",
		},
		{
			Name:        toolSendEmail,
			Description: "Envia um email aos responsáveis pelo contrato sobre uma atualização do contrato. Também chamado de notificação por email.",
			Params: []ToolParam{
				{Name: "contractNumber", Type: "string", Description: "O número do contrato.", Required: true},
				{Name: "updateDescription", Type: "string", Description: "A descrição da atualização do contrato.", Required: true},
				{Name: "actionRequired", Type: "string", Description: "A ação requerida para a atualização do contrato."},
				{Name: "updateType", Type: "string", Description: "O tipo de atualização do contrato."},
			},
		},
		{
			Name:        toolWhatsApp,
			Description: "Envia uma mensagem via WhatsApp. Também chamado de notificação por WhatsApp.",
			Params: []ToolParam{
				{Name: "phone", Type: "string", Description: "O número de telefone de destino.", Required: true},
				{Name: "message", Type: "string", Description: "A mensagem a ser enviada.", Required: true},
			},
		},
		{
			Name: toolContract,
			Description: "Consulta dados de contratos. 'contract_by_number' e 'checklist_progress' exigem contractNumber; " +
				"'search_contracts' aceita search; 'expiring_contracts' aceita days (padrão 30); " +
				"'pending_clarifications' exige contractNumber e aceita fiscalType; 'contract_stats' não tem argumentos.",
			Params: []ToolParam{
				{Name: "kind", Type: "string", Description: "O tipo de consulta.", Required: true, Enum: QueryKinds},
				{Name: "contractNumber", Type: "string", Description: "O número do contrato."},
				{Name: "search", Type: "string", Description: "Termo de busca por número, objeto, órgão ou contratada."},
				{Name: "days", Type: "integer", Description: "Janela em dias para contratos a vencer."},
				{Name: "fiscalType", Type: "string", Description: "Tipo de fiscalização.", Enum: []string{string(model.FiscalAdministrative), string(model.FiscalTechnical)}},
			},
		},
	}
}

func historyFrom(msgs []ChatInput) ([]Turn, error) {
	var turns []Turn
	for _, m := range msgs {
		text := strings.TrimSpace(m.Content)
		if text == "" {
			continue
		}
		switch m.Role {
		case model.MessageUser:
			turns = append(turns, Turn{Role: TurnUser, Text: text})
		case model.MessageAssistant:
			turns = append(turns, Turn{Role: TurnModel, Text: text})
		}
	}
	if len(turns) == 0 || turns[len(turns)-1].Role != TurnUser {
		return nil, invalid("A conversa deve terminar com uma mensagem do usuário")
	}
	return turns, nil
}

// Run answers the conversation, emitting events as the model streams.
// Tool failures are reported to the model and never end the stream. A model
// failure emits an error event and is returned.
func (a *Assistant) Run(ctx context.Context, actor Actor, msgs []ChatInput, emit func(Event) error) error {
	history, err := historyFrom(msgs)
	if err != nil {
		return err
	}

	system := fmt.Sprintf(systemPrompt, a.clock.now().Format("02/01/2006"), actor.Name)
	tools := a.Tools()
	steps := a.cfg.MaxToolSteps
	if steps <= 0 {
		steps = 1
	}

	for step := 0; ; step++ {
		var text strings.Builder
		var calls []ToolCall

		// the turn after the last tool round is offered no tools
		final := step >= steps
		offered := tools
		if final {
			offered = nil
		}

		for chunk, err := range a.model.Stream(ctx, system, history, offered) {
			if err != nil {
				logger.Error(ctx, "assistant model failed", "error", err, "step", step)
				_ = emit(Event{Type: EventError, Error: "Não foi possível gerar a resposta"})
				return fmt.Errorf("model stream failed: %w", err)
			}
			if chunk.Text != "" {
				text.WriteString(chunk.Text)
				if err := emit(Event{Type: EventText, Text: chunk.Text}); err != nil {
					return err
				}
			}
			calls = append(calls, chunk.Calls...)
		}

		if final {
			logger.Warn(ctx, "assistant reached tool step limit", "steps", steps, "ignored_calls", len(calls))
			if text.Len() == 0 {
				if err := emit(Event{Type: EventText, Text: stepLimitReply}); err != nil {
					return err
				}
			}
			return emit(Event{Type: EventDone})
		}
		if len(calls) == 0 {
			return emit(Event{Type: EventDone})
		}

		history = append(history, Turn{Role: TurnModel, Text: text.String(), Calls: calls})
		results := make([]ToolResult, 0, len(calls))
		for _, call := range calls {
			if err := emit(Event{Type: EventToolCall, Name: call.Name, Args: call.Args}); err != nil {
				return err
			}
			result := a.execute(ctx, actor, call)
			if err := emit(Event{Type: EventToolResult, Name: call.Name, Result: result}); err != nil {
				return err
			}
			results = append(results, ToolResult{ID: call.ID, Name: call.Name, Result: result})
		}
		history = append(history, Turn{Role: TurnUser, Results: results})
	}
}

// execute runs one tool call and always returns a result for the model
func (a *Assistant) execute(ctx context.Context, actor Actor, call ToolCall) map[string]any {
	logger.Info(ctx, "assistant tool called", "tool", call.Name)

	switch call.Name {
	case toolSupportLink:
		if a.cfg.SupportLink == "" {
			return failure("Link de suporte não configurado", nil)
		}
		return success("Link do GPT obtido com sucesso.", map[string]any{"link": a.cfg.SupportLink})

	case toolSendEmail:
		update := model.ContractUpdate{
			ContractNumber:    argString(call.Args, "contractNumber"),
			UpdateDescription: argString(call.Args, "updateDescription"),
			ActionRequired:    argString(call.Args, "actionRequired"),
			UpdateType:        argString(call.Args, "updateType"),
		}
		if !policy.Allow(actor.Role, policy.NotifyResponsibles, "") {
			return failure("Erro ao enviar email: acesso negado", update)
		}
		deliveries, err := a.dispatcher.NotifyResponsibles(ctx, update)
		if err != nil {
			return failure("Erro ao enviar email: "+toolMessage(ctx, err), map[string]any{"update": update, "deliveries": deliveries})
		}
		return success("Email enviado com sucesso.", map[string]any{"update": update, "deliveries": deliveries})

	case toolWhatsApp:
		phone := argString(call.Args, "phone")
		message := argString(call.Args, "message")
		data := map[string]any{"phone": phone, "message": message}
		if !policy.Allow(actor.Role, policy.NotifyResponsibles, "") {
			return failure("Erro ao enviar mensagem: acesso negado", data)
		}
		res, err := a.dispatcher.SendWhatsApp(ctx, phone, message)
		if err != nil {
			return failure("Erro ao enviar mensagem: "+toolMessage(ctx, err), data)
		}
		data["result"] = res
		return success("Mensagem enviada com sucesso.", data)

	case toolContract:
		req := QueryRequest{
			Kind:           argString(call.Args, "kind"),
			ContractNumber: argString(call.Args, "contractNumber"),
			Search:         argString(call.Args, "search"),
			Days:           argInt(call.Args, "days"),
			FiscalType:     argString(call.Args, "fiscalType"),
		}
		result, err := a.queries.Run(ctx, actor, req)
		if err != nil {
			return failure("Erro ao consultar contratos: "+toolMessage(ctx, err), req)
		}
		return success("Consulta executada com sucesso.", map[string]any{"result": result})
	}

	return failure("Ferramenta desconhecida: "+call.Name, nil)
}

func success(message string, data any) map[string]any {
	return map[string]any{"success": true, "message": message, "data": data}
}

func failure(message string, data any) map[string]any {
	out := map[string]any{"success": false, "message": message}
	if data != nil {
		out["data"] = data
	}
	return out
}

// toolMessage turns an error into text safe to show the model
func toolMessage(ctx context.Context, err error) string {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		return verr.Message
	case errors.Is(err, store.ErrNotFound):
		return "contrato não encontrado"
	case errors.Is(err, ErrForbidden):
		return "acesso negado"
	case errors.Is(err, ErrNotConfigured):
		return "integração não configurada"
	case errors.Is(err, ErrNotDelivered):
		return "nenhuma notificação pôde ser entregue"
	}
	logger.Error(ctx, "assistant tool failed", "error", err)
	return "falha inesperada"
}

func argString(args map[string]any, key string) string {
	switch v := args[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

func argInt(args map[string]any, key string) int {
	switch v := args[key].(type) {
	case float64:
		return int(math.Round(v))
	case int:
		return v
	case int64:
		return int(v)
	}
	return 0
}

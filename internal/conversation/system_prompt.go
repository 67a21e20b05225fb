package conversation

import (
	"fmt"
	"strings"
)

// bookingInstructions teaches the model the booking marker wire format.
// The block is stripped from the visitor-facing reply before display.
const bookingInstructions = `
Lorsqu'un visiteur souhaite prendre rendez-vous et que tu disposes de son nom, d'une date et d'une heure, insère à la fin de ta réponse un bloc exactement au format suivant :
[BOOKING_REQUEST]{"name":"Nom complet","date":"JJ/MM/AAAA","time":"HHhMM","email":"...","phone":"...","service":"..."}[/BOOKING_REQUEST]
Les champs email, phone et service sont optionnels. N'insère ce bloc qu'une seule fois, et uniquement quand le visiteur a confirmé la date et l'heure. Ne mentionne jamais ce bloc dans le texte visible.`

// PromptConfig carries the tenant settings that shape the system prompt.
type PromptConfig struct {
	SystemPrompt   string
	BookingEnabled bool
	AgentNames     []string // populated for tenants offering visitor choice
}

// BuildSystemPrompt assembles the per-tenant system turn for a chat call.
func BuildSystemPrompt(cfg PromptConfig) string {
	var b strings.Builder
	prompt := strings.TrimSpace(cfg.SystemPrompt)
	if prompt == "" {
		prompt = "Tu es un assistant virtuel serviable et concis. Réponds en français."
	}
	b.WriteString(prompt)

	if cfg.BookingEnabled {
		b.WriteString("\n")
		b.WriteString(bookingInstructions)
		if len(cfg.AgentNames) > 0 {
			b.WriteString(fmt.Sprintf("\nLe visiteur peut demander un conseiller en particulier parmi : %s.", strings.Join(cfg.AgentNames, ", ")))
		}
	}
	return b.String()
}

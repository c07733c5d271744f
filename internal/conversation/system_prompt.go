package conversation

import (
	"fmt"
	"strings"
	"time"
)

const (
	defaultClinicName    = "Clínica Odontológica"
	defaultAssistantName = "Clara"
)

// PromptConfig personalizes the assistant for one clinic.
type PromptConfig struct {
	ClinicName    string
	AssistantName string
	OpenHour      int
	CloseHour     int
}

func (c PromptConfig) withDefaults() PromptConfig {
	if strings.TrimSpace(c.ClinicName) == "" {
		c.ClinicName = defaultClinicName
	}
	if strings.TrimSpace(c.AssistantName) == "" {
		c.AssistantName = defaultAssistantName
	}
	if c.CloseHour <= c.OpenHour {
		c.OpenHour, c.CloseHour = 9, 18
	}
	return c
}

var weekdaysPT = [...]string{
	time.Sunday:    "domingo",
	time.Monday:    "segunda-feira",
	time.Tuesday:   "terça-feira",
	time.Wednesday: "quarta-feira",
	time.Thursday:  "quinta-feira",
	time.Friday:    "sexta-feira",
	time.Saturday:  "sábado",
}

const systemPromptTemplate = `Você é '%[1]s', uma assistente de agendamento da %[2]s, uma clínica odontológica.
A data de hoje é %[3]s (%[4]s).
Você já cumprimentou o paciente com: "%[5]s"

Sua função é:
1. Perguntar o motivo da visita.
2. Coletar o nome completo, o telefone e a preferência de dia/hora do paciente.
3. NUNCA ofereça conselhos médicos. Seja sempre empática, profissional e direta.

As consultas duram 60 minutos e acontecem entre %02[6]d:00 e %02[7]d:00, começando em hora cheia.

IMPORTANTE: Depois de coletar todas as informações, sua única e exclusiva resposta deve ser um JSON.
Baseado na data de hoje, converta pedidos como "amanhã" ou "segunda-feira" em uma data completa.
O formato do JSON deve ser:
{"action_kind": "schedule", "patient_name": "NOME COMPLETO", "contact": "TELEFONE", "reason": "MOTIVO", "requested_start": "YYYY-MM-DD HH:MM:SS"}`

// Greeting is the assistant's opening line.
func (c PromptConfig) Greeting() string {
	c = c.withDefaults()
	return fmt.Sprintf("Olá! Eu sou a %s, sua assistente virtual. Como posso lhe ajudar hoje? Você gostaria de marcar uma limpeza, avaliação, ou tem uma emergência?", c.AssistantName)
}

// SystemPrompt renders the instructions with the conversation's reference date
// so relative dates resolve consistently for the whole conversation.
func (c PromptConfig) SystemPrompt(referenceDate time.Time) string {
	c = c.withDefaults()
	return fmt.Sprintf(systemPromptTemplate,
		c.AssistantName,
		c.ClinicName,
		referenceDate.Format("2006-01-02"),
		weekdaysPT[referenceDate.Weekday()],
		c.Greeting(),
		c.OpenHour,
		c.CloseHour,
	)
}

func (c PromptConfig) hoursText() string {
	c = c.withDefaults()
	return fmt.Sprintf("das %02d:00 às %02d:00", c.OpenHour, c.CloseHour)
}

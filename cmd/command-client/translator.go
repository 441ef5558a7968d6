package main

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"text/template"
	"unicode"

	"speakcity/shared"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
	"google.golang.org/genai"
)

//go:embed prompt_template.txt
var promptTemplate string

// ErrNotACommand is returned when a message holds no traffic instruction.
var ErrNotACommand = errors.New("message is not a traffic command")

// Translator turns an operator message into a command batch. city is the
// latest snapshot, used to ground the translation in the real street names.
type Translator interface {
	Translate(ctx context.Context, text string, city shared.Snapshot) (shared.CommandBatch, error)
}

// PromptData holds the data for the prompt template
type PromptData struct {
	Message string
	Streets []string
	Closed  []string
	Lights  []string
}

func newPromptData(text string, city shared.Snapshot) PromptData {
	return PromptData{
		Message: text,
		Streets: lo.Map(city.Streets, func(s shared.StreetState, _ int) string { return s.ID }),
		Closed: lo.FilterMap(city.Streets, func(s shared.StreetState, _ int) (string, bool) {
			return s.ID, s.Closed
		}),
		Lights: lo.FlatMap(city.Intersections, func(in shared.IntersectionState, _ int) []string {
			return lo.FilterMap(in.Lights, func(l shared.LightState, _ int) (string, bool) {
				return in.ID + " " + l.Direction, l.Active
			})
		}),
	}
}

func renderPrompt(data PromptData) (string, error) {
	tmpl, err := template.New("prompt").Parse(promptTemplate)
	if err != nil {
		return "", fmt.Errorf("parse prompt template: %w", err)
	}
	var prompt bytes.Buffer
	if err := tmpl.Execute(&prompt, data); err != nil {
		return "", fmt.Errorf("execute prompt template: %w", err)
	}
	return prompt.String(), nil
}

// GeminiTranslator asks a Gemini model for the command JSON.
type GeminiTranslator struct {
	client      *genai.Client
	model       string
	temperature float32
}

// NewGeminiTranslator creates a translator backed by the Gemini API.
func NewGeminiTranslator(ctx context.Context, apiKey, model string) (*GeminiTranslator, error) {
	if apiKey == "" {
		return nil, errors.New("no Gemini API key configured")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create Gemini client: %w", err)
	}
	return &GeminiTranslator{client: client, model: model, temperature: 0.2}, nil
}

func (g *GeminiTranslator) Translate(ctx context.Context, text string, city shared.Snapshot) (shared.CommandBatch, error) {
	prompt, err := renderPrompt(newPromptData(text, city))
	if err != nil {
		return shared.CommandBatch{}, err
	}

	result, err := g.client.Models.GenerateContent(
		ctx,
		g.model,
		genai.Text(prompt),
		&genai.GenerateContentConfig{
			Temperature:      &g.temperature,
			ResponseMIMEType: "application/json",
		},
	)
	if err != nil {
		return shared.CommandBatch{}, fmt.Errorf("generate content: %w", err)
	}

	response := strings.TrimSpace(result.Text())
	log.Debugf("Gemini response: %s", response)
	return parseReply(response)
}

// replyCommand is one command in the model's reply.
type replyCommand struct {
	Accion   string  `json:"accion"`
	Calle    string  `json:"calle"`
	Causa    string  `json:"causa"`
	Segundos float64 `json:"duracion_estimada_segundos"`
	Densidad string  `json:"densidad"`
	Color    string  `json:"color"`
}

// geminiReply accepts both the batch form and a bare single command.
type geminiReply struct {
	replyCommand
	Valido   *bool          `json:"valido"`
	Error    string         `json:"error"`
	Resumen  string         `json:"resumen_general"`
	Comandos []replyCommand `json:"comandos"`
}

func parseReply(text string) (shared.CommandBatch, error) {
	text = stripFences(text)
	var reply geminiReply
	if err := json.Unmarshal([]byte(text), &reply); err != nil {
		return shared.CommandBatch{}, fmt.Errorf("decode model reply: %w", err)
	}
	if reply.Valido != nil && !*reply.Valido {
		return shared.CommandBatch{}, fmt.Errorf("%w: %s", ErrNotACommand, reply.Error)
	}
	if len(reply.Comandos) == 0 && reply.Accion != "" {
		reply.Comandos = []replyCommand{reply.replyCommand}
	}
	if len(reply.Comandos) == 0 {
		return shared.CommandBatch{}, ErrNotACommand
	}

	batch := shared.CommandBatch{Summary: reply.Resumen}
	for _, c := range reply.Comandos {
		batch.Commands = append(batch.Commands, shared.Command{
			Action:  c.Accion,
			Target:  strings.ToUpper(strings.TrimSpace(c.Calle)),
			Color:   c.Color,
			Seconds: c.Segundos,
			Density: c.Densidad,
			Cause:   c.Causa,
		})
	}
	return batch, nil
}

// stripFences removes a markdown code fence around a JSON reply.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[i+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text), "```"))
}

// KeywordTranslator is the offline translator used in dev mode. It
// recognises street and light ids, a handful of Spanish and English verbs
// and durations.
type KeywordTranslator struct{}

var (
	streetPattern   = regexp.MustCompile(`\b([hv])(\d)(\d)\b`)
	lightPattern    = regexp.MustCompile(`\bi(\d)(\d)\s+(top|bottom|left|right|arriba|abajo|izquierda|derecha|norte|sur|oeste|este)\b`)
	durationPattern = regexp.MustCompile(`\b(\d+(?:\.\d+)?)\s*(segundos|segundo|seconds|second|secs|sec|seg|s|minutos|minuto|minutes|minute|min)\b`)
	clauseSplit     = regexp.MustCompile(`\s*(?:[,;]|\by\b|\band\b|\bthen\b|\bluego\b)\s*`)
)

var directionWords = map[string]string{
	"top": "TOP", "arriba": "TOP", "norte": "TOP",
	"bottom": "BOTTOM", "abajo": "BOTTOM", "sur": "BOTTOM",
	"left": "LEFT", "izquierda": "LEFT", "oeste": "LEFT",
	"right": "RIGHT", "derecha": "RIGHT", "este": "RIGHT",
}

type verb int

const (
	verbNone verb = iota
	verbClose
	verbOpen
	verbRed
	verbGreen
	verbDeactivate
	verbActivate
	verbInterval
	verbDensity
)

// verbWords is checked in order so the more specific verbs win.
var verbWords = []struct {
	verb  verb
	words []string
}{
	{verbDensity, []string{"densidad", "density"}},
	{verbInterval, []string{"programa", "programar", "intervalo", "interval", "ciclo", "cycle"}},
	{verbRed, []string{"rojo", "red"}},
	{verbGreen, []string{"verde", "green"}},
	{verbDeactivate, []string{"desactiva", "desactivar", "apaga", "apagar", "deactivate", "disable"}},
	{verbActivate, []string{"activa", "activar", "enciende", "encender", "activate", "enable"}},
	{verbClose, []string{"cierra", "cierre", "cerrar", "close", "block", "bloquea", "bloquear"}},
	{verbOpen, []string{"abre", "abrir", "reabre", "open", "reopen", "desbloquea", "desbloquear"}},
}

var densityWords = map[string]string{
	"baja": "low", "low": "low",
	"media": "medium", "medium": "medium",
	"alta": "high", "high": "high",
}

func (KeywordTranslator) Translate(_ context.Context, text string, _ shared.Snapshot) (shared.CommandBatch, error) {
	batch := shared.CommandBatch{Summary: strings.TrimSpace(text)}
	prev := verbNone
	for _, clause := range clauseSplit.Split(strings.ToLower(text), -1) {
		var cmds []shared.Command
		cmds, prev = parseClause(clause, prev)
		batch.Commands = append(batch.Commands, cmds...)
	}
	if len(batch.Commands) == 0 {
		return batch, fmt.Errorf("%w: %q", ErrNotACommand, text)
	}
	return batch, nil
}

// parseClause reads one clause. A clause without a verb reuses prev, so
// "cierra H21 y H22" closes both streets.
func parseClause(clause string, prev verb) ([]shared.Command, verb) {
	words := lo.SliceToMap(strings.FieldsFunc(clause, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}), func(w string) (string, struct{}) { return w, struct{}{} })

	v := detectVerb(words)
	if v == verbNone {
		v = prev
	}
	seconds := parseDuration(clause)

	if v == verbDensity {
		for w := range words {
			if level, ok := densityWords[w]; ok {
				return []shared.Command{{Action: "cambiar_densidad", Density: level}}, v
			}
		}
		return nil, v
	}

	var cmds []shared.Command
	if hasAny(words, "periferico", "periférico", "perimetro", "perímetro", "perimeter", "ring") {
		switch v {
		case verbClose:
			cmds = append(cmds, shared.Command{Action: "cerrar_periferico"})
		case verbOpen:
			cmds = append(cmds, shared.Command{Action: "abrir_periferico"})
		}
	}

	for _, m := range lightPattern.FindAllStringSubmatch(clause, -1) {
		target := "I" + m[1] + m[2] + " " + directionWords[m[3]]
		switch v {
		case verbRed:
			cmds = append(cmds, shared.Command{Action: "cambiar_semaforo_rojo", Target: target})
		case verbGreen:
			cmds = append(cmds, shared.Command{Action: "cambiar_semaforo_verde", Target: target})
		case verbDeactivate:
			cmds = append(cmds, shared.Command{Action: "desactivar_semaforo", Target: target})
		case verbActivate:
			cmds = append(cmds, shared.Command{Action: "activar_semaforo", Target: target})
		case verbInterval:
			if seconds > 0 {
				cmds = append(cmds, shared.Command{Action: "programar_semaforo", Target: target, Seconds: seconds})
			}
		}
	}

	streets := streetPattern.FindAllStringSubmatch(clause, -1)
	for _, m := range streets {
		target := strings.ToUpper(m[1]) + m[2] + m[3]
		switch v {
		case verbClose:
			cmds = append(cmds, shared.Command{Action: "cerrar_calle", Target: target, Seconds: seconds})
		case verbOpen:
			cmds = append(cmds, shared.Command{Action: "abrir_calle", Target: target})
		}
	}

	if v == verbOpen && len(cmds) == 0 && hasAny(words, "todas", "todo", "all", "everything") {
		cmds = append(cmds, shared.Command{Action: "abrir_todas"})
	}
	return cmds, v
}

func detectVerb(words map[string]struct{}) verb {
	for _, vw := range verbWords {
		if hasAny(words, vw.words...) {
			return vw.verb
		}
	}
	return verbNone
}

func hasAny(words map[string]struct{}, candidates ...string) bool {
	return lo.SomeBy(candidates, func(c string) bool {
		_, ok := words[c]
		return ok
	})
}

// parseDuration returns the first duration in the clause in seconds, or 0.
func parseDuration(clause string) float64 {
	m := durationPattern.FindStringSubmatch(clause)
	if m == nil {
		return 0
	}
	n, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	if strings.HasPrefix(m[2], "min") {
		n *= 60
	}
	return n
}

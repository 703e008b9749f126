// Package assistant answers short bilingual text commands about CDP positions and alerts.
package assistant

import (
	"github.com/rs/zerolog"

	"CDPShield/internal/model"
)

// Reply is the outcome of one handled command.
type Reply struct {
	Intent   Intent         `json:"intent"`
	Language model.Language `json:"language"`
	Response string         `json:"response"`
}

// Assistant ties a Processor and a Responder together.
type Assistant struct {
	processor *Processor
	responder Responder
	log       zerolog.Logger
}

// New creates an Assistant reading from the given sources.
func New(positions PositionSource, alerts AlertSource, log zerolog.Logger) *Assistant {
	return &Assistant{
		processor: NewProcessor(positions, alerts),
		log:       log.With().Str("component", "assistant").Logger(),
	}
}

// Ask processes text and returns the structured reply.
func (a *Assistant) Ask(text string) Reply {
	res := a.processor.Process(text)
	reply := Reply{
		Intent:   res.Intent,
		Language: res.Language,
		Response: a.responder.Generate(res),
	}
	a.log.Debug().
		Str("intent", string(reply.Intent)).
		Str("language", string(reply.Language)).
		Msg("command handled")
	return reply
}

// Handle returns only the reply text. It matches the bot command handler signature.
func (a *Assistant) Handle(text string) string {
	return a.Ask(text).Response
}

// Welcome returns the greeting in lang.
func (a *Assistant) Welcome(lang model.Language) string {
	return a.responder.Welcome(lang)
}

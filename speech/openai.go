// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2024, Emir Aganovic

package speech

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"
)

// Defaults used when OpenAI options are left empty.
var (
	DefaultChatModel = openai.GPT4oMini
	DefaultTTSModel  = openai.TTSModel1
	DefaultTTSVoice  = openai.VoiceAlloy

	// DefaultPersona is the system prompt used when none is configured.
	DefaultPersona = "You are an enthusiastic, engaging and friendly guide on a phone call. " +
		"Keep replies short, conversational and natural sounding, as if spoken by a person. " +
		"Never mention being an AI. Do not use lists, markdown or stage directions."
)

// OpenAI implements Transcriber, Responder and Synthesizer on a single
// OpenAI API client: Whisper for transcription, chat completions for
// replies and the speech endpoint for synthesis.
type OpenAI struct {
	client *openai.Client
	log    zerolog.Logger

	ChatModel string
	TTSModel  openai.SpeechModel
	TTSVoice  openai.SpeechVoice
	Persona   string
}

func NewOpenAI(apiKey string) *OpenAI {
	return &OpenAI{
		client:    openai.NewClient(apiKey),
		log:       log.With().Str("service", "openai").Logger(),
		ChatModel: DefaultChatModel,
		TTSModel:  DefaultTTSModel,
		TTSVoice:  DefaultTTSVoice,
		Persona:   DefaultPersona,
	}
}

func (s *OpenAI) Transcribe(ctx context.Context, audioPath string) (string, error) {
	res, err := s.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: audioPath,
		Format:   openai.AudioResponseFormatText,
	})
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}

	text := strings.TrimSpace(res.Text)
	if text == "" {
		return "", ErrNoSpeech
	}
	s.log.Debug().Str("text", text).Msg("Transcribed caller audio")
	return text, nil
}

func (s *OpenAI) Respond(ctx context.Context, history []Message) (string, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	msgs = append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: s.Persona,
	})
	for _, m := range history {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    chatRole(m.Role),
			Content: m.Content,
		})
	}

	res, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    s.ChatModel,
		Messages: msgs,
	})
	if err != nil {
		return "", fmt.Errorf("respond: %w", err)
	}
	if len(res.Choices) == 0 {
		return "", fmt.Errorf("respond: no choices returned")
	}

	reply := CleanSpoken(res.Choices[0].Message.Content)
	if reply == "" {
		return "", fmt.Errorf("respond: empty reply")
	}
	return reply, nil
}

func (s *OpenAI) Synthesize(ctx context.Context, text string, outPath string) error {
	res, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          s.TTSModel,
		Voice:          s.TTSVoice,
		Input:          text,
		ResponseFormat: openai.SpeechResponseFormatWav,
	})
	if err != nil {
		return fmt.Errorf("synthesize: %w", err)
	}
	defer res.Close()

	f, err := os.OpenFile(outPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := io.Copy(f, res); err != nil {
		return fmt.Errorf("synthesize: writing %s: %w", outPath, err)
	}
	return nil
}

func chatRole(role string) string {
	if role == RoleAssistant {
		return openai.ChatMessageRoleAssistant
	}
	return openai.ChatMessageRoleUser
}

package producer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
)

// DefaultModel is the chat model used when none is configured.
const DefaultModel = "gpt-4o"

// OpenAIProducer implements Producer using the OpenAI chat completions API
// with structured outputs.
type OpenAIProducer struct {
	client openai.Client
	model  string

	planSchema     *jsonschema.Schema
	critiqueSchema *jsonschema.Schema
	suggestSchema  *jsonschema.Schema
}

var _ Producer = (*OpenAIProducer)(nil)

// openaiConfig holds construction options.
type openaiConfig struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// OpenAIOption configures an OpenAIProducer.
type OpenAIOption func(*openaiConfig)

// WithModel sets the chat model.
func WithModel(model string) OpenAIOption {
	return func(c *openaiConfig) { c.model = model }
}

// WithBaseURL sets an alternate API endpoint, e.g. a compatible proxy.
func WithBaseURL(url string) OpenAIOption {
	return func(c *openaiConfig) { c.baseURL = url }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) OpenAIOption {
	return func(c *openaiConfig) { c.httpClient = client }
}

// NewOpenAIProducer creates a Producer backed by the OpenAI API.
func NewOpenAIProducer(apiKey string, opts ...OpenAIOption) (*OpenAIProducer, error) {
	cfg := &openaiConfig{model: DefaultModel}
	for _, opt := range opts {
		opt(cfg)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.httpClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(cfg.httpClient))
	}

	p := &OpenAIProducer{
		client: openai.NewClient(reqOpts...),
		model:  cfg.model,
	}

	var err error
	if p.planSchema, err = schemaFor[planPayload](); err != nil {
		return nil, fmt.Errorf("producer: plan schema: %w", err)
	}
	if p.critiqueSchema, err = schemaFor[critiquePayload](); err != nil {
		return nil, fmt.Errorf("producer: critique schema: %w", err)
	}
	if p.suggestSchema, err = schemaFor[suggestPayload](); err != nil {
		return nil, fmt.Errorf("producer: suggest schema: %w", err)
	}
	return p, nil
}

// planPayload is the wire shape for InterpretPrompt. Durations travel as
// seconds; the model has no notion of Go durations.
type planPayload struct {
	Mood              string  `json:"mood"`
	Genre             string  `json:"genre"`
	TempoLow          float64 `json:"tempo_low"`
	TempoHigh         float64 `json:"tempo_high"`
	TargetDurationSec float64 `json:"target_duration_seconds"`
	SearchQuery       string  `json:"search_query"`
	TransitionType    string  `json:"transition_type"`
	MixStyle          string  `json:"mix_style"`
}

type adjustmentPayload struct {
	Action         string  `json:"action"`
	GainDB         float64 `json:"gain_db"`
	FadeDurationMS float64 `json:"fade_duration_ms"`
	TrimStartMS    float64 `json:"trim_start_ms"`
	TrimEndMS      float64 `json:"trim_end_ms"`
	Reason         string  `json:"reason"`
}

type critiquePayload struct {
	QualityScore   float64             `json:"quality_score"`
	MatchesRequest bool                `json:"matches_request"`
	Notes          string              `json:"notes"`
	Adjustments    []adjustmentPayload `json:"adjustments"`
}

type suggestPayload struct {
	Prompts []string `json:"prompts"`
}

const interpretSystem = `You are an expert music producer planning an automated mix of royalty-free tracks.
Given a listener's request, produce a mix plan:
- mood: one or two words describing the feel
- genre: the primary genre to search for
- tempo_low / tempo_high: the BPM range that fits the request
- target_duration_seconds: the requested length (0 if unspecified)
- search_query: short text for music search APIs, e.g. "lofi chill instrumental"
- transition_type: one of crossfade, beat_match, simple
- mix_style: one of seamless, energetic, basic`

// InterpretPrompt turns a free-text request into a MixPlan.
func (p *OpenAIProducer) InterpretPrompt(ctx context.Context, prompt string, maxDuration time.Duration) (*MixPlan, error) {
	user := fmt.Sprintf("Request: %s", prompt)
	if maxDuration > 0 {
		user += fmt.Sprintf("\nThe mix must not exceed %.0f seconds.", maxDuration.Seconds())
	}

	var payload planPayload
	if err := p.generate(ctx, interpretSystem, user, "mix_plan", p.planSchema, &payload); err != nil {
		if _, ok := AsParseError(err); ok {
			return nil, fmt.Errorf("%w: %v", ErrPlanParse, err)
		}
		return nil, err
	}

	plan := &MixPlan{
		Mood:           payload.Mood,
		Genre:          payload.Genre,
		TempoLow:       payload.TempoLow,
		TempoHigh:      payload.TempoHigh,
		TargetDuration: time.Duration(payload.TargetDurationSec * float64(time.Second)),
		SearchQuery:    payload.SearchQuery,
		TransitionType: payload.TransitionType,
		MixStyle:       payload.MixStyle,
	}
	normalizePlan(plan, prompt, maxDuration)
	return plan, nil
}

// normalizePlan fills defaults and clamps out-of-range values from the model.
func normalizePlan(plan *MixPlan, prompt string, maxDuration time.Duration) {
	switch plan.TransitionType {
	case TransitionCrossfade, TransitionBeatMatch, TransitionSimple:
	default:
		plan.TransitionType = TransitionCrossfade
	}
	switch plan.MixStyle {
	case StyleSeamless, StyleEnergetic, StyleBasic:
	default:
		plan.MixStyle = StyleSeamless
	}
	if plan.TempoLow > plan.TempoHigh && plan.TempoHigh > 0 {
		plan.TempoLow, plan.TempoHigh = plan.TempoHigh, plan.TempoLow
	}
	if plan.SearchQuery == "" {
		plan.SearchQuery = prompt
	}
	if maxDuration > 0 && (plan.TargetDuration == 0 || plan.TargetDuration > maxDuration) {
		plan.TargetDuration = maxDuration
	}
}

const critiqueSystem = `You are an expert music producer and DJ providing detailed feedback on music mixes.
Rate the mix from 0 to 10 in quality_score, report whether it matches the request,
and suggest concrete adjustments. Each adjustment uses one action:
- volume_adjust with gain_db
- crossfade or fade_adjustment with fade_duration_ms
- trim with trim_start_ms and trim_end_ms
- reorder (no parameters)
Unused numeric parameters should be 0.`

// CritiqueMix rates a rendered mix described by summary.
func (p *OpenAIProducer) CritiqueMix(ctx context.Context, summary *MixSummary) (*Critique, error) {
	desc, err := json.Marshal(summaryWire(summary))
	if err != nil {
		return nil, fmt.Errorf("producer: encode summary: %w", err)
	}
	user := fmt.Sprintf("Mix request: %s\n\nMix metadata:\n%s", summary.Prompt, desc)

	var payload critiquePayload
	if err := p.generate(ctx, critiqueSystem, user, "mix_critique", p.critiqueSchema, &payload); err != nil {
		if _, ok := AsParseError(err); ok {
			return nil, fmt.Errorf("%w: %v", ErrCritiqueParse, err)
		}
		return nil, err
	}

	crit := &Critique{
		QualityScore:   payload.QualityScore,
		MatchesRequest: payload.MatchesRequest,
		Notes:          payload.Notes,
	}
	for _, a := range payload.Adjustments {
		crit.Adjustments = append(crit.Adjustments, Adjustment{
			Action:       a.Action,
			GainDB:       a.GainDB,
			FadeDuration: time.Duration(a.FadeDurationMS * float64(time.Millisecond)),
			TrimStart:    time.Duration(a.TrimStartMS * float64(time.Millisecond)),
			TrimEnd:      time.Duration(a.TrimEndMS * float64(time.Millisecond)),
			Reason:       a.Reason,
		})
	}
	return crit, nil
}

// summaryWire converts a MixSummary to a JSON shape with seconds instead of
// nanosecond durations.
func summaryWire(s *MixSummary) map[string]any {
	points := make([]float64, len(s.TransitionPoints))
	for i, p := range s.TransitionPoints {
		points[i] = p.Seconds()
	}
	m := map[string]any{
		"duration_seconds":    s.Duration.Seconds(),
		"tracks":              s.Tracks,
		"transition_points_s": points,
		"fade_duration_s":     s.FadeDuration.Seconds(),
		"average_tempo":       s.AverageTempo,
		"energy_flow":         s.EnergyFlow,
		"iteration":           s.Iteration,
	}
	if s.Plan != nil {
		m["plan"] = map[string]any{
			"mood":            s.Plan.Mood,
			"genre":           s.Plan.Genre,
			"tempo_range":     []float64{s.Plan.TempoLow, s.Plan.TempoHigh},
			"target_duration": s.Plan.TargetDuration.Seconds(),
			"transition_type": s.Plan.TransitionType,
			"mix_style":       s.Plan.MixStyle,
		}
	}
	return m
}

const suggestSystem = `You suggest prompts for an automated music mixer.
Produce 3 to 5 short, evocative prompts a listener could use.`

// SuggestPrompts proposes example prompts for the given mood/genre.
func (p *OpenAIProducer) SuggestPrompts(ctx context.Context, mood, genre string, duration time.Duration) ([]string, error) {
	user := "Suggest mix prompts."
	if mood != "" {
		user += " Mood: " + mood + "."
	}
	if genre != "" {
		user += " Genre: " + genre + "."
	}
	if duration > 0 {
		user += fmt.Sprintf(" Around %.0f minutes.", duration.Minutes())
	}

	var payload suggestPayload
	if err := p.generate(ctx, suggestSystem, user, "prompt_suggestions", p.suggestSchema, &payload); err != nil {
		return nil, err
	}
	return payload.Prompts, nil
}

// parseError marks a response that could not be decoded into the schema.
type parseError struct{ err error }

func (e *parseError) Error() string { return e.err.Error() }
func (e *parseError) Unwrap() error { return e.err }

// AsParseError reports whether err came from decoding a model response.
func AsParseError(err error) (error, bool) {
	var pe *parseError
	if errors.As(err, &pe) {
		return pe.err, true
	}
	return nil, false
}

// generate runs one structured-output completion and decodes the content
// into out, repairing malformed JSON when possible.
func (p *OpenAIProducer) generate(ctx context.Context, system, user, name string, schema *jsonschema.Schema, out any) error {
	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: p.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Temperature: param.NewOpt(0.7),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   name,
					Schema: any(schema),
					Strict: param.NewOpt(true),
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("producer: %s: %w", name, err)
	}
	if len(resp.Choices) == 0 {
		return fmt.Errorf("producer: %s: no choices", name)
	}
	choice := resp.Choices[0]
	if choice.Message.Refusal != "" {
		return fmt.Errorf("producer: %s: blocked: %s", name, choice.Message.Refusal)
	}
	if choice.Message.Content == "" {
		return fmt.Errorf("producer: %s: empty content", name)
	}
	if err := unmarshalJSON([]byte(extractJSON(choice.Message.Content)), out); err != nil {
		return &parseError{err: fmt.Errorf("producer: %s: %w", name, err)}
	}
	return nil
}

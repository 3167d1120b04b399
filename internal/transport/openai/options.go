package openai

import (
	"fmt"
	"math"
	"sort"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kailas-cloud/tokentally/internal/domain"
)

// optionSetters lists the extension options the chat completion client accepts.
// go-openai drops zero numbers from the request body (omitempty). A zero
// temperature or top_p is therefore sent as the smallest positive float32,
// which keeps greedy sampling. Zero penalties, max_tokens and n match the
// provider defaults, so omitting them changes nothing.
var optionSetters = map[string]func(req *openai.ChatCompletionRequest, v any) bool{
	"temperature": func(req *openai.ChatCompletionRequest, v any) bool {
		f, ok := toFloat32(v)
		req.Temperature = keepZero(f)
		return ok
	},
	"top_p": func(req *openai.ChatCompletionRequest, v any) bool {
		f, ok := toFloat32(v)
		req.TopP = keepZero(f)
		return ok
	},
	"presence_penalty": func(req *openai.ChatCompletionRequest, v any) bool {
		f, ok := toFloat32(v)
		req.PresencePenalty = f
		return ok
	},
	"frequency_penalty": func(req *openai.ChatCompletionRequest, v any) bool {
		f, ok := toFloat32(v)
		req.FrequencyPenalty = f
		return ok
	},
	"max_tokens": func(req *openai.ChatCompletionRequest, v any) bool {
		n, ok := toInt(v)
		req.MaxTokens = n
		return ok
	},
	"max_completion_tokens": func(req *openai.ChatCompletionRequest, v any) bool {
		n, ok := toInt(v)
		req.MaxCompletionTokens = n
		return ok
	},
	"n": func(req *openai.ChatCompletionRequest, v any) bool {
		n, ok := toInt(v)
		req.N = n
		return ok
	},
	"seed": func(req *openai.ChatCompletionRequest, v any) bool {
		n, ok := toInt(v)
		if ok {
			req.Seed = &n
		}
		return ok
	},
	"stop": func(req *openai.ChatCompletionRequest, v any) bool {
		s, ok := toStrings(v)
		req.Stop = s
		return ok
	},
	"user": func(req *openai.ChatCompletionRequest, v any) bool {
		s, ok := v.(string)
		req.User = s
		return ok
	},
}

// SupportedOptions returns the accepted option keys in sorted order.
func SupportedOptions() []string {
	keys := make([]string, 0, len(optionSetters))
	for k := range optionSetters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// applyOptions copies extension options onto the request.
// Keys are visited in sorted order so the reported error is deterministic.
func applyOptions(req *openai.ChatCompletionRequest, opts map[string]any) error {
	keys := make([]string, 0, len(opts))
	for k := range opts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		set, ok := optionSetters[k]
		if !ok {
			return fmt.Errorf("option %q: %w", k, domain.ErrUnsupportedOption)
		}
		if !set(req, opts[k]) {
			return fmt.Errorf("option %q has invalid value %v (%T): %w", k, opts[k], opts[k], domain.ErrUnsupportedOption)
		}
	}
	return nil
}

// keepZero maps an explicit 0 to a value that survives omitempty.
func keepZero(f float32) float32 {
	if f == 0 {
		return math.SmallestNonzeroFloat32
	}
	return f
}

func toFloat32(v any) (float32, bool) {
	switch n := v.(type) {
	case float32:
		return n, true
	case float64:
		return float32(n), true
	case int:
		return float32(n), true
	case int64:
		return float32(n), true
	default:
		return 0, false
	}
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	default:
		return 0, false
	}
}

func toStrings(v any) ([]string, bool) {
	switch s := v.(type) {
	case string:
		return []string{s}, true
	case []string:
		return s, true
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			str, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, str)
		}
		return out, true
	default:
		return nil, false
	}
}

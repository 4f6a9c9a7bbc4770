package provider

import (
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/docpipe/internal/config"
	"github.com/sells-group/docpipe/pkg/anthropic"
	"github.com/sells-group/docpipe/pkg/llmhttp"
)

// familyBaseURLs maps OpenAI-compatible families to their endpoints.
var familyBaseURLs = map[string]string{
	"perplexity": llmhttp.PerplexityBaseURL,
	"mistral":    llmhttp.MistralBaseURL,
	"openai":     llmhttp.OpenAIBaseURL,
}

// Build assembles a registry from configuration. Families whose credential
// is missing are not registered; their descriptors stay in the chain but the
// orchestrator skips them at dispatch time.
func Build(cfg *config.Config) *Registry {
	reg := NewRegistry()

	// family → credential reference of its first enabled provider
	families := make(map[string]string)
	for _, pc := range cfg.Providers {
		reg.Register(Descriptor{
			Name:         pc.Name,
			Family:       pc.Family,
			Model:        pc.Model,
			Priority:     pc.Priority,
			Enabled:      pc.Enabled,
			Capabilities: pc.Capabilities,
			PerMinute:    pc.PerMinute,
			PerDay:       pc.PerDay,
			KeyRef:       pc.KeyRef,
		})
		if pc.Enabled {
			if _, seen := families[pc.Family]; !seen {
				keyRef := pc.KeyRef
				if keyRef == "" {
					keyRef = pc.Family
				}
				families[pc.Family] = keyRef
			}
		}
	}

	for family, keyRef := range families {
		key := cfg.Keys.Resolve(keyRef)
		if key == "" {
			zap.L().Warn("provider family has no credential, skipping",
				zap.String("family", family))
			continue
		}

		switch family {
		case "anthropic":
			reg.RegisterFamily(family, NewAnthropicCaller(anthropic.NewClient(key)))
		default:
			baseURL, ok := familyBaseURLs[family]
			if !ok {
				zap.L().Warn("unknown provider family", zap.String("family", family))
				continue
			}
			client := llmhttp.NewClient(key, baseURL,
				llmhttp.WithLimiter(rate.NewLimiter(rate.Every(time.Second), 2)))
			reg.RegisterFamily(family, NewChatCaller(client))
		}
	}

	return reg
}

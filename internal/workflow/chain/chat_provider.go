package chain

import (
	"context"

	"muse-chat-api/internal/application/chat"
	"muse-chat-api/internal/config"
	wfmodel "muse-chat-api/internal/workflow/model"
)

// ChatProvider 把工作流链适配成流水线的生成端口，补全默认 provider/model
type ChatProvider struct {
	hyde    *HydeChain
	rewrite *RewriteChain

	provider    string
	model       string
	temperature *float32
	maxTokens   *int
}

func NewChatProvider(hyde *HydeChain, rewrite *RewriteChain, llmCfg *config.LLMConfig) *ChatProvider {
	p := &ChatProvider{
		hyde:    hyde,
		rewrite: rewrite,
	}
	if llmCfg == nil {
		return p
	}
	p.provider = llmCfg.DefaultProvider
	if pc, ok := llmCfg.Providers[llmCfg.DefaultProvider]; ok {
		p.model = pc.Model
		if pc.Temperature > 0 {
			t := float32(pc.Temperature)
			p.temperature = &t
		}
		if pc.MaxTokens > 0 {
			mt := pc.MaxTokens
			p.maxTokens = &mt
		}
	}
	return p
}

var (
	_ chat.HydeGenerator = (*ChatProvider)(nil)
	_ chat.QueryRewriter = (*ChatProvider)(nil)
)

func (p *ChatProvider) Generate(ctx context.Context, req *chat.HydeRequest) (string, error) {
	return p.hyde.Invoke(ctx, &wfmodel.HydeInput{
		Query:       req.Query,
		ChatHistory: req.ChatHistory,
		ImageURLs:   req.ImageURLs,
		Provider:    p.provider,
		Model:       p.model,
		Temperature: p.temperature,
		MaxTokens:   p.maxTokens,
	})
}

func (p *ChatProvider) Rewrite(ctx context.Context, req *chat.RewriteRequest) (string, error) {
	return p.rewrite.Invoke(ctx, &wfmodel.RewriteInput{
		Query:           req.Query,
		HypotheticalDoc: req.HypotheticalDoc,
		Provider:        p.provider,
		Model:           p.model,
		Temperature:     p.temperature,
		MaxTokens:       p.maxTokens,
	})
}

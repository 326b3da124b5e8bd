package chain

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"muse-chat-api/internal/domain/service"
	wfmodel "muse-chat-api/internal/workflow/model"
	workflowport "muse-chat-api/internal/workflow/port"
	workflowprompt "muse-chat-api/internal/workflow/prompt"
)

// HydeChain 假设文档生成链，单模态与多模态共用，
// 输入带图片时改用多模态模板并在用户消息上追加 image part。
type HydeChain struct {
	factory workflowport.ChatModelFactory

	chainOnce sync.Once
	chain     compose.Runnable[*wfmodel.HydeInput, *schema.Message]
	chainErr  error
}

func NewHydeChain(factory workflowport.ChatModelFactory) *HydeChain {
	return &HydeChain{factory: factory}
}

func (c *HydeChain) Invoke(ctx context.Context, in *wfmodel.HydeInput) (string, error) {
	if c == nil || c.factory == nil {
		return "", fmt.Errorf("llm factory not configured")
	}
	if in == nil {
		return "", fmt.Errorf("input is nil")
	}

	chain, err := c.getChain()
	if err != nil {
		return "", err
	}
	out, err := chain.Invoke(ctx, in)
	if err != nil {
		return "", err
	}
	if out == nil {
		return "", fmt.Errorf("empty llm response")
	}
	return strings.TrimSpace(out.Content), nil
}

type hydeChainState struct {
	In       *wfmodel.HydeInput
	Messages []*schema.Message
	OutMsg   *schema.Message
}

func (c *HydeChain) getChain() (compose.Runnable[*wfmodel.HydeInput, *schema.Message], error) {
	c.chainOnce.Do(func() {
		c.chain, c.chainErr = c.buildChain(context.Background())
	})
	return c.chain, c.chainErr
}

func (c *HydeChain) buildChain(ctx context.Context) (compose.Runnable[*wfmodel.HydeInput, *schema.Message], error) {
	chain := compose.NewChain[*wfmodel.HydeInput, *schema.Message]()

	chain.AppendLambda(
		compose.InvokableLambda(func(_ context.Context, in *wfmodel.HydeInput) (*hydeChainState, error) {
			if in == nil {
				return nil, fmt.Errorf("input is nil")
			}
			if strings.TrimSpace(in.Query) == "" {
				return nil, fmt.Errorf("query is empty")
			}
			return &hydeChainState{In: in}, nil
		}),
		compose.WithNodeName("hyde.init"),
	)

	chain.AppendLambda(
		compose.InvokableLambda(func(ctx context.Context, st *hydeChainState) (*hydeChainState, error) {
			if st == nil || st.In == nil {
				return nil, fmt.Errorf("state is nil")
			}
			msgs, err := formatHydeMessages(ctx, st.In)
			if err != nil {
				return nil, err
			}
			st.Messages = msgs
			return st, nil
		}),
		compose.WithNodeName("hyde.template"),
	)

	chain.AppendLambda(
		compose.InvokableLambda(func(ctx context.Context, st *hydeChainState) (*hydeChainState, error) {
			if st == nil || st.In == nil {
				return nil, fmt.Errorf("state is nil")
			}
			if c.factory == nil {
				return nil, fmt.Errorf("llm factory not configured")
			}

			chatModel, err := c.factory.Get(ctx, strings.TrimSpace(st.In.Provider))
			if err != nil {
				return nil, err
			}

			// 观测信息由全局 Eino callbacks 消费
			ctx = service.WithWorkflowProvider(ctx, "hyde", st.In.Provider)
			outMsg, err := chatModel.Generate(ctx, st.Messages, buildChatModelOptions(st.In.Model, st.In.Temperature, st.In.MaxTokens)...)
			if err != nil {
				return nil, err
			}
			if outMsg == nil {
				return nil, fmt.Errorf("empty llm response")
			}
			st.OutMsg = outMsg
			return st, nil
		}),
		compose.WithNodeName("hyde.llm"),
	)

	chain.AppendLambda(
		compose.InvokableLambda(func(_ context.Context, st *hydeChainState) (*schema.Message, error) {
			if st == nil || st.OutMsg == nil {
				return nil, fmt.Errorf("state is nil")
			}
			return st.OutMsg, nil
		}),
		compose.WithNodeName("hyde.finalize"),
	)

	return chain.Compile(ctx)
}

var defaultPromptRegistry = workflowprompt.NewRegistry()

func formatHydeMessages(ctx context.Context, in *wfmodel.HydeInput) ([]*schema.Message, error) {
	promptID := workflowprompt.PromptHydeSingleV1
	if len(in.ImageURLs) > 0 {
		promptID = workflowprompt.PromptHydeMultiV1
	}

	tpl, err := defaultPromptRegistry.ChatTemplate(promptID)
	if err != nil {
		return nil, err
	}

	history := strings.TrimSpace(in.ChatHistory)
	if history == "" {
		history = "(no prior conversation)"
	}
	vars := map[string]any{
		"query":        strings.TrimSpace(in.Query),
		"chat_history": history,
	}
	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return nil, err
	}

	if len(in.ImageURLs) > 0 {
		attachImagesToUserMessage(msgs, in.ImageURLs)
	}
	return msgs, nil
}

// attachImagesToUserMessage 把图片追加到最后一条用户消息的 MultiContent
func attachImagesToUserMessage(msgs []*schema.Message, imageURLs []string) {
	for i := len(msgs) - 1; i >= 0; i-- {
		msg := msgs[i]
		if msg == nil || msg.Role != schema.User {
			continue
		}

		parts := make([]schema.ChatMessagePart, 0, len(imageURLs)+1)
		if strings.TrimSpace(msg.Content) != "" {
			parts = append(parts, schema.ChatMessagePart{
				Type: schema.ChatMessagePartTypeText,
				Text: msg.Content,
			})
		}
		for _, u := range imageURLs {
			u = strings.TrimSpace(u)
			if u == "" {
				continue
			}
			parts = append(parts, schema.ChatMessagePart{
				Type: schema.ChatMessagePartTypeImageURL,
				ImageURL: &schema.ChatMessageImageURL{
					URL: u,
				},
			})
		}

		msg.Content = ""
		msg.MultiContent = parts
		return
	}
}

func buildChatModelOptions(modelName string, temperature *float32, maxTokens *int) []model.Option {
	opts := make([]model.Option, 0, 3)
	if temperature != nil {
		opts = append(opts, model.WithTemperature(*temperature))
	}
	if maxTokens != nil {
		opts = append(opts, model.WithMaxTokens(*maxTokens))
	}
	if m := strings.TrimSpace(modelName); m != "" {
		opts = append(opts, model.WithModel(m))
	}
	return opts
}

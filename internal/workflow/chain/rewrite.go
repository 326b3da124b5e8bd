package chain

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"muse-chat-api/internal/domain/service"
	wfmodel "muse-chat-api/internal/workflow/model"
	workflowport "muse-chat-api/internal/workflow/port"
	workflowprompt "muse-chat-api/internal/workflow/prompt"
)

// RewriteChain 查询改写链，反馈循环中用上一轮假设文档改写原始查询
type RewriteChain struct {
	factory workflowport.ChatModelFactory

	chainOnce sync.Once
	chain     compose.Runnable[*wfmodel.RewriteInput, *schema.Message]
	chainErr  error
}

func NewRewriteChain(factory workflowport.ChatModelFactory) *RewriteChain {
	return &RewriteChain{factory: factory}
}

func (c *RewriteChain) Invoke(ctx context.Context, in *wfmodel.RewriteInput) (string, error) {
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

type rewriteChainState struct {
	In       *wfmodel.RewriteInput
	Messages []*schema.Message
	OutMsg   *schema.Message
}

func (c *RewriteChain) getChain() (compose.Runnable[*wfmodel.RewriteInput, *schema.Message], error) {
	c.chainOnce.Do(func() {
		c.chain, c.chainErr = c.buildChain(context.Background())
	})
	return c.chain, c.chainErr
}

func (c *RewriteChain) buildChain(ctx context.Context) (compose.Runnable[*wfmodel.RewriteInput, *schema.Message], error) {
	chain := compose.NewChain[*wfmodel.RewriteInput, *schema.Message]()

	chain.AppendLambda(
		compose.InvokableLambda(func(_ context.Context, in *wfmodel.RewriteInput) (*rewriteChainState, error) {
			if in == nil {
				return nil, fmt.Errorf("input is nil")
			}
			if strings.TrimSpace(in.Query) == "" {
				return nil, fmt.Errorf("query is empty")
			}
			return &rewriteChainState{In: in}, nil
		}),
		compose.WithNodeName("rewrite.init"),
	)

	chain.AppendLambda(
		compose.InvokableLambda(func(ctx context.Context, st *rewriteChainState) (*rewriteChainState, error) {
			if st == nil || st.In == nil {
				return nil, fmt.Errorf("state is nil")
			}
			tpl, err := defaultPromptRegistry.ChatTemplate(workflowprompt.PromptRewriteV1)
			if err != nil {
				return nil, err
			}
			msgs, err := tpl.Format(ctx, map[string]any{
				"query":            strings.TrimSpace(st.In.Query),
				"hypothetical_doc": strings.TrimSpace(st.In.HypotheticalDoc),
			})
			if err != nil {
				return nil, err
			}
			st.Messages = msgs
			return st, nil
		}),
		compose.WithNodeName("rewrite.template"),
	)

	chain.AppendLambda(
		compose.InvokableLambda(func(ctx context.Context, st *rewriteChainState) (*rewriteChainState, error) {
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

			ctx = service.WithWorkflowProvider(ctx, "rewrite", st.In.Provider)
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
		compose.WithNodeName("rewrite.llm"),
	)

	chain.AppendLambda(
		compose.InvokableLambda(func(_ context.Context, st *rewriteChainState) (*schema.Message, error) {
			if st == nil || st.OutMsg == nil {
				return nil, fmt.Errorf("state is nil")
			}
			return st.OutMsg, nil
		}),
		compose.WithNodeName("rewrite.finalize"),
	)

	return chain.Compile(ctx)
}
